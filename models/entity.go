package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
)

// Entity is a reusable legal-structure template (corporation, trust, fund...)
// with a fixed share count. It exists independently of any structure and is
// referenced by ownership edges.
type Entity struct {
	ID           int        `gorm:"primary_key" json:"id"`
	BusinessId   string     `gorm:"index;not null" json:"business_id" binding:"required"`
	Name         string     `gorm:"index;size:255;not null" json:"name" binding:"required"`
	EntityType   EntityType `gorm:"type:enum('Corporation','Trust','Fund','LLC','Foundation','HoldingCompany');not null" json:"entity_type" binding:"required"`
	Jurisdiction string     `gorm:"size:100" json:"jurisdiction"`
	TotalShares  int64      `gorm:"not null" json:"total_shares" binding:"required"`
	Description  string     `gorm:"type:text" json:"description"`
	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEntity struct {
	Name         string     `json:"name" binding:"required"`
	EntityType   EntityType `json:"entity_type" binding:"required"`
	Jurisdiction string     `json:"jurisdiction"`
	TotalShares  int64      `json:"total_shares" binding:"required"`
	Description  string     `json:"description"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewEntity) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Entity](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := input.EntityType.Validate(); err != nil {
		return err
	}
	if input.TotalShares <= 0 {
		return errors.New("total shares must be a positive integer")
	}
	// name
	if err := utils.ValidateUnique[Entity](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// total shares may never shrink below what edges already allocated
	if id > 0 {
		allocated, err := maxAllocatedShares(ctx, businessId, id)
		if err != nil {
			return err
		}
		if input.TotalShares < allocated {
			return ErrTotalSharesBelowAllocated
		}
	}
	return nil
}

// maxAllocatedShares returns the largest per-structure share allocation
// against the entity. Each structure is an independent configuration, so the
// bound is the worst structure, not the global sum.
func maxAllocatedShares(ctx context.Context, businessId string, entityId int) (int64, error) {
	db := config.GetDB()
	perStructure := db.WithContext(ctx).Model(&OwnershipEdge{}).
		Where("business_id = ? AND owned_entity_id = ?", businessId, entityId).
		Select("structure_id, SUM(owned_shares) AS total").
		Group("structure_id")

	var allocated int64
	err := db.WithContext(ctx).
		Table("(?) AS per_structure", perStructure).
		Select("COALESCE(MAX(total), 0)").
		Scan(&allocated).Error
	if err != nil {
		return 0, err
	}
	return allocated, nil
}

func CreateEntity(ctx context.Context, input *NewEntity) (*Entity, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	entity := Entity{
		BusinessId:   businessId,
		Name:         input.Name,
		EntityType:   input.EntityType,
		Jurisdiction: input.Jurisdiction,
		TotalShares:  input.TotalShares,
		Description:  input.Description,
		IsActive:     utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Entity](businessId)
	return &entity, nil
}

func UpdateEntity(ctx context.Context, id int, input *NewEntity) (*Entity, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	entity, err := utils.FetchModel[Entity](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&entity).Updates(map[string]interface{}{
		"Name":         input.Name,
		"EntityType":   input.EntityType,
		"Jurisdiction": input.Jurisdiction,
		"TotalShares":  input.TotalShares,
		"Description":  input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Entity](businessId)
	return entity, nil
}

// DeactivateEntity soft-deletes: the entity stays referencable by existing
// edges but is rejected as the owned side of new ones.
func DeactivateEntity(ctx context.Context, id int) (*Entity, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entity, err := utils.FetchModel[Entity](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&entity).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Entity](businessId)
	return entity, nil
}

// DeleteEntity hard-deletes and fails while any ownership or beneficiary
// edge still references the entity, on either side.
func DeleteEntity(ctx context.Context, id int) (*Entity, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entity, err := utils.FetchModel[Entity](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[OwnershipEdge](ctx, businessId,
		"owned_entity_id = ? OR owner_entity_id = ?", id, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStillReferenced
	}
	count, err = utils.ResourceCountWhere[BeneficiaryEdge](ctx, businessId, "giver_entity_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStillReferenced
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&entity).Error; err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Entity](businessId)
	return entity, nil
}

func GetEntity(ctx context.Context, id int) (*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Entity](ctx, businessId, id)
}

// ListEntities reads through the redis list cache.
func ListEntities(ctx context.Context) ([]*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[Entity](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[Entity](ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[Entity](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}
