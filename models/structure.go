package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"gorm.io/gorm"
)

// Structure is a named container scoping one ownership configuration
// (a "deal"). It owns its edges: deleting a structure cascades to them.
type Structure struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string          `gorm:"index;size:255;not null" json:"name" binding:"required"`
	Status     StructureStatus `gorm:"type:enum('Drafting','SentForApproval','Approved');default:'Drafting';not null" json:"status"`
	Notes      string          `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Edges []OwnershipEdge `gorm:"foreignKey:StructureId" json:"edges"`
}

type NewStructure struct {
	Name  string `json:"name" binding:"required"`
	Notes string `json:"notes"`
}

// StructureTransitionEffect names a side effect the caller applies after a
// successful status change. Transitions are an explicit function of
// (old, new) rather than state hidden on the model.
type StructureTransitionEffect string

const (
	EffectPublishStatusEvent  StructureTransitionEffect = "PublishStatusEvent"
	EffectNotifyApprovalQueue StructureTransitionEffect = "NotifyApprovalQueue"
)

var allowedStatusTransitions = map[StructureStatus][]StructureStatus{
	StructureStatusDrafting:        {StructureStatusSentForApproval},
	StructureStatusSentForApproval: {StructureStatusApproved, StructureStatusDrafting}, // rejection returns to drafting
	StructureStatusApproved:        {},
}

func canTransitionStatus(old, new StructureStatus) bool {
	for _, allowed := range allowedStatusTransitions[old] {
		if allowed == new {
			return true
		}
	}
	return false
}

func transitionEffects(old, new StructureStatus) []StructureTransitionEffect {
	effects := []StructureTransitionEffect{EffectPublishStatusEvent}
	if new == StructureStatusSentForApproval {
		effects = append(effects, EffectNotifyApprovalQueue)
	}
	_ = old
	return effects
}

func CreateStructure(ctx context.Context, input *NewStructure) (*Structure, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	structure := Structure{
		BusinessId: businessId,
		Name:       input.Name,
		Status:     StructureStatusDrafting,
		Notes:      input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&structure).Error; err != nil {
		return nil, err
	}
	return &structure, nil
}

func UpdateStructure(ctx context.Context, id int, input *NewStructure) (*Structure, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	structure, err := utils.FetchModel[Structure](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&structure).Updates(map[string]interface{}{
		"Name":  input.Name,
		"Notes": input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return structure, nil
}

// UpdateStructureStatus applies one transition of the status machine.
// Approval is gated on a fresh validation report: every owned entity must be
// fully allocated. Under-allocation never blocks drafting or submission.
func UpdateStructureStatus(ctx context.Context, id int, newStatus StructureStatus) (*Structure, []StructureTransitionEffect, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if err := newStatus.Validate(); err != nil {
		return nil, nil, err
	}

	structure, err := utils.FetchModel[Structure](ctx, businessId, id)
	if err != nil {
		return nil, nil, err
	}

	oldStatus := structure.Status
	if !canTransitionStatus(oldStatus, newStatus) {
		return nil, nil, fmt.Errorf("structure status cannot change from %s to %s", oldStatus, newStatus)
	}

	if newStatus == StructureStatusApproved {
		report, err := ValidateStructure(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !report.AllComplete() {
			return nil, nil, errors.New("structure cannot be approved while ownership is incomplete")
		}
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Structure{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		old := *structure
		structure.Status = newStatus
		return PublishOwnershipEvent(ctx, tx, businessId, structure.ID,
			OwnershipReferenceTypeStructure, structure, &old, OwnershipEventActionUpdate)
	})
	if err != nil {
		return nil, nil, err
	}

	return structure, transitionEffects(oldStatus, newStatus), nil
}

// DeleteStructure removes the structure and all of its edges in one
// transaction.
func DeleteStructure(ctx context.Context, id int) (*Structure, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	structure, err := utils.FetchModel[Structure](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND structure_id = ?", businessId, id).
			Delete(&OwnershipEdge{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&structure).Error; err != nil {
			return err
		}
		return PublishOwnershipEvent(ctx, tx, businessId, structure.ID,
			OwnershipReferenceTypeStructure, nil, structure, OwnershipEventActionDelete)
	})
	if err != nil {
		return nil, err
	}
	return structure, nil
}

func GetStructure(ctx context.Context, id int) (*Structure, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Structure](ctx, businessId, id, "Edges")
}

func ListStructures(ctx context.Context) ([]*Structure, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Structure](ctx, businessId)
}

// CloneStructure deep-copies a structure and all of its edges with fresh ids.
// Any failure wraps in CloneError after rollback; nothing is persisted.
func CloneStructure(ctx context.Context, structureId int) (*Structure, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var oldStructure Structure
	if err := tx.WithContext(ctx).
		Preload("Edges").
		Where("business_id = ? AND id = ?", businessId, structureId).
		First(&oldStructure).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, &CloneError{Cause: err}
	}

	newEdges := make([]OwnershipEdge, 0, len(oldStructure.Edges))
	for _, e := range oldStructure.Edges {
		e.ID = 0
		e.StructureId = 0
		newEdges = append(newEdges, e)
	}

	newStructure := Structure{
		BusinessId: oldStructure.BusinessId,
		Name:       oldStructure.Name + " (Copy)",
		Status:     StructureStatusDrafting,
		Notes:      oldStructure.Notes,
		Edges:      newEdges,
	}

	if err := tx.WithContext(ctx).Create(&newStructure).Error; err != nil {
		tx.Rollback()
		return nil, &CloneError{Cause: err}
	}

	if err := PublishOwnershipEvent(ctx, tx, businessId, newStructure.ID,
		OwnershipReferenceTypeStructure, &newStructure, nil, OwnershipEventActionCreate); err != nil {
		tx.Rollback()
		return nil, &CloneError{Cause: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &CloneError{Cause: err}
	}
	return &newStructure, nil
}
