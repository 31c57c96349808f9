package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Owner is a natural or legal person (UBO / party) capable of holding
// ownership and receiving succession benefits. Independent of any entity.
type Owner struct {
	ID          int        `gorm:"primary_key" json:"id"`
	BusinessId  string     `gorm:"index;not null" json:"business_id" binding:"required"`
	Name        string     `gorm:"index;size:255;not null" json:"name" binding:"required"`
	PersonType  PersonType `gorm:"type:enum('Natural','Legal');not null" json:"person_type" binding:"required"`
	TaxId       string     `gorm:"size:100" json:"tax_id"`
	Nationality string     `gorm:"size:100" json:"nationality"`
	Phone       string     `gorm:"size:20" json:"phone"`
	PhoneRegion string     `gorm:"size:2" json:"phone_region"`
	Email       string     `gorm:"size:255" json:"email"`
	IsActive    *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	RoleTags []OwnerRoleTag `gorm:"foreignKey:OwnerId" json:"role_tags"`
}

// OwnerRoleTag marks an owner with a role ("Beneficiary", "Settlor", ...).
// The unique index makes EnsureOwnerRole idempotent.
type OwnerRoleTag struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	OwnerId    int       `gorm:"not null;uniqueIndex:idx_owner_role" json:"owner_id"`
	Role       string    `gorm:"size:50;not null;uniqueIndex:idx_owner_role" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const OwnerRoleBeneficiary = "Beneficiary"

type NewOwner struct {
	Name        string     `json:"name" binding:"required"`
	PersonType  PersonType `json:"person_type" binding:"required"`
	TaxId       string     `json:"tax_id"`
	Nationality string     `json:"nationality"`
	Phone       string     `json:"phone"`
	PhoneRegion string     `json:"phone_region"`
	Email       string     `json:"email"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewOwner) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Owner](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := input.PersonType.Validate(); err != nil {
		return err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if input.Phone != "" {
		region := input.PhoneRegion
		if region == "" {
			region = "US"
		}
		if err := utils.ValidatePhoneNumber(input.Phone, region); err != nil {
			return err
		}
	}
	return nil
}

func CreateOwner(ctx context.Context, input *NewOwner) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	owner := Owner{
		BusinessId:  businessId,
		Name:        input.Name,
		PersonType:  input.PersonType,
		TaxId:       input.TaxId,
		Nationality: input.Nationality,
		Phone:       input.Phone,
		PhoneRegion: input.PhoneRegion,
		Email:       input.Email,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&owner).Error; err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Owner](businessId)
	return &owner, nil
}

func UpdateOwner(ctx context.Context, id int, input *NewOwner) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	owner, err := utils.FetchModel[Owner](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&owner).Updates(map[string]interface{}{
		"Name":        input.Name,
		"PersonType":  input.PersonType,
		"TaxId":       input.TaxId,
		"Nationality": input.Nationality,
		"Phone":       input.Phone,
		"PhoneRegion": input.PhoneRegion,
		"Email":       input.Email,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Owner](businessId)
	return owner, nil
}

func DeactivateOwner(ctx context.Context, id int) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	owner, err := utils.FetchModel[Owner](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&owner).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Owner](businessId)
	return owner, nil
}

// DeleteOwner hard-deletes and fails while edges still reference the owner,
// as ownership holder, succession giver or beneficiary.
func DeleteOwner(ctx context.Context, id int) (*Owner, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	owner, err := utils.FetchModel[Owner](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[OwnershipEdge](ctx, businessId, "owner_party_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStillReferenced
	}
	count, err = utils.ResourceCountWhere[BeneficiaryEdge](ctx, businessId,
		"giver_party_id = ? OR beneficiary_party_id = ?", id, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStillReferenced
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND owner_id = ?", businessId, id).
			Delete(&OwnerRoleTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&owner).Error
	})
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedisList[Owner](businessId)
	return owner, nil
}

func GetOwner(ctx context.Context, id int) (*Owner, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Owner](ctx, businessId, id, "RoleTags")
}

// ListOwners reads through the redis list cache.
func ListOwners(ctx context.Context) ([]*Owner, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[Owner](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[Owner](ctx, businessId, "RoleTags")
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[Owner](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// EnsureOwnerRole tags the owner with a role. Inserting an existing tag is
// not an error; the unique index absorbs the duplicate.
func EnsureOwnerRole(ctx context.Context, tx *gorm.DB, businessId string, ownerId int, role string) error {
	tag := OwnerRoleTag{
		BusinessId: businessId,
		OwnerId:    ownerId,
		Role:       role,
	}
	if err := tx.WithContext(ctx).Create(&tag).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}
