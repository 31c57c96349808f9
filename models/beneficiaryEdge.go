package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BeneficiaryEdge is a succession designation: a giver (party or entity)
// assigns a percentage of future benefit to a beneficiary owner. Scoped per
// giver globally, not per structure. Deactivated designations are kept for
// history but stop counting toward the giver's 100% bound.
type BeneficiaryEdge struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BusinessId         string          `gorm:"index;not null" json:"business_id"`
	GiverPartyId       *int            `gorm:"index" json:"giver_party_id"`
	GiverEntityId      *int            `gorm:"index" json:"giver_entity_id"`
	BeneficiaryPartyId int             `gorm:"not null;index" json:"beneficiary_party_id"`
	Percentage         decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"percentage"`
	Conditions         string          `gorm:"type:text" json:"conditions"`
	IsActive           *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	GiverParty  *Owner  `gorm:"foreignKey:GiverPartyId" json:"giver_party"`
	GiverEntity *Entity `gorm:"foreignKey:GiverEntityId" json:"giver_entity"`
	Beneficiary *Owner  `gorm:"foreignKey:BeneficiaryPartyId" json:"beneficiary"`
}

type NewBeneficiaryEdge struct {
	Giver              OwnerRef        `json:"giver" binding:"required"`
	BeneficiaryPartyId int             `json:"beneficiary_party_id" binding:"required"`
	Percentage         decimal.Decimal `json:"percentage" binding:"required"`
	Conditions         string          `json:"conditions"`
}

// sumActiveBeneficiaryPercentages totals active designations of one giver.
func sumActiveBeneficiaryPercentages(ctx context.Context, tx *gorm.DB, businessId string, giver OwnerRef, excludeEdgeId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	dbCtx := tx.WithContext(ctx).Model(&BeneficiaryEdge{}).
		Where("business_id = ? AND is_active = ?", businessId, true)
	if giver.Kind == OwnerKindParty {
		dbCtx = dbCtx.Where("giver_party_id = ?", giver.ID)
	} else {
		dbCtx = dbCtx.Where("giver_entity_id = ?", giver.ID)
	}
	if excludeEdgeId > 0 {
		dbCtx = dbCtx.Where("id != ?", excludeEdgeId)
	}
	if err := dbCtx.Select("SUM(percentage)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CreateBeneficiaryEdge validates and persists a succession designation and
// tags the beneficiary with the "Beneficiary" role (idempotent).
func CreateBeneficiaryEdge(ctx context.Context, input *NewBeneficiaryEdge) (*BeneficiaryEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Giver.validate(); err != nil {
		return nil, err
	}
	if input.Percentage.IsNegative() || input.Percentage.GreaterThan(percentFull) {
		return nil, errors.New("percentage must be between 0 and 100")
	}

	// resolve giver by kind
	switch input.Giver.Kind {
	case OwnerKindParty:
		if err := utils.ValidateResourceId[Owner](ctx, businessId, input.Giver.ID); err != nil {
			return nil, err
		}
	case OwnerKindEntity:
		if err := utils.ValidateResourceId[Entity](ctx, businessId, input.Giver.ID); err != nil {
			return nil, err
		}
	}
	// resolve beneficiary
	if err := utils.ValidateResourceId[Owner](ctx, businessId, input.BeneficiaryPartyId); err != nil {
		return nil, err
	}

	// self-designation
	if input.Giver.Kind == OwnerKindParty && input.Giver.ID == input.BeneficiaryPartyId {
		return nil, ErrSelfOwnership
	}

	db := config.GetDB()
	percentage := input.Percentage.Round(2)
	var edge *BeneficiaryEdge
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		otherTotal, err := sumActiveBeneficiaryPercentages(ctx, tx, businessId, input.Giver, 0)
		if err != nil {
			return err
		}
		newTotal := otherTotal.Add(percentage)
		if newTotal.GreaterThan(percentCeiling) {
			return &OverAllocationError{
				Scope: fmt.Sprintf("%s %d succession", input.Giver.Kind, input.Giver.ID),
				Total: newTotal,
			}
		}

		created := &BeneficiaryEdge{
			BusinessId:         businessId,
			BeneficiaryPartyId: input.BeneficiaryPartyId,
			Percentage:         percentage,
			Conditions:         input.Conditions,
			IsActive:           utils.NewTrue(),
		}
		id := input.Giver.ID
		if input.Giver.Kind == OwnerKindParty {
			created.GiverPartyId = &id
		} else {
			created.GiverEntityId = &id
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		if err := EnsureOwnerRole(ctx, tx, businessId, input.BeneficiaryPartyId, OwnerRoleBeneficiary); err != nil {
			return err
		}

		edge = created
		return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
			OwnershipReferenceTypeBeneficiary, edge, nil, OwnershipEventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeactivateBeneficiaryEdge frees the giver's allocation without losing
// the historical designation.
func DeactivateBeneficiaryEdge(ctx context.Context, edgeId int) (*BeneficiaryEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	edge, err := utils.FetchModel[BeneficiaryEdge](ctx, businessId, edgeId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := *edge
		if err := tx.Model(&edge).Update("is_active", false).Error; err != nil {
			return err
		}
		return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
			OwnershipReferenceTypeBeneficiary, edge, &old, OwnershipEventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func RemoveBeneficiaryEdge(ctx context.Context, edgeId int) (*BeneficiaryEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	edge, err := utils.FetchModel[BeneficiaryEdge](ctx, businessId, edgeId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&edge).Error; err != nil {
			return err
		}
		return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
			OwnershipReferenceTypeBeneficiary, nil, edge, OwnershipEventActionDelete)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// BeneficiaryTotalsReport summarizes one giver's active designations.
type BeneficiaryTotalsReport struct {
	Giver           OwnerRef          `json:"giver"`
	TotalPercentage decimal.Decimal   `json:"total_percentage"`
	Remaining       decimal.Decimal   `json:"remaining"`
	State           AllocationState   `json:"state"`
	Edges           []BeneficiaryEdge `json:"edges"`
}

// ValidateBeneficiaryTotals recomputes the giver's succession allocation
// from current active edges. Read-only.
func ValidateBeneficiaryTotals(ctx context.Context, giver OwnerRef) (*BeneficiaryTotalsReport, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := giver.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Preload("Beneficiary").
		Where("business_id = ? AND is_active = ?", businessId, true)
	if giver.Kind == OwnerKindParty {
		dbCtx = dbCtx.Where("giver_party_id = ?", giver.ID)
	} else {
		dbCtx = dbCtx.Where("giver_entity_id = ?", giver.ID)
	}
	var edges []BeneficiaryEdge
	if err := dbCtx.Find(&edges).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, e := range edges {
		total = total.Add(e.Percentage)
	}

	report := &BeneficiaryTotalsReport{
		Giver:           giver,
		TotalPercentage: total,
		Remaining:       percentFull.Sub(total),
		State:           classifyAllocation(total, len(edges)),
		Edges:           edges,
	}
	return report, nil
}
