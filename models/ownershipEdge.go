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

// OwnershipEdge is the core relation: a percentage/share-weighted edge from
// an owner (party or entity) to an owned entity, scoped to one structure.
// Exactly one of OwnerPartyId/OwnerEntityId is set; edges are only written
// through UpsertOwnershipEdge so the invariant holds for every persisted row.
type OwnershipEdge struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"index;not null" json:"business_id"`
	StructureId         int             `gorm:"not null;index:idx_structure_owned,priority:1" json:"structure_id"`
	OwnerPartyId        *int            `gorm:"index" json:"owner_party_id"`
	OwnerEntityId       *int            `gorm:"index" json:"owner_entity_id"`
	OwnedEntityId       int             `gorm:"not null;index:idx_structure_owned,priority:2" json:"owned_entity_id"`
	OwnedShares         int64           `gorm:"not null" json:"owned_shares"`
	OwnershipPercentage decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"ownership_percentage"`
	ShareValueAmount    decimal.Decimal `gorm:"type:decimal(20,2)" json:"share_value_amount"`
	ShareValueCurrency  string          `gorm:"size:3" json:"share_value_currency"`
	MarketValueAmount   decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_value_amount"`
	MarketValueCurrency string          `gorm:"size:3" json:"market_value_currency"`
	CorporateName       string          `gorm:"size:255" json:"corporate_name"`
	HashNumber          string          `gorm:"size:100" json:"hash_number"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	OwnerParty  *Owner  `gorm:"foreignKey:OwnerPartyId" json:"owner_party"`
	OwnerEntity *Entity `gorm:"foreignKey:OwnerEntityId" json:"owner_entity"`
	OwnedEntity *Entity `gorm:"foreignKey:OwnedEntityId" json:"owned_entity"`
}

// OwnerRef is the tagged union naming the owner side of an edge. Keeping the
// "exactly one" rule inside the constructor avoids XOR checks at call sites.
type OwnerRef struct {
	Kind OwnerKind `json:"kind" binding:"required"`
	ID   int       `json:"id" binding:"required"`
}

func (r OwnerRef) validate() error {
	if err := r.Kind.Validate(); err != nil {
		return ErrExactlyOneOwner
	}
	if r.ID <= 0 {
		return ErrExactlyOneOwner
	}
	return nil
}

// OwnerRefOfEdge reconstructs the tagged union from a persisted row.
func OwnerRefOfEdge(edge *OwnershipEdge) (OwnerRef, error) {
	switch {
	case edge.OwnerPartyId != nil && edge.OwnerEntityId == nil:
		return OwnerRef{Kind: OwnerKindParty, ID: *edge.OwnerPartyId}, nil
	case edge.OwnerEntityId != nil && edge.OwnerPartyId == nil:
		return OwnerRef{Kind: OwnerKindEntity, ID: *edge.OwnerEntityId}, nil
	}
	return OwnerRef{}, ErrExactlyOneOwner
}

type NewOwnershipEdge struct {
	StructureId   int              `json:"structure_id" binding:"required"`
	Owner         OwnerRef         `json:"owner" binding:"required"`
	OwnedEntityId int              `json:"owned_entity_id" binding:"required"`
	Percentage    *decimal.Decimal `json:"percentage"`
	Shares        *int64           `json:"shares"`

	ShareValueAmount    decimal.Decimal `json:"share_value_amount"`
	ShareValueCurrency  string          `json:"share_value_currency"`
	MarketValueAmount   decimal.Decimal `json:"market_value_amount"`
	MarketValueCurrency string          `json:"market_value_currency"`
	CorporateName       string          `json:"corporate_name"`
	HashNumber          string          `json:"hash_number"`
}

/* pure derivation helpers */

// deriveShares rounds pct/100 * totalShares to the nearest whole share.
func deriveShares(percentage decimal.Decimal, totalShares int64) int64 {
	return percentage.
		Div(percentFull).
		Mul(decimal.NewFromInt(totalShares)).
		Round(0).
		IntPart()
}

// derivePercentage computes shares/totalShares * 100 at 2-decimal precision.
func derivePercentage(shares int64, totalShares int64) decimal.Decimal {
	if totalShares == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(shares).
		Div(decimal.NewFromInt(totalShares)).
		Mul(percentFull).
		Round(2)
}

// splitEvenly returns n percentages of 100/n at 2-decimal precision, the
// last one absorbing the rounding remainder so the sum is exactly 100.00.
func splitEvenly(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	each := percentFull.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	parts := make([]decimal.Decimal, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = each
		running = running.Add(each)
	}
	parts[n-1] = percentFull.Sub(running)
	return parts
}

type entityEdge struct {
	OwnerEntityId int
	OwnedEntityId int
}

// wouldCreateCycle reports whether adding ownerEntityId-owns-ownedEntityId
// closes a cycle: DFS from the owned entity following existing owns-edges;
// reaching the owner means the owner is already a transitive descendant.
func wouldCreateCycle(edges []entityEdge, ownerEntityId, ownedEntityId int) bool {
	if ownerEntityId == ownedEntityId {
		return true
	}
	children := make(map[int][]int, len(edges))
	for _, e := range edges {
		children[e.OwnerEntityId] = append(children[e.OwnerEntityId], e.OwnedEntityId)
	}
	visited := make(map[int]bool)
	stack := []int{ownedEntityId}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == ownerEntityId {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		stack = append(stack, children[node]...)
	}
	return false
}

// resolveOwnershipFields derives the missing one of {shares, percentage}.
// When both are supplied explicitly, both are kept as given (no silent
// override); the sum check below still applies to the percentage.
func resolveOwnershipFields(percentage *decimal.Decimal, shares *int64, totalShares int64) (decimal.Decimal, int64, error) {
	switch {
	case percentage != nil && shares != nil:
		return percentage.Round(2), *shares, nil
	case percentage != nil:
		return percentage.Round(2), deriveShares(*percentage, totalShares), nil
	case shares != nil:
		return derivePercentage(*shares, totalShares), *shares, nil
	}
	return decimal.Zero, 0, ErrPercentageOrSharesRequired
}

func (input *NewOwnershipEdge) validatePercentage() error {
	if input.Percentage == nil {
		return nil
	}
	if input.Percentage.IsNegative() || input.Percentage.GreaterThan(percentFull) {
		return errors.New("percentage must be between 0 and 100")
	}
	return nil
}

// loadEntityEdges fetches the entity-owns-entity subgraph of one structure,
// optionally excluding the edge currently being rewritten.
func loadEntityEdges(ctx context.Context, tx *gorm.DB, businessId string, structureId int, excludeEdgeId int) ([]entityEdge, error) {
	var rows []OwnershipEdge
	dbCtx := tx.WithContext(ctx).
		Where("business_id = ? AND structure_id = ? AND owner_entity_id IS NOT NULL", businessId, structureId)
	if excludeEdgeId > 0 {
		dbCtx = dbCtx.Where("id != ?", excludeEdgeId)
	}
	if err := dbCtx.Find(&rows).Error; err != nil {
		return nil, err
	}
	edges := make([]entityEdge, 0, len(rows))
	for _, r := range rows {
		edges = append(edges, entityEdge{OwnerEntityId: *r.OwnerEntityId, OwnedEntityId: r.OwnedEntityId})
	}
	return edges, nil
}

// sumOtherPercentages totals the ownership percentage of all edges on
// (structure, owned entity) except the one being rewritten.
func sumOtherPercentages(ctx context.Context, tx *gorm.DB, businessId string, structureId, ownedEntityId, excludeEdgeId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	dbCtx := tx.WithContext(ctx).Model(&OwnershipEdge{}).
		Where("business_id = ? AND structure_id = ? AND owned_entity_id = ?", businessId, structureId, ownedEntityId)
	if excludeEdgeId > 0 {
		dbCtx = dbCtx.Where("id != ?", excludeEdgeId)
	}
	if err := dbCtx.Select("SUM(ownership_percentage)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// UpsertOwnershipEdge creates (edgeId = 0) or rewrites an ownership edge.
// The whole validate-then-write sequence runs inside one transaction under
// an advisory lock for the (structure, owned entity) pair.
func UpsertOwnershipEdge(ctx context.Context, edgeId int, input *NewOwnershipEdge) (*OwnershipEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Owner.validate(); err != nil {
		return nil, err
	}
	if err := input.validatePercentage(); err != nil {
		return nil, err
	}
	if input.Shares != nil && *input.Shares < 0 {
		return nil, errors.New("shares must not be negative")
	}

	if err := utils.ValidateResourceId[Structure](ctx, businessId, input.StructureId); err != nil {
		return nil, err
	}
	if edgeId > 0 {
		if err := utils.ValidateResourceId[OwnershipEdge](ctx, businessId, edgeId); err != nil {
			return nil, err
		}
	}

	// 1. resolve owned entity; inactive entities cannot take new ownership
	ownedEntity, err := utils.FetchModel[Entity](ctx, businessId, input.OwnedEntityId)
	if err != nil {
		return nil, err
	}
	if ownedEntity.IsActive == nil || !*ownedEntity.IsActive {
		return nil, utils.ErrorRecordNotFound
	}

	// 2. resolve owner by kind
	switch input.Owner.Kind {
	case OwnerKindParty:
		if err := utils.ValidateResourceId[Owner](ctx, businessId, input.Owner.ID); err != nil {
			return nil, err
		}
	case OwnerKindEntity:
		if err := utils.ValidateResourceId[Entity](ctx, businessId, input.Owner.ID); err != nil {
			return nil, err
		}
	}

	// 3. self-ownership
	if input.Owner.Kind == OwnerKindEntity && input.Owner.ID == input.OwnedEntityId {
		return nil, ErrSelfOwnership
	}

	// 4. derive the missing of {shares, percentage}
	percentage, shares, err := resolveOwnershipFields(input.Percentage, input.Shares, ownedEntity.TotalShares)
	if err != nil {
		return nil, err
	}

	release, err := utils.OwnershipLock(ctx, businessId, input.StructureId, input.OwnedEntityId, "models", "UpsertOwnershipEdge")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var edge *OwnershipEdge
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 5. per-(structure, owned entity) percentage bound
		otherTotal, err := sumOtherPercentages(ctx, tx, businessId, input.StructureId, input.OwnedEntityId, edgeId)
		if err != nil {
			return err
		}
		newTotal := otherTotal.Add(percentage)
		if newTotal.GreaterThan(percentCeiling) {
			return &OverAllocationError{
				Scope: fmt.Sprintf("structure %d entity %q", input.StructureId, ownedEntity.Name),
				Total: newTotal,
			}
		}

		// 6. cycle check for entity-owns-entity edges
		if input.Owner.Kind == OwnerKindEntity {
			entityEdges, err := loadEntityEdges(ctx, tx, businessId, input.StructureId, edgeId)
			if err != nil {
				return err
			}
			if wouldCreateCycle(entityEdges, input.Owner.ID, input.OwnedEntityId) {
				return ErrCircularOwnership
			}
		}

		// 7. persist
		if edgeId > 0 {
			existing, err := utils.FetchModel[OwnershipEdge](ctx, businessId, edgeId)
			if err != nil {
				return err
			}
			old := *existing
			applyOwnershipInput(existing, businessId, input, percentage, shares)
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			edge = existing
			return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
				OwnershipReferenceTypeEdge, edge, &old, OwnershipEventActionUpdate)
		}

		created := &OwnershipEdge{}
		applyOwnershipInput(created, businessId, input, percentage, shares)
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		edge = created
		return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
			OwnershipReferenceTypeEdge, edge, nil, OwnershipEventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func applyOwnershipInput(edge *OwnershipEdge, businessId string, input *NewOwnershipEdge, percentage decimal.Decimal, shares int64) {
	edge.BusinessId = businessId
	edge.StructureId = input.StructureId
	edge.OwnedEntityId = input.OwnedEntityId
	edge.OwnedShares = shares
	edge.OwnershipPercentage = percentage
	edge.ShareValueAmount = input.ShareValueAmount
	edge.ShareValueCurrency = input.ShareValueCurrency
	edge.MarketValueAmount = input.MarketValueAmount
	edge.MarketValueCurrency = input.MarketValueCurrency
	edge.CorporateName = input.CorporateName
	edge.HashNumber = input.HashNumber

	edge.OwnerPartyId = nil
	edge.OwnerEntityId = nil
	id := input.Owner.ID
	if input.Owner.Kind == OwnerKindParty {
		edge.OwnerPartyId = &id
	} else {
		edge.OwnerEntityId = &id
	}
}

// RemoveOwnershipEdge deletes one edge. Removing an edge can neither create
// an over-allocation nor a cycle, so siblings are not revalidated.
func RemoveOwnershipEdge(ctx context.Context, edgeId int) (*OwnershipEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	edge, err := utils.FetchModel[OwnershipEdge](ctx, businessId, edgeId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&edge).Error; err != nil {
			return err
		}
		return PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
			OwnershipReferenceTypeEdge, nil, edge, OwnershipEventActionDelete)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

/* validation report */

type EntityAllocation struct {
	OwnedEntityId   int             `json:"owned_entity_id"`
	EntityName      string          `json:"entity_name"`
	State           AllocationState `json:"state"`
	TotalPercentage decimal.Decimal `json:"total_percentage"`
	EdgeCount       int             `json:"edge_count"`
	Message         string          `json:"message"`
}

type StructureValidationReport struct {
	StructureId          int                `json:"structure_id"`
	CompleteCount        int                `json:"complete_count"`
	UnderCount           int                `json:"under_count"`
	OverCount            int                `json:"over_count"`
	NoOwnershipCount     int                `json:"no_ownership_count"`
	CompletionPercentage decimal.Decimal    `json:"completion_percentage"`
	Entities             []EntityAllocation `json:"entities"`
	Warnings             []string           `json:"warnings"`
}

func (r *StructureValidationReport) AllComplete() bool {
	return len(r.Entities) > 0 && r.CompleteCount == len(r.Entities)
}

func classifyAllocation(total decimal.Decimal, edgeCount int) AllocationState {
	switch {
	case edgeCount == 0:
		return AllocationStateNoOwnership
	case total.GreaterThan(percentCeiling):
		return AllocationStateOver
	case total.GreaterThanOrEqual(percentFull.Sub(percentTolerance)):
		return AllocationStateComplete
	default:
		return AllocationStateUnder
	}
}

// ValidateStructure recomputes the allocation status of every entity in the
// structure from current edges. Read-only; nothing is cached, so the report
// can never go stale.
func ValidateStructure(ctx context.Context, structureId int) (*StructureValidationReport, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Structure](ctx, businessId, structureId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var edges []OwnershipEdge
	if err := db.WithContext(ctx).
		Preload("OwnedEntity").
		Where("business_id = ? AND structure_id = ?", businessId, structureId).
		Find(&edges).Error; err != nil {
		return nil, err
	}

	// every entity present in the structure, as owned or as entity-owner
	names := make(map[int]string)
	totals := make(map[int]decimal.Decimal)
	counts := make(map[int]int)
	order := []int{}
	seen := make(map[int]bool)
	note := func(id int) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, e := range edges {
		note(e.OwnedEntityId)
		if e.OwnedEntity != nil {
			names[e.OwnedEntityId] = e.OwnedEntity.Name
		}
		totals[e.OwnedEntityId] = totals[e.OwnedEntityId].Add(e.OwnershipPercentage)
		counts[e.OwnedEntityId]++
		if e.OwnerEntityId != nil {
			note(*e.OwnerEntityId)
		}
	}
	// names for entities appearing only as owners
	missing := []int{}
	for _, id := range order {
		if names[id] == "" {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		var rows []Entity
		if err := db.WithContext(ctx).
			Where("business_id = ? AND id IN ?", businessId, missing).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			names[r.ID] = r.Name
		}
	}

	report := &StructureValidationReport{StructureId: structureId}
	for _, id := range order {
		total := totals[id]
		state := classifyAllocation(total, counts[id])
		alloc := EntityAllocation{
			OwnedEntityId:   id,
			EntityName:      names[id],
			State:           state,
			TotalPercentage: total,
			EdgeCount:       counts[id],
		}
		switch state {
		case AllocationStateComplete:
			report.CompleteCount++
			alloc.Message = "ownership fully allocated"
		case AllocationStateUnder:
			report.UnderCount++
			alloc.Message = fmt.Sprintf("under-allocated: %s%% of 100%%", total.StringFixed(2))
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s is under-allocated (%s%%)", names[id], total.StringFixed(2)))
		case AllocationStateOver:
			// should not be persistable; reported defensively
			report.OverCount++
			alloc.Message = fmt.Sprintf("over-allocated: %s%% of 100%%", total.StringFixed(2))
		case AllocationStateNoOwnership:
			report.NoOwnershipCount++
			alloc.Message = "no ownership edges"
		}
		report.Entities = append(report.Entities, alloc)
	}
	if len(report.Entities) > 0 {
		report.CompletionPercentage = decimal.NewFromInt(int64(report.CompleteCount)).
			Div(decimal.NewFromInt(int64(len(report.Entities)))).
			Mul(percentFull).
			Round(2)
	}
	return report, nil
}

// AutoBalanceOwnership redistributes equal percentages across all edges of
// one (structure, owned entity) pair, rounding so the sum is exactly 100.00.
// Shares are re-derived from the owned entity's total shares.
func AutoBalanceOwnership(ctx context.Context, structureId, ownedEntityId int) ([]*OwnershipEdge, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Structure](ctx, businessId, structureId); err != nil {
		return nil, err
	}
	ownedEntity, err := utils.FetchModel[Entity](ctx, businessId, ownedEntityId)
	if err != nil {
		return nil, err
	}

	release, err := utils.OwnershipLock(ctx, businessId, structureId, ownedEntityId, "models", "AutoBalanceOwnership")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var balanced []*OwnershipEdge
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edges []*OwnershipEdge
		if err := tx.
			Where("business_id = ? AND structure_id = ? AND owned_entity_id = ?", businessId, structureId, ownedEntityId).
			Order("id").
			Find(&edges).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return utils.ErrorRecordNotFound
		}

		parts := splitEvenly(len(edges))
		for i, edge := range edges {
			old := *edge
			edge.OwnershipPercentage = parts[i]
			edge.OwnedShares = deriveShares(parts[i], ownedEntity.TotalShares)
			if err := tx.Model(edge).Updates(map[string]interface{}{
				"OwnershipPercentage": edge.OwnershipPercentage,
				"OwnedShares":         edge.OwnedShares,
			}).Error; err != nil {
				return err
			}
			if err := PublishOwnershipEvent(ctx, tx, businessId, edge.ID,
				OwnershipReferenceTypeEdge, edge, &old, OwnershipEventActionUpdate); err != nil {
				return err
			}
		}
		balanced = edges
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balanced, nil
}
