package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
)

// CompatibilityRule is a directed rule between two entity *types* (not
// instances), evaluated against the set of types present in a structure.
type CompatibilityRule struct {
	ID               int              `gorm:"primary_key" json:"id"`
	BusinessId       string           `gorm:"index;not null" json:"business_id"`
	EntityTypeA      EntityType       `gorm:"type:enum('Corporation','Trust','Fund','LLC','Foundation','HoldingCompany');not null;index:idx_rule_pair,priority:1" json:"entity_type_a"`
	EntityTypeB      EntityType       `gorm:"type:enum('Corporation','Trust','Fund','LLC','Foundation','HoldingCompany');not null;index:idx_rule_pair,priority:2" json:"entity_type_b"`
	RelationshipType RelationshipType `gorm:"type:enum('Required','Recommended','Incompatible','Conditional','Synergistic');not null" json:"relationship_type"`
	Severity         RuleSeverity     `gorm:"type:enum('Error','Warning','Info');not null" json:"severity"`
	Description      string           `gorm:"type:text" json:"description"`
	TaxImpact        string           `gorm:"type:text" json:"tax_impact"`
	Jurisdiction     string           `gorm:"size:100" json:"jurisdiction"`
	IsActive         *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompatibilityRule struct {
	EntityTypeA      EntityType       `json:"entity_type_a" binding:"required"`
	EntityTypeB      EntityType       `json:"entity_type_b" binding:"required"`
	RelationshipType RelationshipType `json:"relationship_type" binding:"required"`
	Severity         RuleSeverity     `json:"severity" binding:"required"`
	Description      string           `json:"description"`
	TaxImpact        string           `json:"tax_impact"`
	Jurisdiction     string           `json:"jurisdiction"`
}

func (input *NewCompatibilityRule) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[CompatibilityRule](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := input.EntityTypeA.Validate(); err != nil {
		return err
	}
	if err := input.EntityTypeB.Validate(); err != nil {
		return err
	}
	if err := input.RelationshipType.Validate(); err != nil {
		return err
	}
	if err := input.Severity.Validate(); err != nil {
		return err
	}
	return nil
}

func CreateCompatibilityRule(ctx context.Context, input *NewCompatibilityRule) (*CompatibilityRule, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	rule := CompatibilityRule{
		BusinessId:       businessId,
		EntityTypeA:      input.EntityTypeA,
		EntityTypeB:      input.EntityTypeB,
		RelationshipType: input.RelationshipType,
		Severity:         input.Severity,
		Description:      input.Description,
		TaxImpact:        input.TaxImpact,
		Jurisdiction:     input.Jurisdiction,
		IsActive:         utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func UpdateCompatibilityRule(ctx context.Context, id int, input *NewCompatibilityRule) (*CompatibilityRule, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	rule, err := utils.FetchModel[CompatibilityRule](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&rule).Updates(map[string]interface{}{
		"EntityTypeA":      input.EntityTypeA,
		"EntityTypeB":      input.EntityTypeB,
		"RelationshipType": input.RelationshipType,
		"Severity":         input.Severity,
		"Description":      input.Description,
		"TaxImpact":        input.TaxImpact,
		"Jurisdiction":     input.Jurisdiction,
	}).Error
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func DeleteCompatibilityRule(ctx context.Context, id int) (*CompatibilityRule, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	rule, err := utils.FetchModel[CompatibilityRule](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func ListCompatibilityRules(ctx context.Context) ([]*CompatibilityRule, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[CompatibilityRule](ctx, businessId)
}

// RuleViolation is one finding of a compatibility check. Severity propagates
// directly from the rule.
type RuleViolation struct {
	RuleId           int              `json:"rule_id"`
	EntityTypeA      EntityType       `json:"entity_type_a"`
	EntityTypeB      EntityType       `json:"entity_type_b"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Severity         RuleSeverity     `json:"severity"`
	Message          string           `json:"message"`
}

// evaluateCompatibilityRules checks each rule against the set of entity
// types present. Pairwise lookup over a small type set, not a traversal.
func evaluateCompatibilityRules(rules []*CompatibilityRule, typeSet map[EntityType]bool) []RuleViolation {
	var violations []RuleViolation
	for _, rule := range rules {
		if rule.IsActive != nil && !*rule.IsActive {
			continue
		}
		if !typeSet[rule.EntityTypeA] {
			continue
		}
		hasB := typeSet[rule.EntityTypeB]

		switch rule.RelationshipType {
		case RelationshipTypeRequired:
			if !hasB {
				violations = append(violations, RuleViolation{
					RuleId:           rule.ID,
					EntityTypeA:      rule.EntityTypeA,
					EntityTypeB:      rule.EntityTypeB,
					RelationshipType: rule.RelationshipType,
					Severity:         rule.Severity,
					Message:          fmt.Sprintf("%s requires a %s in the structure: %s", rule.EntityTypeA, rule.EntityTypeB, rule.Description),
				})
			}
		case RelationshipTypeIncompatible:
			if hasB {
				violations = append(violations, RuleViolation{
					RuleId:           rule.ID,
					EntityTypeA:      rule.EntityTypeA,
					EntityTypeB:      rule.EntityTypeB,
					RelationshipType: rule.RelationshipType,
					Severity:         rule.Severity,
					Message:          fmt.Sprintf("%s is incompatible with %s: %s", rule.EntityTypeA, rule.EntityTypeB, rule.Description),
				})
			}
		case RelationshipTypeRecommended, RelationshipTypeSynergistic, RelationshipTypeConditional:
			// informational only
			if hasB {
				violations = append(violations, RuleViolation{
					RuleId:           rule.ID,
					EntityTypeA:      rule.EntityTypeA,
					EntityTypeB:      rule.EntityTypeB,
					RelationshipType: rule.RelationshipType,
					Severity:         RuleSeverityInfo,
					Message:          fmt.Sprintf("%s + %s (%s): %s", rule.EntityTypeA, rule.EntityTypeB, rule.RelationshipType, rule.Description),
				})
			}
		}
	}
	return violations
}

// CheckStructureCompatibility evaluates all rules against the distinct
// entity types present among the structure's entities.
func CheckStructureCompatibility(ctx context.Context, structureId int) ([]RuleViolation, error) {

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
		Preload("OwnerEntity").
		Where("business_id = ? AND structure_id = ?", businessId, structureId).
		Find(&edges).Error; err != nil {
		return nil, err
	}

	typeSet := make(map[EntityType]bool)
	for _, e := range edges {
		if e.OwnedEntity != nil {
			typeSet[e.OwnedEntity.EntityType] = true
		}
		if e.OwnerEntity != nil {
			typeSet[e.OwnerEntity.EntityType] = true
		}
	}

	rules, err := utils.FetchAllModels[CompatibilityRule](ctx, businessId)
	if err != nil {
		return nil, err
	}

	return evaluateCompatibilityRules(rules, typeSet), nil
}
