package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeRule(id int, a, b EntityType, rel RelationshipType, sev RuleSeverity) *CompatibilityRule {
	active := true
	return &CompatibilityRule{
		ID:               id,
		EntityTypeA:      a,
		EntityTypeB:      b,
		RelationshipType: rel,
		Severity:         sev,
		IsActive:         &active,
	}
}

func typeSet(types ...EntityType) map[EntityType]bool {
	set := make(map[EntityType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func TestEvaluateCompatibilityRulesRequired(t *testing.T) {
	rules := []*CompatibilityRule{
		activeRule(1, EntityTypeTrust, EntityTypeHoldingCompany, RelationshipTypeRequired, RuleSeverityError),
	}

	// A present, B missing: violation at the rule's severity
	violations := evaluateCompatibilityRules(rules, typeSet(EntityTypeTrust))
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].RuleId)
	assert.Equal(t, RuleSeverityError, violations[0].Severity)

	// both present: satisfied
	violations = evaluateCompatibilityRules(rules, typeSet(EntityTypeTrust, EntityTypeHoldingCompany))
	assert.Empty(t, violations)

	// A absent: rule does not fire at all
	violations = evaluateCompatibilityRules(rules, typeSet(EntityTypeCorporation))
	assert.Empty(t, violations)
}

func TestEvaluateCompatibilityRulesIncompatible(t *testing.T) {
	rules := []*CompatibilityRule{
		activeRule(2, EntityTypeFoundation, EntityTypeLLC, RelationshipTypeIncompatible, RuleSeverityWarning),
	}

	violations := evaluateCompatibilityRules(rules, typeSet(EntityTypeFoundation, EntityTypeLLC))
	require.Len(t, violations, 1)
	assert.Equal(t, RuleSeverityWarning, violations[0].Severity)

	violations = evaluateCompatibilityRules(rules, typeSet(EntityTypeFoundation))
	assert.Empty(t, violations)
}

func TestEvaluateCompatibilityRulesInformational(t *testing.T) {
	rules := []*CompatibilityRule{
		activeRule(3, EntityTypeTrust, EntityTypeHoldingCompany, RelationshipTypeSynergistic, RuleSeverityError),
		activeRule(4, EntityTypeFund, EntityTypeCorporation, RelationshipTypeRecommended, RuleSeverityWarning),
	}

	// informational relationships are always reported at Info severity,
	// whatever the rule says
	violations := evaluateCompatibilityRules(rules, typeSet(EntityTypeTrust, EntityTypeHoldingCompany))
	require.Len(t, violations, 1)
	assert.Equal(t, RuleSeverityInfo, violations[0].Severity)

	violations = evaluateCompatibilityRules(rules, typeSet(EntityTypeFund))
	assert.Empty(t, violations)
}

func TestEvaluateCompatibilityRulesSkipsInactive(t *testing.T) {
	rule := activeRule(5, EntityTypeTrust, EntityTypeLLC, RelationshipTypeIncompatible, RuleSeverityError)
	inactive := false
	rule.IsActive = &inactive

	violations := evaluateCompatibilityRules([]*CompatibilityRule{rule}, typeSet(EntityTypeTrust, EntityTypeLLC))
	assert.Empty(t, violations)
}

func TestEvaluateCompatibilityRulesEmptyInputs(t *testing.T) {
	assert.Empty(t, evaluateCompatibilityRules(nil, typeSet(EntityTypeTrust)))
	assert.Empty(t, evaluateCompatibilityRules([]*CompatibilityRule{
		activeRule(6, EntityTypeTrust, EntityTypeLLC, RelationshipTypeRequired, RuleSeverityError),
	}, nil))
}
