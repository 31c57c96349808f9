package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionStatus(t *testing.T) {
	assert.True(t, canTransitionStatus(StructureStatusDrafting, StructureStatusSentForApproval))
	assert.True(t, canTransitionStatus(StructureStatusSentForApproval, StructureStatusApproved))
	// rejection path
	assert.True(t, canTransitionStatus(StructureStatusSentForApproval, StructureStatusDrafting))

	assert.False(t, canTransitionStatus(StructureStatusDrafting, StructureStatusApproved))
	assert.False(t, canTransitionStatus(StructureStatusApproved, StructureStatusDrafting))
	assert.False(t, canTransitionStatus(StructureStatusApproved, StructureStatusSentForApproval))
	assert.False(t, canTransitionStatus(StructureStatusDrafting, StructureStatusDrafting))
}

func TestTransitionEffects(t *testing.T) {
	effects := transitionEffects(StructureStatusDrafting, StructureStatusSentForApproval)
	assert.Contains(t, effects, EffectPublishStatusEvent)
	assert.Contains(t, effects, EffectNotifyApprovalQueue)

	effects = transitionEffects(StructureStatusSentForApproval, StructureStatusApproved)
	assert.Contains(t, effects, EffectPublishStatusEvent)
	assert.NotContains(t, effects, EffectNotifyApprovalQueue)
}
