package models

import "errors"

type EntityType string

const (
	EntityTypeCorporation    EntityType = "Corporation"
	EntityTypeTrust          EntityType = "Trust"
	EntityTypeFund           EntityType = "Fund"
	EntityTypeLLC            EntityType = "LLC"
	EntityTypeFoundation     EntityType = "Foundation"
	EntityTypeHoldingCompany EntityType = "HoldingCompany"
)

func (t EntityType) Validate() error {
	switch t {
	case EntityTypeCorporation, EntityTypeTrust, EntityTypeFund,
		EntityTypeLLC, EntityTypeFoundation, EntityTypeHoldingCompany:
		return nil
	}
	return errors.New("invalid entity type")
}

type PersonType string

const (
	PersonTypeNatural PersonType = "Natural"
	PersonTypeLegal   PersonType = "Legal"
)

func (t PersonType) Validate() error {
	switch t {
	case PersonTypeNatural, PersonTypeLegal:
		return nil
	}
	return errors.New("invalid person type")
}

type StructureStatus string

const (
	StructureStatusDrafting        StructureStatus = "Drafting"
	StructureStatusSentForApproval StructureStatus = "SentForApproval"
	StructureStatusApproved        StructureStatus = "Approved"
)

func (s StructureStatus) Validate() error {
	switch s {
	case StructureStatusDrafting, StructureStatusSentForApproval, StructureStatusApproved:
		return nil
	}
	return errors.New("invalid structure status")
}

// OwnerKind tags the polymorphic owner side of an edge.
type OwnerKind string

const (
	OwnerKindParty  OwnerKind = "Party"
	OwnerKindEntity OwnerKind = "Entity"
)

func (k OwnerKind) Validate() error {
	switch k {
	case OwnerKindParty, OwnerKindEntity:
		return nil
	}
	return errors.New("invalid owner kind")
}

type RelationshipType string

const (
	RelationshipTypeRequired     RelationshipType = "Required"
	RelationshipTypeRecommended  RelationshipType = "Recommended"
	RelationshipTypeIncompatible RelationshipType = "Incompatible"
	RelationshipTypeConditional  RelationshipType = "Conditional"
	RelationshipTypeSynergistic  RelationshipType = "Synergistic"
)

func (t RelationshipType) Validate() error {
	switch t {
	case RelationshipTypeRequired, RelationshipTypeRecommended, RelationshipTypeIncompatible,
		RelationshipTypeConditional, RelationshipTypeSynergistic:
		return nil
	}
	return errors.New("invalid relationship type")
}

type RuleSeverity string

const (
	RuleSeverityError   RuleSeverity = "Error"
	RuleSeverityWarning RuleSeverity = "Warning"
	RuleSeverityInfo    RuleSeverity = "Info"
)

func (s RuleSeverity) Validate() error {
	switch s {
	case RuleSeverityError, RuleSeverityWarning, RuleSeverityInfo:
		return nil
	}
	return errors.New("invalid rule severity")
}

type DeadlineType string

const (
	DeadlineTypeSingle    DeadlineType = "Single"
	DeadlineTypeRecurring DeadlineType = "Recurring"
)

type RecurrencePattern string

const (
	RecurrencePatternMonthly    RecurrencePattern = "Monthly"
	RecurrencePatternQuarterly  RecurrencePattern = "Quarterly"
	RecurrencePatternSemiannual RecurrencePattern = "Semiannual"
	RecurrencePatternAnnual     RecurrencePattern = "Annual"
	RecurrencePatternBiennial   RecurrencePattern = "Biennial"
	RecurrencePatternCustom     RecurrencePattern = "Custom"
)

func (p RecurrencePattern) Validate() error {
	switch p {
	case RecurrencePatternMonthly, RecurrencePatternQuarterly, RecurrencePatternSemiannual,
		RecurrencePatternAnnual, RecurrencePatternBiennial, RecurrencePatternCustom:
		return nil
	}
	return errors.New("invalid recurrence pattern")
}

type CustomRecurrenceUnit string

const (
	CustomRecurrenceUnitDays   CustomRecurrenceUnit = "Days"
	CustomRecurrenceUnitMonths CustomRecurrenceUnit = "Months"
)

// AlertStatus is computed from next_deadline; it is never stored.
type AlertStatus string

const (
	AlertStatusScheduled  AlertStatus = "Scheduled"
	AlertStatusDueSoon    AlertStatus = "DueSoon"
	AlertStatusOverdue    AlertStatus = "Overdue"
	AlertStatusNoDeadline AlertStatus = "NoDeadline"
)

// AllocationState classifies the percentage total of one owned entity
// within a structure's validation report.
type AllocationState string

const (
	AllocationStateComplete    AllocationState = "Complete"
	AllocationStateUnder       AllocationState = "Under"
	AllocationStateOver        AllocationState = "Over"
	AllocationStateNoOwnership AllocationState = "NoOwnership"
)

type OwnershipEventAction string

const (
	OwnershipEventActionCreate OwnershipEventAction = "C"
	OwnershipEventActionUpdate OwnershipEventAction = "U"
	OwnershipEventActionDelete OwnershipEventAction = "D"
)

type OwnershipReferenceType string

const (
	OwnershipReferenceTypeEdge        OwnershipReferenceType = "OE"
	OwnershipReferenceTypeStructure   OwnershipReferenceType = "ST"
	OwnershipReferenceTypeBeneficiary OwnershipReferenceType = "BE"
)

type OutboxPublishStatus = string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
