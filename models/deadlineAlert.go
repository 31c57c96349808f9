package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"gorm.io/gorm"
)

// DeadlineAlert is a compliance obligation attached to entities and/or
// owners, with single or recurring deadline semantics. Its status is always
// computed from next_deadline, never stored.
type DeadlineAlert struct {
	ID                 int                  `gorm:"primary_key" json:"id"`
	BusinessId         string               `gorm:"index;not null" json:"business_id"`
	Name               string               `gorm:"size:255;not null" json:"name" binding:"required"`
	Description        string               `gorm:"type:text" json:"description"`
	DeadlineType       DeadlineType         `gorm:"type:enum('Single','Recurring');not null" json:"deadline_type"`
	FixedDate          *time.Time           `json:"fixed_date"`
	RecurrencePattern  RecurrencePattern    `gorm:"type:enum('Monthly','Quarterly','Semiannual','Annual','Biennial','Custom')" json:"recurrence_pattern"`
	CustomUnit         CustomRecurrenceUnit `gorm:"type:enum('Days','Months')" json:"custom_unit"`
	CustomAmount       int                  `json:"custom_amount"`
	AdvanceNoticeDays  int                  `gorm:"not null;default:30" json:"advance_notice_days"`
	AutoCalculateNext  *bool                `gorm:"not null;default:true" json:"auto_calculate_next"`
	LastCompleted      *time.Time           `json:"last_completed"`
	NextDeadline       *time.Time           `gorm:"index" json:"next_deadline"`
	CreatedAt          time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time            `gorm:"autoUpdateTime" json:"updated_at"`

	Entities []Entity `gorm:"many2many:deadline_alert_entities" json:"entities"`
	Owners   []Owner  `gorm:"many2many:deadline_alert_owners" json:"owners"`
}

type NewDeadlineAlert struct {
	Name              string               `json:"name" binding:"required"`
	Description       string               `json:"description"`
	DeadlineType      DeadlineType         `json:"deadline_type" binding:"required"`
	FixedDate         *time.Time           `json:"fixed_date"`
	RecurrencePattern RecurrencePattern    `json:"recurrence_pattern"`
	CustomUnit        CustomRecurrenceUnit `json:"custom_unit"`
	CustomAmount      int                  `json:"custom_amount"`
	AdvanceNoticeDays int                  `json:"advance_notice_days"`
	AutoCalculateNext *bool                `json:"auto_calculate_next"`
	EntityIds         []int                `json:"entity_ids"`
	OwnerIds          []int                `json:"owner_ids"`
}

// validate enforces the single/recurring field exclusivity.
func (input *NewDeadlineAlert) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[DeadlineAlert](ctx, businessId, id); err != nil {
			return err
		}
	}
	switch input.DeadlineType {
	case DeadlineTypeSingle:
		if input.FixedDate == nil || input.RecurrencePattern != "" {
			return ErrInvalidDeadlineConfig
		}
	case DeadlineTypeRecurring:
		if input.FixedDate != nil || input.RecurrencePattern == "" {
			return ErrInvalidDeadlineConfig
		}
		if err := input.RecurrencePattern.Validate(); err != nil {
			return ErrInvalidDeadlineConfig
		}
		if input.RecurrencePattern == RecurrencePatternCustom {
			if input.CustomAmount <= 0 {
				return ErrInvalidDeadlineConfig
			}
			if input.CustomUnit != CustomRecurrenceUnitDays && input.CustomUnit != CustomRecurrenceUnitMonths {
				return ErrInvalidDeadlineConfig
			}
		}
	default:
		return ErrInvalidDeadlineConfig
	}
	if len(input.EntityIds) > 0 {
		if err := utils.ValidateResourcesId[Entity](ctx, businessId, input.EntityIds); err != nil {
			return err
		}
	}
	if len(input.OwnerIds) > 0 {
		if err := utils.ValidateResourcesId[Owner](ctx, businessId, input.OwnerIds); err != nil {
			return err
		}
	}
	return nil
}

// CalculateNextDeadline applies the alert's recurrence offset to a
// completion date. Pure; exhaustive over the known patterns.
func (alert *DeadlineAlert) CalculateNextDeadline(from time.Time) time.Time {
	switch alert.RecurrencePattern {
	case RecurrencePatternMonthly:
		return from.AddDate(0, 1, 0)
	case RecurrencePatternQuarterly:
		return from.AddDate(0, 3, 0)
	case RecurrencePatternSemiannual:
		return from.AddDate(0, 6, 0)
	case RecurrencePatternAnnual:
		return from.AddDate(1, 0, 0)
	case RecurrencePatternBiennial:
		return from.AddDate(2, 0, 0)
	case RecurrencePatternCustom:
		if alert.CustomUnit == CustomRecurrenceUnitMonths {
			return from.AddDate(0, alert.CustomAmount, 0)
		}
		return from.AddDate(0, 0, alert.CustomAmount)
	}
	return from
}

// ComputeStatus derives the alert state from next_deadline and today.
func (alert *DeadlineAlert) ComputeStatus(today time.Time) AlertStatus {
	if alert.NextDeadline == nil {
		return AlertStatusNoDeadline
	}
	today = today.Truncate(24 * time.Hour)
	next := alert.NextDeadline.Truncate(24 * time.Hour)
	if next.Before(today) {
		return AlertStatusOverdue
	}
	daysUntil := int(next.Sub(today).Hours() / 24)
	if daysUntil <= alert.AdvanceNoticeDays {
		return AlertStatusDueSoon
	}
	return AlertStatusScheduled
}

func (alert *DeadlineAlert) IsOverdue(today time.Time) bool {
	return alert.ComputeStatus(today) == AlertStatusOverdue
}

func CreateDeadlineAlert(ctx context.Context, input *NewDeadlineAlert) (*DeadlineAlert, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	advance := input.AdvanceNoticeDays
	if advance <= 0 {
		advance = 30
	}
	auto := input.AutoCalculateNext
	if auto == nil {
		auto = utils.NewTrue()
	}

	alert := DeadlineAlert{
		BusinessId:        businessId,
		Name:              input.Name,
		Description:       input.Description,
		DeadlineType:      input.DeadlineType,
		FixedDate:         input.FixedDate,
		RecurrencePattern: input.RecurrencePattern,
		CustomUnit:        input.CustomUnit,
		CustomAmount:      input.CustomAmount,
		AdvanceNoticeDays: advance,
		AutoCalculateNext: auto,
	}
	if input.DeadlineType == DeadlineTypeSingle {
		alert.NextDeadline = input.FixedDate
	} else if *auto {
		// first occurrence counts from creation
		next := alert.CalculateNextDeadline(time.Now().UTC())
		alert.NextDeadline = &next
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}
		if len(input.EntityIds) > 0 {
			var entities []Entity
			if err := tx.Where("business_id = ? AND id IN ?", businessId, input.EntityIds).
				Find(&entities).Error; err != nil {
				return err
			}
			if err := tx.Model(&alert).Association("Entities").Append(&entities); err != nil {
				return err
			}
		}
		if len(input.OwnerIds) > 0 {
			var owners []Owner
			if err := tx.Where("business_id = ? AND id IN ?", businessId, input.OwnerIds).
				Find(&owners).Error; err != nil {
				return err
			}
			if err := tx.Model(&alert).Association("Owners").Append(&owners); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func UpdateDeadlineAlert(ctx context.Context, id int, input *NewDeadlineAlert) (*DeadlineAlert, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	alert, err := utils.FetchModel[DeadlineAlert](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	updates := map[string]interface{}{
		"Name":              input.Name,
		"Description":       input.Description,
		"DeadlineType":      input.DeadlineType,
		"FixedDate":         input.FixedDate,
		"RecurrencePattern": input.RecurrencePattern,
		"CustomUnit":        input.CustomUnit,
		"CustomAmount":      input.CustomAmount,
	}
	if input.AdvanceNoticeDays > 0 {
		updates["AdvanceNoticeDays"] = input.AdvanceNoticeDays
	}
	if input.AutoCalculateNext != nil {
		updates["AutoCalculateNext"] = input.AutoCalculateNext
	}
	if input.DeadlineType == DeadlineTypeSingle {
		updates["NextDeadline"] = input.FixedDate
	}
	if err := db.WithContext(ctx).Model(&alert).Updates(updates).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func DeleteDeadlineAlert(ctx context.Context, id int) (*DeadlineAlert, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	alert, err := utils.FetchModel[DeadlineAlert](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&alert).Association("Entities").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&alert).Association("Owners").Clear(); err != nil {
			return err
		}
		return tx.Delete(&alert).Error
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// MarkDeadlineCompleted records a completion and, for recurring alerts with
// auto-calculation on, rolls next_deadline forward by the pattern offset.
func MarkDeadlineCompleted(ctx context.Context, id int, completedOn time.Time) (*DeadlineAlert, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	alert, err := utils.FetchModel[DeadlineAlert](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"LastCompleted": completedOn,
	}
	if alert.DeadlineType == DeadlineTypeRecurring &&
		alert.AutoCalculateNext != nil && *alert.AutoCalculateNext {
		next := alert.CalculateNextDeadline(completedOn)
		updates["NextDeadline"] = next
		alert.NextDeadline = &next
	}
	alert.LastCompleted = &completedOn

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&alert).Updates(updates).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func GetDeadlineAlert(ctx context.Context, id int) (*DeadlineAlert, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[DeadlineAlert](ctx, businessId, id, "Entities", "Owners")
}

func ListDeadlineAlerts(ctx context.Context) ([]*DeadlineAlert, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[DeadlineAlert](ctx, businessId, "Entities", "Owners")
}

// ListDueAlerts returns alerts whose next deadline falls within the window
// (or is already past), for the deadline-scan binary and notifiers.
func ListDueAlerts(ctx context.Context, within time.Duration) ([]*DeadlineAlert, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cutoff := time.Now().Add(within)
	db := config.GetDB()
	var alerts []*DeadlineAlert
	err := db.WithContext(ctx).
		Preload("Entities").
		Preload("Owners").
		Where("business_id = ? AND next_deadline IS NOT NULL AND next_deadline <= ?", businessId, cutoff).
		Order("next_deadline").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
