package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateNextDeadlineOffsets(t *testing.T) {
	from := day(2024, time.January, 15)

	cases := []struct {
		pattern RecurrencePattern
		want    time.Time
	}{
		{RecurrencePatternMonthly, day(2024, time.February, 15)},
		{RecurrencePatternQuarterly, day(2024, time.April, 15)},
		{RecurrencePatternSemiannual, day(2024, time.July, 15)},
		{RecurrencePatternAnnual, day(2025, time.January, 15)},
		{RecurrencePatternBiennial, day(2026, time.January, 15)},
	}
	for _, tc := range cases {
		alert := &DeadlineAlert{RecurrencePattern: tc.pattern}
		assert.Equal(t, tc.want, alert.CalculateNextDeadline(from), string(tc.pattern))
	}
}

func TestCalculateNextDeadlineCustom(t *testing.T) {
	from := day(2024, time.March, 1)

	days := &DeadlineAlert{
		RecurrencePattern: RecurrencePatternCustom,
		CustomUnit:        CustomRecurrenceUnitDays,
		CustomAmount:      45,
	}
	assert.Equal(t, day(2024, time.April, 15), days.CalculateNextDeadline(from))

	months := &DeadlineAlert{
		RecurrencePattern: RecurrencePatternCustom,
		CustomUnit:        CustomRecurrenceUnitMonths,
		CustomAmount:      18,
	}
	assert.Equal(t, day(2025, time.September, 1), months.CalculateNextDeadline(from))
}

func TestCalculateNextDeadlineMonthEndNormalization(t *testing.T) {
	// Jan 31 + 1 month normalizes through Feb per time.AddDate.
	alert := &DeadlineAlert{RecurrencePattern: RecurrencePatternMonthly}
	got := alert.CalculateNextDeadline(day(2024, time.January, 31))
	assert.Equal(t, day(2024, time.March, 2), got)
}

func TestComputeStatus(t *testing.T) {
	today := day(2026, time.March, 1)

	noDeadline := &DeadlineAlert{AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusNoDeadline, noDeadline.ComputeStatus(today))

	past := day(2026, time.February, 20)
	overdue := &DeadlineAlert{NextDeadline: &past, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusOverdue, overdue.ComputeStatus(today))
	assert.True(t, overdue.IsOverdue(today))

	soon := day(2026, time.March, 20)
	dueSoon := &DeadlineAlert{NextDeadline: &soon, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusDueSoon, dueSoon.ComputeStatus(today))

	far := day(2026, time.June, 1)
	scheduled := &DeadlineAlert{NextDeadline: &far, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusScheduled, scheduled.ComputeStatus(today))

	// the deadline day itself is due, not overdue
	sameDay := day(2026, time.March, 1)
	onDay := &DeadlineAlert{NextDeadline: &sameDay, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusDueSoon, onDay.ComputeStatus(today))
	assert.False(t, onDay.IsOverdue(today))
}

func TestComputeStatusNoticeWindowBoundary(t *testing.T) {
	today := day(2026, time.March, 1)

	boundary := day(2026, time.March, 31) // exactly 30 days out
	alert := &DeadlineAlert{NextDeadline: &boundary, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusDueSoon, alert.ComputeStatus(today))

	outside := day(2026, time.April, 1)
	alert = &DeadlineAlert{NextDeadline: &outside, AdvanceNoticeDays: 30}
	assert.Equal(t, AlertStatusScheduled, alert.ComputeStatus(today))
}

func TestNewDeadlineAlertValidateConfig(t *testing.T) {
	ctx := context.Background()
	fixed := day(2026, time.December, 31)

	single := &NewDeadlineAlert{Name: "Filing", DeadlineType: DeadlineTypeSingle, FixedDate: &fixed}
	assert.NoError(t, single.validate(ctx, "biz", 0))

	singleWithPattern := &NewDeadlineAlert{
		Name: "Filing", DeadlineType: DeadlineTypeSingle,
		FixedDate: &fixed, RecurrencePattern: RecurrencePatternAnnual,
	}
	assert.ErrorIs(t, singleWithPattern.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)

	singleNoDate := &NewDeadlineAlert{Name: "Filing", DeadlineType: DeadlineTypeSingle}
	assert.ErrorIs(t, singleNoDate.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)

	recurring := &NewDeadlineAlert{
		Name: "Accounts", DeadlineType: DeadlineTypeRecurring,
		RecurrencePattern: RecurrencePatternQuarterly,
	}
	assert.NoError(t, recurring.validate(ctx, "biz", 0))

	recurringWithFixed := &NewDeadlineAlert{
		Name: "Accounts", DeadlineType: DeadlineTypeRecurring,
		RecurrencePattern: RecurrencePatternQuarterly, FixedDate: &fixed,
	}
	assert.ErrorIs(t, recurringWithFixed.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)

	customMissingAmount := &NewDeadlineAlert{
		Name: "Review", DeadlineType: DeadlineTypeRecurring,
		RecurrencePattern: RecurrencePatternCustom, CustomUnit: CustomRecurrenceUnitDays,
	}
	assert.ErrorIs(t, customMissingAmount.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)

	customMissingUnit := &NewDeadlineAlert{
		Name: "Review", DeadlineType: DeadlineTypeRecurring,
		RecurrencePattern: RecurrencePatternCustom, CustomAmount: 10,
	}
	assert.ErrorIs(t, customMissingUnit.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)

	customOk := &NewDeadlineAlert{
		Name: "Review", DeadlineType: DeadlineTypeRecurring,
		RecurrencePattern: RecurrencePatternCustom,
		CustomUnit:        CustomRecurrenceUnitMonths, CustomAmount: 10,
	}
	assert.NoError(t, customOk.validate(ctx, "biz", 0))

	unknownType := &NewDeadlineAlert{Name: "Bad", DeadlineType: "Weekly"}
	assert.ErrorIs(t, unknownType.validate(ctx, "biz", 0), ErrInvalidDeadlineConfig)
}
