package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// percentTolerance absorbs 2-decimal rounding when summing allocations.
var (
	percentTolerance = decimal.RequireFromString("0.01")
	percentFull      = decimal.NewFromInt(100)
	percentCeiling   = percentFull.Add(percentTolerance)
)

// OwnershipEventRecord implements a transactional outbox: rows are written
// inside the caller's DB transaction and published to Pub/Sub asynchronously
// by the outbox dispatcher after commit.
type OwnershipEventRecord struct {
	ID            int                    `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId    string                 `gorm:"size:64;not null;index" json:"business_id"`
	OccurredAt    time.Time              `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int                    `json:"reference_id"`
	ReferenceType OwnershipReferenceType `gorm:"type:enum('OE','ST','BE')" json:"reference_type"`
	Action        OwnershipEventAction   `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj        []byte                 `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte                 `gorm:"type:blob" json:"new_obj"`

	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishOwnershipEvent writes the event record inside the caller's DB
// transaction but does NOT publish to Pub/Sub.
func PublishOwnershipEvent(ctx context.Context, db *gorm.DB, businessId string, refId int, refType OwnershipReferenceType, obj interface{}, oldObj interface{}, action OwnershipEventAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == OwnershipEventActionCreate || action == OwnershipEventActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == OwnershipEventActionUpdate || action == OwnershipEventActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := OwnershipEventRecord{
		BusinessId:    businessId,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToOwnershipEventMessage(record OwnershipEventRecord) config.OwnershipEventMessage {
	return config.OwnershipEventMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}
