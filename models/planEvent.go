package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanEvent is a transactional-outbox row: it is written inside the same
// DB transaction as the state change it describes, and published to
// external subscribers (UI badges, mailers) by the dispatcher after
// commit. The core never reads these rows back for its own computations.
type PlanEvent struct {
	ID               int        `gorm:"primary_key" json:"id"`
	CondominiumId    string     `gorm:"index;not null;size:36" json:"condominium_id"`
	PlanId           int        `gorm:"index;not null" json:"plan_id"`
	Event            string     `gorm:"size:50;not null" json:"event"`
	Payload          []byte     `gorm:"type:json" json:"payload"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	PublishedAt      *time.Time `json:"published_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:50" json:"locked_by"`
	CorrelationId    string     `gorm:"size:50" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// EmitPlanEvent writes the event record inside the caller's DB transaction
// but does NOT publish. Publishing is performed asynchronously by the
// plan-event dispatcher after commit.
func EmitPlanEvent(ctx context.Context, tx *gorm.DB, condominiumId string, planId int, event string, payload interface{}) error {

	var payloadInByte []byte
	var err error
	if payload != nil {
		payloadInByte, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	record := PlanEvent{
		CondominiumId: condominiumId,
		PlanId:        planId,
		Event:         event,
		Payload:       payloadInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
