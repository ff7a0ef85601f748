package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanEventChannel is the redis channel plan events are published on.
const PlanEventChannel = "plan-events"

const dispatcherLockKey = "plan-event-dispatcher"

// PlanEventDispatcher drains the plan_events outbox and publishes to redis.
// Safe to run on every instance: rows are claimed with SKIP LOCKED and a
// redis lock keeps publishing on a single instance per cycle, so subscribers
// see each event at most once per successful publish.
type PlanEventDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewPlanEventDispatcher(db *gorm.DB, logger *logrus.Logger) *PlanEventDispatcher {
	return &PlanEventDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *PlanEventDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *PlanEventDispatcher) dispatchOnce(ctx context.Context) {
	if d.DB == nil || config.GetRedisDB() == nil {
		return
	}

	// one publisher per cycle across instances
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, dispatcherLockKey, d.PollInterval, nil)
		if err != nil {
			if err != redislock.ErrNotObtained && d.Logger != nil {
				config.LogError(d.Logger, "workflow", "dispatchOnce", "obtain dispatcher lock", nil, err)
			}
			return
		}
		defer lock.Release(context.WithoutCancel(ctx))
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB

	var claimed []models.PlanEvent
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// poison events go terminal
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.PlanEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts = claimed[i].PublishAttempts + 1
			if err := tx.Model(&models.PlanEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, event := range claimed {
		if event.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		if pubErr := publishPlanEvent(ctx, &event); pubErr != nil {
			d.markPublishFailed(ctx, &event, pubErr)
			continue
		}
		d.markPublished(ctx, event.ID, now)
	}
}

// publishPlanEvent pushes the event envelope onto the redis channel.
func publishPlanEvent(ctx context.Context, event *models.PlanEvent) error {
	envelope := map[string]interface{}{
		"id":             event.ID,
		"condominium_id": event.CondominiumId,
		"plan_id":        event.PlanId,
		"event":          event.Event,
		"payload":        json.RawMessage(event.Payload),
		"correlation_id": event.CorrelationId,
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return config.GetRedisDB().Publish(ctx, PlanEventChannel, body).Err()
}

func (d *PlanEventDispatcher) markPublished(ctx context.Context, eventId int, now time.Time) {
	_ = d.DB.WithContext(ctx).Model(&models.PlanEvent{}).
		Where("id = ?", eventId).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusPublished,
			"published_at":    &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *PlanEventDispatcher) markPublishFailed(ctx context.Context, event *models.PlanEvent, err error) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	if d.MaxAttempts > 0 && event.PublishAttempts >= d.MaxAttempts {
		_ = db.Model(&models.PlanEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":          "PlanEventDispatcher",
				"condominium_id": event.CondominiumId,
				"event_id":       event.ID,
				"attempt":        event.PublishAttempts,
			}).Error("plan event moved to DEAD after max attempts: " + msg)
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < event.PublishAttempts; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = db.Model(&models.PlanEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "PlanEventDispatcher",
			"condominium_id":  event.CondominiumId,
			"event_id":        event.ID,
			"attempt":         event.PublishAttempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("plan event publish failed: " + msg)
	}
}
