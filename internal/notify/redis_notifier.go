package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/service"
)

// RedisNotifier pushes events as JSON onto a Redis list. The transport side
// drains the queue with BLPOP, so delivery survives a transport restart.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb: rdb,
		log: log.With().Str("component", "redis_notifier").Logger(),
	}
}

var _ Notifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) WarningRaised(ctx context.Context, sessionID uuid.UUID, userID int64, thresholdMinutes int) error {
	return n.push(ctx, Event{
		Kind:             EventWarningRaised,
		SessionID:        sessionID,
		UserID:           userID,
		ThresholdMinutes: thresholdMinutes,
	})
}

func (n *RedisNotifier) AutoSubmitted(ctx context.Context, sessionID uuid.UUID, userID int64, grade *service.GradeResult) error {
	return n.push(ctx, Event{
		Kind:      EventAutoSubmitted,
		SessionID: sessionID,
		UserID:    userID,
		Grade:     grade,
	})
}

func (n *RedisNotifier) push(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.RPush(ctx, config.QueueKey.SessionEventsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	n.log.Debug().
		Str("kind", string(ev.Kind)).
		Str("session_id", ev.SessionID.String()).
		Msg("Event enqueued")
	return nil
}
