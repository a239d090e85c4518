package event

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

// Publisher is the event port: the classifier's range-changed notifications
// are handed to it one at a time. Delivery semantics are the implementation's
// concern.
type Publisher interface {
	PublishRangeChanged(ctx context.Context, event domain.DelinquencyRangeChanged) error
}

// RedisPublisher fans events out on a redis pub/sub channel as JSON.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishRangeChanged(ctx context.Context, event domain.DelinquencyRangeChanged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return customError.NewBusinessError(customError.ErrCodeEventPublish, "marshal range-changed event", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return customError.NewBusinessError(customError.ErrCodeEventPublish, "publish range-changed event", err)
	}
	return nil
}

// LogPublisher records events in the structured log. Useful in development
// and as a fallback when no broker is configured.
type LogPublisher struct {
	log *logrus.Logger
}

func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishRangeChanged(_ context.Context, event domain.DelinquencyRangeChanged) error {
	p.log.WithFields(logrus.Fields{
		"loan_id":            event.LoanID,
		"installment_number": event.InstallmentNumber,
		"previous_range":     event.PreviousRange,
		"new_range":          event.NewRange,
		"as_of_date":         event.AsOfDate.Format("2006-01-02"),
	}).Info("delinquency range changed")
	return nil
}
