package notify

import (
	"context"
	"encoding/json"
	"time"

	"login-service/internal/util"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Producer is satisfied by client.KafkaProducer.
type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// ResetDelivery is the message consumed by the external mailer.
type ResetDelivery struct {
	EventID           string    `json:"event_id"`
	Email             string    `json:"email"`
	Subject           string    `json:"subject"`
	TemporaryPassword string    `json:"temporary_password"`
	RequestedAt       time.Time `json:"requested_at"`
}

// KafkaNotifier hands the temporary password to a mailer over Kafka. Delivery
// succeeds once the brokers acknowledge the write.
type KafkaNotifier struct {
	producer Producer
	topic    string
	now      func() time.Time
	logger   *zap.Logger
}

func NewKafkaNotifier(producer Producer, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		now:      time.Now,
		logger:   logger,
	}
}

func (n *KafkaNotifier) Deliver(ctx context.Context, identity, secret string) error {
	event := ResetDelivery{
		EventID:           uuid.NewString(),
		Email:             identity,
		Subject:           resetSubject,
		TemporaryPassword: secret,
		RequestedAt:       n.now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return oops.Code("NOTIFY_FAILED").Wrapf(err, "failed to encode reset delivery")
	}

	headers := map[string]string{
		"content-type": "application/json",
		"event-type":   "password_reset.delivery",
		"event-id":     event.EventID,
	}

	if err := n.producer.ProduceMessage(ctx, n.topic, []byte(identity), value, headers); err != nil {
		return oops.Code("NOTIFY_FAILED").With("topic", n.topic).Wrapf(err, "failed to publish reset delivery")
	}

	n.logger.Info("Password reset delivery published",
		util.Email("to", identity),
		util.String("topic", n.topic),
		util.String("event_id", event.EventID),
	)
	return nil
}
