package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier delivers operator alerts. Delivery is fire-and-forget: failures
// are logged and never reach the caller.
type Notifier interface {
	SendErrorMail(ctx context.Context, subject string, messages ...string)
}

// DefaultChannel is the pub/sub channel the mail relay subscribes to.
const DefaultChannel = "notifications:error-mail"

type errorMail struct {
	Subject  string    `json:"subject"`
	Messages []string  `json:"messages"`
	SentAt   time.Time `json:"sent_at"`
}

// RedisNotifier publishes error mails for the mail relay.
type RedisNotifier struct {
	client  redis.Cmdable
	channel string
}

func NewRedisNotifier(client redis.Cmdable, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) SendErrorMail(ctx context.Context, subject string, messages ...string) {
	zap.L().Error("error notification", zap.String("subject", subject), zap.Strings("messages", messages))

	payload, err := json.Marshal(errorMail{Subject: subject, Messages: messages, SentAt: time.Now().UTC()})
	if err != nil {
		observability.IncrementNotification("failed")
		zap.L().Warn("marshal error mail", zap.Error(err))
		return
	}
	// Detached so a canceled job context still lets the alert out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.client.Publish(pubCtx, n.channel, payload).Err(); err != nil {
		observability.IncrementNotification("failed")
		zap.L().Warn("publish error mail failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	observability.IncrementNotification("sent")
}

// LogNotifier only logs.
type LogNotifier struct{}

func (LogNotifier) SendErrorMail(ctx context.Context, subject string, messages ...string) {
	observability.IncrementNotification("logged")
	zap.L().Error("error notification", zap.String("subject", subject), zap.Strings("messages", messages))
}
