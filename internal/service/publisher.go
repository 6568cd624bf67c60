package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/config"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
	"github.com/matchwatch/vlr-results-notifier-go/pkg/logger"
)

// MatchCompletedEvent is the payload broadcast for each delivered result.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type MatchCompletedEvent struct {
	EventID    uuid.UUID  `json:"event_id"`
	MatchLink  string     `json:"match_link"`
	TeamA      string     `json:"team_a"`
	TeamB      string     `json:"team_b"`
	ScoreA     string     `json:"score_a"`
	ScoreB     string     `json:"score_b"`
	Status     string     `json:"status"`
	Phase      string     `json:"phase"`
	Tournament string     `json:"tournament"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// MatchEventPublisher publishes completed-match events to RabbitMQ with
// publisher confirms.
type MatchEventPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	mu      sync.RWMutex
}

// NewMatchEventPublisher connects to the broker and declares the exchange,
// queue and binding.
func NewMatchEventPublisher(cfg *config.RabbitMQConfig) (*MatchEventPublisher, error) {
	mp := &MatchEventPublisher{
		config: cfg,
	}

	if err := mp.connect(); err != nil {
		return nil, err
	}

	return mp, nil
}

func (mp *MatchEventPublisher) connect() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		mp.config.User, mp.config.Password, mp.config.Host, mp.config.Port)

	conn, err := amqp.Dial(connURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(
		mp.config.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		mp.config.Queue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		amqp.Table{
			"x-message-ttl": 86400000, // 24 hours
		},
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(
		mp.config.Queue,      // queue name
		mp.config.RoutingKey, // routing key
		mp.config.Exchange,   // exchange
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	mp.conn = conn
	mp.channel = ch

	logger.Log.Info("Connected to RabbitMQ",
		zap.String("exchange", mp.config.Exchange),
		zap.String("queue", mp.config.Queue),
	)

	return nil
}

// PublishCompleted broadcasts one completed match and waits for the broker's
// acknowledgement.
func (mp *MatchEventPublisher) PublishCompleted(ctx context.Context, match *models.Match) error {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if mp.channel == nil {
		return fmt.Errorf("channel is not initialized")
	}

	event := MatchCompletedEvent{
		EventID:    uuid.New(),
		MatchLink:  match.ID,
		TeamA:      match.TeamA,
		TeamB:      match.TeamB,
		ScoreA:     match.ScoreA,
		ScoreB:     match.ScoreB,
		Status:     match.Status,
		Phase:      match.Phase,
		Tournament: match.Tournament,
		StartTime:  match.StartTime,
		OccurredAt: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	confirms := mp.channel.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = mp.channel.PublishWithContext(
		ctx,
		mp.config.Exchange,   // exchange
		mp.config.RoutingKey, // routing key
		true,                 // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.EventID.String(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("message was not acknowledged by broker")
		}
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for publish confirmation")
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Log.Debug("Published match event",
		zap.String("eventId", event.EventID.String()),
		zap.String("matchLink", event.MatchLink),
		zap.String("routingKey", mp.config.RoutingKey),
	)

	return nil
}

// Close shuts down the channel and connection.
func (mp *MatchEventPublisher) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var errs []error
	if mp.channel != nil {
		if err := mp.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if mp.conn != nil {
		if err := mp.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}

	logger.Log.Info("Match event publisher closed")
	return nil
}

// IsHealthy reports whether the broker connection is open.
func (mp *MatchEventPublisher) IsHealthy() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.conn != nil && !mp.conn.IsClosed() && mp.channel != nil
}
