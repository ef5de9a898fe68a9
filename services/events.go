package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"creaverse/models"
)

type EventType string

const (
	EventLike    EventType = EventType(models.NotificationLike)
	EventComment EventType = EventType(models.NotificationComment)
	EventFollow  EventType = EventType(models.NotificationFollow)
	EventToken   EventType = EventType(models.NotificationToken)
	EventReview  EventType = EventType(models.NotificationReview)
	EventMention EventType = EventType(models.NotificationMention)

	EventMessage      EventType = "message"
	EventMessagesRead EventType = "messages_read"
	EventFeedPosted   EventType = "feed_posted"
	EventVoteCast     EventType = "vote_cast"
	EventPresence     EventType = "presence"
)

// Event is a domain event addressed to one user.
type Event struct {
	Type        EventType       `json:"type"`
	RecipientID int64           `json:"recipient_id"`
	ActorID     int64           `json:"actor_id"`
	EntityID    int64           `json:"entity_id,omitempty"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewEvent(typ EventType, recipientID, actorID, entityID int64, message string, data interface{}) Event {
	ev := Event{
		Type:        typ,
		RecipientID: recipientID,
		ActorID:     actorID,
		EntityID:    entityID,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

func (e Event) RoutingKey() string {
	return fmt.Sprintf("user.%d.%s", e.RecipientID, e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// rewardPoints are credited to the event recipient.
var rewardPoints = map[EventType]int64{
	EventLike:     1,
	EventComment:  2,
	EventReview:   3,
	EventVoteCast: 1,
	EventFollow:   2,
}

// onceRewards pay out at most once per recipient, actor and entity, so undo
// and redo cycles and broker redeliveries do not mint points.
var onceRewards = map[EventType]bool{
	EventLike:     true,
	EventReview:   true,
	EventVoteCast: true,
	EventFollow:   true,
}

// RewardKey identifies the action behind a once-only reward.
func (e Event) RewardKey() string {
	return fmt.Sprintf("%s:%d:%d:%d", e.Type, e.RecipientID, e.ActorID, e.EntityID)
}

// EventBus publishes to RabbitMQ when connected and otherwise hands the event
// to the dispatcher in-process.
type EventBus struct {
	mq         *RabbitMQ
	dispatcher *Dispatcher
}

func NewEventBus(mq *RabbitMQ, dispatcher *Dispatcher) *EventBus {
	return &EventBus{mq: mq, dispatcher: dispatcher}
}

func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	if ev.RecipientID == 0 {
		return nil
	}
	if b.mq.Connected() {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		err = b.mq.Publish(ctx, ev.RoutingKey(), body)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "RabbitMQ publish failed, dispatching in-process",
			"type", ev.Type, "recipient_id", ev.RecipientID, "error", err)
	}
	return b.dispatcher.Handle(ctx, ev)
}

// StartConsumer feeds every event from the broker into the dispatcher.
func (b *EventBus) StartConsumer(ctx context.Context, queueName string) error {
	return b.mq.Consume(ctx, queueName, "user.#", func(ctx context.Context, body []byte) {
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			slog.ErrorContext(ctx, "failed to unmarshal event", "error", err)
			return
		}
		if err := b.dispatcher.Handle(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "event dispatch failed", "type", ev.Type, "error", err)
		}
	})
}

// Dispatcher turns events into notifications, reward points and websocket
// frames.
type Dispatcher struct {
	notifications *NotificationService
	rewards       *RewardService
	ws            *WSConnManager
}

func NewDispatcher(notifications *NotificationService, rewards *RewardService, ws *WSConnManager) *Dispatcher {
	return &Dispatcher{notifications: notifications, rewards: rewards, ws: ws}
}

func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	if d == nil || ev.RecipientID == 0 {
		return nil
	}
	selfAction := ev.ActorID == ev.RecipientID

	if points := rewardPoints[ev.Type]; points > 0 && d.rewards != nil && (!selfAction || ev.Type == EventVoteCast) {
		var err error
		if onceRewards[ev.Type] {
			_, err = d.rewards.AwardOnce(ctx, ev.RecipientID, string(ev.Type), ev.RewardKey(), points)
		} else {
			err = d.rewards.Award(ctx, ev.RecipientID, string(ev.Type), points)
		}
		if err != nil {
			return fmt.Errorf("award %s: %w", ev.Type, err)
		}
	}

	notificationType := models.NotificationType(ev.Type)
	if !models.NotificationTypes[notificationType] {
		d.ws.Push(ev.RecipientID, string(ev.Type), ev.Data)
		return nil
	}
	if selfAction || d.notifications == nil {
		return nil
	}

	n, err := d.notifications.Create(ctx, &models.Notification{
		UserID:       ev.RecipientID,
		SourceUserID: ev.ActorID,
		Type:         notificationType,
		Message:      ev.Message,
		EntityID:     ev.EntityID,
	})
	if err != nil {
		return err
	}
	d.ws.Push(ev.RecipientID, "notification", n)
	return nil
}
