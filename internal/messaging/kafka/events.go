package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// Topics для Kafka
const (
	TopicOrderEvents   = "shop.orders.events"
	TopicProductEvents = "shop.products.events"
)

// TopicFor возвращает topic событий для вида сущности.
func TopicFor(kind domain.Kind) string {
	return "shop." + kind.Plural() + ".events"
}

// EventTypeFor собирает тип события вида "order.saved".
func EventTypeFor(kind domain.Kind, action string) EventType {
	return EventType(string(kind) + "." + action)
}

// EntityEvent описывает изменение сущности в хранилище.
type EntityEvent struct {
	EventID   string      `json:"event_id"`
	EventType EventType   `json:"event_type"`
	Kind      domain.Kind `json:"kind"`
	EntityID  int64       `json:"entity_id"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEntityEvent создаёт событие с новым идентификатором. Для удаления payload пустой.
func NewEntityEvent(kind domain.Kind, action string, entityID int64, payload any) *EntityEvent {
	return &EntityEvent{
		EventID:   uuid.NewString(),
		EventType: EventTypeFor(kind, action),
		Kind:      kind,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
