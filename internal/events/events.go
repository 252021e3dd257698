// Package events описывает события, которые сервис публикует в Kafka.
// Полезная нагрузка кодируется как google.protobuf.Struct.
package events

import (
	"fmt"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	TypeProductUpserted = "product.upserted"
	TypeCartItemAdded   = "cart.item_added"
)

// Envelope содержит общие поля любого события.
type Envelope struct {
	EventID   string
	EventType string
	Timestamp time.Time
	Data      map[string]any
}

func NewEnvelope(eventType string, data map[string]any) *Envelope {
	return &Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ProductUpserted создаёт событие изменения продукта в каталоге.
func ProductUpserted(p *domain.Product) *Envelope {
	return NewEnvelope(TypeProductUpserted, map[string]any{
		"product_id":  p.ID,
		"name":        p.Name,
		"category_id": p.CategoryID,
		"price":       p.Price,
		"image_key":   p.ImageKey,
	})
}

// CartItemAdded создаёт событие добавления товара в корзину витрины.
func CartItemAdded(sessionID string, item domain.CartItem) *Envelope {
	return NewEnvelope(TypeCartItemAdded, map[string]any{
		"session_id": sessionID,
		"product_id": item.ID,
		"category":   item.Category,
		"price":      item.Price,
		"quantity":   item.Quantity,
	})
}

// Marshal кодирует событие в protobuf.
func Marshal(env *Envelope) ([]byte, error) {
	data, err := structpb.NewStruct(env.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", env.EventType, err)
	}

	msg, err := structpb.NewStruct(map[string]any{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"timestamp":  env.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.EventType, err)
	}
	msg.Fields["data"] = structpb.NewStructValue(data)

	return proto.Marshal(msg)
}

// Unmarshal разбирает событие. Числа в Data возвращаются как float64.
func Unmarshal(b []byte) (*Envelope, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(b, &msg); err != nil {
		return nil, err
	}

	fields := msg.AsMap()
	env := &Envelope{}
	env.EventID, _ = fields["event_id"].(string)
	env.EventType, _ = fields["event_type"].(string)
	if ts, ok := fields["timestamp"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		env.Timestamp = t
	}
	env.Data, _ = fields["data"].(map[string]any)

	return env, nil
}
