package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope стабильный формат события для хранения и публикации.
// Формат не должен меняться: он является контрактом для всех потребителей.
type Envelope struct {
	AggregateID string          `json:"aggregateId"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Version     int64           `json:"version"`
}

// WrapEvent упаковывает событие в Envelope с версией агрегата
func WrapEvent(event Event, version int64) (Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	return Envelope{
		AggregateID: event.AggregateID(),
		Type:        event.EventType(),
		Data:        data,
		OccurredAt:  event.OccurredAt(),
		Version:     version,
	}, nil
}

// Encode сериализует Envelope для публикации на шину
func (e Envelope) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return payload, nil
}

// DecodeEnvelope разбирает входящее сообщение шины в Envelope
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if envelope.Type == "" || envelope.AggregateID == "" {
		return Envelope{}, fmt.Errorf("envelope missing type or aggregateId")
	}
	return envelope, nil
}
