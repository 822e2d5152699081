package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType — тип сообщения.
type MessageType string

const (
	// MessageTypeResearchRequested — создан job, ожидающий исполнения.
	MessageTypeResearchRequested MessageType = "research.requested"
)

// Envelope — конверт сообщения. Payload декодируется по Type.
type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ResearchRequested — payload для MessageTypeResearchRequested.
//
// Сообщение несёт только ID: состояние job читается из БД,
// поэтому повторная доставка безопасна.
type ResearchRequested struct {
	JobID uuid.UUID `json:"job_id"`
}

// NewEnvelope упаковывает payload.
func NewEnvelope(msgType MessageType, payload any, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		Timestamp: now.UTC(),
		Payload:   raw,
	}, nil
}

// Decode распаковывает payload в v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
