package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"tally/internal/core"
)

var ErrMalformedMessage = errors.New("malformed change message")

// ChangeMessage carries one ledger change event. It holds ids only; consumers
// read the row itself from the store.
type ChangeMessage struct {
	core.ChangeEvent
	PublishedAt time.Time `json:"published_at"`
}

func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	return &ChangeMessage{ChangeEvent: ev, PublishedAt: time.Now().UTC()}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects one missing its routing
// fields.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.Table == "" || msg.Op == "" {
		return nil, ErrMalformedMessage
	}
	return &msg, nil
}
