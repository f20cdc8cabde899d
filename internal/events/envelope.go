package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope is the shared envelope for v1 contracts.
type EventEnvelope struct {
	EventName     string          `json:"eventName"`
	EventVersion  int             `json:"eventVersion"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer"`
	PartitionKey  string          `json:"partitionKey"`
	Sequence      int64           `json:"sequence,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Schema        string          `json:"schema"`
	Payload       json.RawMessage `json:"payload"`
}

func (e EventEnvelope) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName %q", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.EventID == "" {
		return fmt.Errorf("missing eventId")
	}
	return nil
}

// decodeMessage accepts either an enveloped event or a bare payload. The
// returned envelope is nil for bare payloads.
func decodeMessage(body []byte, name string, version int, payload any) (*EventEnvelope, error) {
	var head struct {
		EventName string `json:"eventName"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}

	if head.EventName == "" {
		if err := json.Unmarshal(body, payload); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", name, err)
		}
		return nil, nil
	}

	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal %s envelope: %w", name, err)
	}
	if err := env.Validate(name, version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", name, err)
	}
	return &env, nil
}
