package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "osf",
		Category:    "entity",
		Version:     "v1",
		Description: "OSF individual mapped from a registration, as graph triples",
		Factory:     func() any { return &EntityPayload{} },
	})
	if err != nil {
		panic("failed to register EntityPayload: " + err.Error())
	}
}

// EntityType is the message type for OSF entity payloads.
var EntityType = message.Type{Domain: "osf", Category: "entity", Version: "v1"}

// EntityPayload implements message.Payload and graph.Graphable for entity ingestion.
type EntityPayload struct {
	EntityID_  string           `json:"id"`
	TripleData []message.Triple `json:"triples"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (e *EntityPayload) EntityID() string          { return e.EntityID_ }
func (e *EntityPayload) Triples() []message.Triple { return e.TripleData }
func (e *EntityPayload) Schema() message.Type      { return EntityType }

func (e *EntityPayload) Validate() error {
	if e.EntityID_ == "" {
		return errors.New("entity ID is required")
	}
	if len(e.TripleData) == 0 {
		return fmt.Errorf("entity %s has no triples", e.EntityID_)
	}
	return nil
}

func (e *EntityPayload) MarshalJSON() ([]byte, error) {
	type Alias EntityPayload
	return json.Marshal((*Alias)(e))
}

func (e *EntityPayload) UnmarshalJSON(data []byte) error {
	type Alias EntityPayload
	return json.Unmarshal(data, (*Alias)(e))
}

// Encode wraps the payload in a semstreams base message ready for
// GraphIngestSubject.
func Encode(p *EntityPayload, source string) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(message.NewBaseMessage(EntityType, p, source))
	if err != nil {
		return nil, fmt.Errorf("marshal entity %s: %w", p.EntityID_, err)
	}
	return data, nil
}
