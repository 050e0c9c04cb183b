package eventstore

import (
	"encoding/json"
	"time"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Type names a build history event.
type Type string

const (
	TypeBuildStarted   Type = "BuildStarted"
	TypeBatchCompleted Type = "BatchCompleted"
	TypeBatchFailed    Type = "BatchFailed"
	TypeBuildCompleted Type = "BuildCompleted"
)

// Event is one persisted history entry.
type Event struct {
	ID        int64
	BuildID   string
	Type      Type
	Timestamp time.Time
	Payload   []byte
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return derrors.WrapError(err, derrors.CategoryEventStore, "failed to unmarshal event payload").
			WithContext("type", string(e.Type)).
			Build()
	}
	return nil
}

// BuildStarted is the payload of TypeBuildStarted.
type BuildStarted struct {
	Mode  string `json:"mode"`
	Pages int    `json:"pages"`
	Entry string `json:"entry,omitempty"`
}

// BatchCompleted is the payload of TypeBatchCompleted.
type BatchCompleted struct {
	Batch   string `json:"batch"`
	Pages   int    `json:"pages"`
	Skipped int    `json:"skipped"`
}

// BatchFailed is the payload of TypeBatchFailed.
type BatchFailed struct {
	Batch string `json:"batch"`
	Page  string `json:"page,omitempty"`
	Error string `json:"error"`
}

// BuildCompleted is the payload of TypeBuildCompleted.
type BuildCompleted struct {
	Mode         string `json:"mode"`
	Status       string `json:"status"`
	LinkWarnings int    `json:"link_warnings"`
	DurationMS   int64  `json:"duration_ms"`
}

// New builds an event with a JSON payload stamped with now.
func New(buildID string, typ Type, payload any, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, derrors.WrapError(err, derrors.CategoryEventStore, "failed to marshal event payload").
			WithContext("build_id", buildID).
			WithContext("type", string(typ)).
			Build()
	}
	return Event{BuildID: buildID, Type: typ, Timestamp: now, Payload: data}, nil
}
