package webhooks

import (
	"slices"
	"time"
)

// Event types dispatched by the system.
const (
	EventGradeChanged = "score.grade_changed"
	EventScoreDropped = "score.dropped"
)

// Subscription is a configured receiver of webhook events. An empty
// Events list subscribes to every event.
type Subscription struct {
	URL    string   `mapstructure:"url"    json:"url"`
	Secret string   `mapstructure:"secret" json:"-"`
	Events []string `mapstructure:"events" json:"events"`
}

// Wants reports whether the subscription receives eventType.
func (s Subscription) Wants(eventType string) bool {
	return len(s.Events) == 0 || slices.Contains(s.Events, eventType)
}

// Event is the JSON body posted to subscribers.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery is the outcome of delivering one event to one subscription.
type Delivery struct {
	URL        string `json:"url"`
	EventID    string `json:"event_id"`
	StatusCode int    `json:"status_code"`
	Attempts   int    `json:"attempts"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}
