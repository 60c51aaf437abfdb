package models

// Stream event names emitted by generate and wormhole.
const (
	EventGenerateStart  = "hyperedges.generate.start"
	EventGenerateResult = "hyperedges.generate.result"
	EventGenerateStop   = "hyperedges.generate.stop"
	EventSuccess        = "success"
	EventError          = "error"
)

// Event is one frame of a generation stream.
type Event struct {
	Event     string   `json:"event"`
	Message   string   `json:"message,omitempty"`
	Hyperedge []string `json:"hyperedge,omitempty"`
}

// StartEvent returns the stream opener.
func StartEvent() Event { return Event{Event: EventGenerateStart} }

// StopEvent returns the terminal event.
func StopEvent() Event { return Event{Event: EventGenerateStop} }

// ResultEvent wraps one produced hyperedge.
func ResultEvent(symbols []string) Event {
	return Event{Event: EventGenerateResult, Hyperedge: symbols}
}

// SuccessEvent is an informational notice.
func SuccessEvent(msg string) Event { return Event{Event: EventSuccess, Message: msg} }

// ErrorEvent is a non-fatal producer error.
func ErrorEvent(msg string) Event { return Event{Event: EventError, Message: msg} }
