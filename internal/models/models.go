package models

// Event types emitted by the page beacon.
const (
	TypePageView        = "page_view"
	TypeUserAgent       = "user_agent"
	TypeClick           = "click"
	TypeScrollDepth     = "scroll_depth"
	TypeSessionDuration = "session_duration"
)

// EventTypes lists every type the collector accepts.
var EventTypes = []string{
	TypePageView,
	TypeUserAgent,
	TypeClick,
	TypeScrollDepth,
	TypeSessionDuration,
}

// TrackPath is where the beacon posts envelopes.
const TrackPath = "/api/analytics/track"

// Envelope is the JSON body the beacon sends for a single event. Only type,
// path and timestamp are always present; the rest depend on the type.
type Envelope struct {
	Type      string  `json:"type"`
	Path      string  `json:"path"`
	Timestamp string  `json:"timestamp"`
	Element   *string `json:"element,omitempty"`
	ElementID *string `json:"element_id,omitempty"`
	ClassName *string `json:"class_name,omitempty"`
	MaxScroll *int    `json:"max_scroll,omitempty"`
	UserAgent *string `json:"user_agent,omitempty"`
	Duration  *int64  `json:"duration_ms,omitempty"`
}

// Event is an envelope accepted by the collector, ready to be stored.
type Event struct {
	ID        string
	Type      string
	Path      string
	TSUTC     int64 // unix millis
	TSISO     string
	Element   *string
	ElementID *string
	ClassName *string
	MaxScroll *int
	UserAgent *string
	Duration  *int64
}

// IsKnownType reports whether t is one of EventTypes.
func IsKnownType(t string) bool {
	for _, known := range EventTypes {
		if known == t {
			return true
		}
	}
	return false
}
