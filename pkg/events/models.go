package events

// Type classifies how an event is attended
type Type string

const (
	TypeInPerson Type = "in-person"
	TypeVirtual  Type = "virtual"
	TypeHybrid   Type = "hybrid"
)

// DefaultCategory is assigned when a category falls outside the known set
const DefaultCategory = "event"

// categorySet is the closed set of recognized categories
var categorySet = map[string]bool{
	"event":    true,
	"club":     true,
	"sport":    true,
	"deadline": true,
	"meeting":  true,
}

// Reason explains why an event was dropped during normalization
type Reason string

const (
	// ReasonPast marks events whose start has already passed
	ReasonPast Reason = "past"
	// ReasonValidationFailed marks events missing required content or
	// failing plausibility checks
	ReasonValidationFailed Reason = "validation_failed"
)

// Event is a validated, canonical event record ready for persistence.
// Datetime fields are ISO-8601 UTC strings; nil means absent.
type Event struct {
	Name          string
	StartDatetime *string
	EndDatetime   *string
	IsAllDay      bool
	Type          Type
	Address       *string
	LocationName  *string
	Description   *string
	URL           *string
	Categories    []string
	Tags          []string
}

// RawExtraction is the model's unvalidated output for one post. All fields
// are optional; the shape is validated at the gateway boundary before the
// normalizer sees it. Categories and tags usually arrive at the top level,
// with per-event copies as a fallback.
type RawExtraction struct {
	Events     []RawEvent    `json:"events"`
	Categories []RawCategory `json:"categories"`
	EventTags  []RawTag      `json:"event_tags"`
	Confidence float64       `json:"extraction_confidence,omitempty"`
}

// RawEvent is a single unvalidated event from the model
type RawEvent struct {
	Name          string        `json:"name"`
	StartDatetime string        `json:"start_datetime"`
	EndDatetime   string        `json:"end_datetime"`
	IsAllDay      bool          `json:"is_all_day"`
	Type          string        `json:"type"`
	Address       string        `json:"address"`
	LocationName  string        `json:"location_name"`
	Description   string        `json:"description"`
	URL           string        `json:"url"`
	Categories    []RawCategory `json:"categories,omitempty"`
	EventTags     []RawTag      `json:"event_tags,omitempty"`
}

// RawCategory wraps a category name in the model's output shape
type RawCategory struct {
	Name string `json:"name"`
}

// RawTag wraps a tag string in the model's output shape
type RawTag struct {
	Tag string `json:"tag"`
}
