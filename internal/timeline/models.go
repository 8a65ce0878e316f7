// Package timeline defines the annotation data model: lines of time-stamped
// stamps, the tag/label/time-event vocabulary they reference, and the pure
// transforms, conflict detection and merge rules used by synchronization.
package timeline

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Tag is a reusable event-category definition referenced by stamps.
type Tag struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Color             string            `json:"color"`
	DefaultTimeBefore float64           `json:"defaultTimeBefore"`
	DefaultTimeAfter  float64           `json:"defaultTimeAfter"`
	Collection        string            `json:"collection,omitempty"`
	LabelGroups       []string          `json:"labelGroups,omitempty"`
	Hotkey            string            `json:"hotkey,omitempty"`
	LabelHotkeys      map[string]string `json:"labelHotkeys,omitempty"`
}

// Label is a fine-grained descriptor attachable to a stamp independent of its tag.
type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LabelGroup is an ordered grouping of label IDs.
type LabelGroup struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// TagGroup is an ordered grouping of tag IDs.
type TagGroup struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// TimeEvent is a cross-cutting marker (e.g. "2nd half") attachable to any stamp.
type TimeEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Position is a 2D field-map coordinate. A stamp with a position is active
// for map visualization.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TimelineStamp is the atomic annotation unit in compact (ID-referencing) form.
type TimelineStamp struct {
	ID                 string    `json:"id"`
	IDTag              string    `json:"idTag"`
	PrimaryID          string    `json:"primaryID,omitempty"`
	TimeStart          string    `json:"timeStart"`
	TimeFinish         string    `json:"timeFinish"`
	ColorHex           string    `json:"color"`
	Label              string    `json:"label"`
	Labels             []string  `json:"labels,omitempty"`
	TimeEvents         []string  `json:"timeEvents,omitempty"`
	Position           *Position `json:"position,omitempty"`
	IsActiveForMapView bool      `json:"isActiveForMapView"`
}

// StartSeconds returns the parsed start time in seconds.
func (s TimelineStamp) StartSeconds() float64 {
	return TimeStringToSeconds(s.TimeStart)
}

// FinishSeconds returns the parsed finish time in seconds.
func (s TimelineStamp) FinishSeconds() float64 {
	return TimeStringToSeconds(s.TimeFinish)
}

// Duration returns finish minus start in seconds.
func (s TimelineStamp) Duration() float64 {
	return s.FinishSeconds() - s.StartSeconds()
}

// TimelineLine is one annotation track owning an ordered list of stamps.
type TimelineLine struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Stamps []TimelineStamp `json:"stamps"`
}

// TagGroupInfo is the group membership resolved for a tag at transform time.
type TagGroupInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LabelGroupInfo is the group membership resolved for a label at transform time.
type LabelGroupInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FullTag is the self-describing tag record carried on the wire. PrimaryID is
// the owning stamp's external correlation key; the library Tag has no such field.
type FullTag struct {
	Tag
	PrimaryID string        `json:"primaryID,omitempty"`
	Group     *TagGroupInfo `json:"group,omitempty"`
}

// FullLabel is the self-describing label record carried on the wire.
type FullLabel struct {
	Label
	Group *LabelGroupInfo `json:"group,omitempty"`
}

// FullTimelineStamp is the denormalized mirror of TimelineStamp. It stays
// correct even if the local tag/label library has since changed.
type FullTimelineStamp struct {
	ID         string      `json:"id"`
	TimeStart  string      `json:"timeStart"`
	TimeFinish string      `json:"timeFinish"`
	Tag        FullTag     `json:"tag"`
	Labels     []FullLabel `json:"labels"`
	TimeEvents []TimeEvent `json:"timeEvents"`
	Position   *Position   `json:"position,omitempty"`
}

// FullTimelineLine is the denormalized mirror of TimelineLine, used for
// network transfer.
type FullTimelineLine struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Stamps []FullTimelineStamp `json:"stamps"`
}

// NewID returns a fresh stable identifier for lines and stamps.
func NewID() string {
	return uuid.New().String()
}

// TimeStringToSeconds parses "H:MM:SS" or "MM:SS" into seconds. Components
// are weighted 3600/60/1 from the left; a component that fails to parse
// counts as zero, so the function is total.
func TimeStringToSeconds(s string) float64 {
	parts := strings.Split(s, ":")
	total := 0.0
	weight := 1.0
	for i := len(parts) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			n = 0
		}
		total += float64(n) * weight
		weight *= 60
	}
	return total
}

// SecondsToTimeString renders seconds as "HH:MM:SS", truncating fractions.
func SecondsToTimeString(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return pad2(h) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
