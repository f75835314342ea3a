package notify

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventFaceDetected is the payload "event" value for recognition events.
const EventFaceDetected = "face-detected"

// Payload carries scalar event fields. Sinks must treat it as read-only.
type Payload map[string]any

// Event is a single logical notification.
type Event struct {
	ID      string
	Title   string
	Message string
	Payload Payload
	Time    time.Time
}

// FaceEvent builds the notification for a debounced face detection.
func FaceEvent(label string, distance, threshold float64, isMatch bool, now time.Time) Event {
	return Event{
		ID:      uuid.NewString(),
		Title:   "Face detected",
		Message: fmt.Sprintf("%s @ %.2f (≤ %v = match: %t)", label, distance, threshold, isMatch),
		Payload: Payload{
			"event":     EventFaceDetected,
			"label":     label,
			"distance":  math.Round(distance*10000) / 10000,
			"threshold": threshold,
			"time":      FormatTime(now),
		},
		Time: now,
	}
}

// FormatTime renders t as local ISO-8601 with second precision.
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// clone returns a copy whose payload map is not shared with e.
func (e Event) clone() Event {
	if e.Payload != nil {
		p := make(Payload, len(e.Payload))
		for k, v := range e.Payload {
			p[k] = v
		}
		e.Payload = p
	}
	return e
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the payload as sorted key=value pairs.
func (p Payload) String() string {
	keys := p.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, " ")
}
