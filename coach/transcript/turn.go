// Package transcript holds the conversation turns of one tutoring session
// and the timing metrics derived from them.
package transcript

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// TimestampLayout is the only format a Turn timestamp is ever written in.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultTimezone is the reference zone for every timestamp.
const DefaultTimezone = "Europe/London"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one message of the conversation. Build it with Annotator.NewTurn;
// once stamped, Timestamp and Length never change.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Length    int    `json:"length"`
}

func (t Turn) Stamped() bool {
	return t.Timestamp != ""
}

// DateTime splits the timestamp into its date and time halves.
func (t Turn) DateTime() (string, string, error) {
	date, clock, ok := strings.Cut(t.Timestamp, " ")
	if !ok {
		return "", "", fmt.Errorf("malformed timestamp %q", t.Timestamp)
	}
	return date, clock, nil
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Annotator stamps turns with the current time in a fixed zone.
type Annotator struct {
	loc *time.Location
	now func() time.Time
}

// NewAnnotator returns an Annotator for the named zone. A nil now uses
// time.Now.
func NewAnnotator(zone string, now func() time.Time) (*Annotator, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	if now == nil {
		now = time.Now
	}
	return &Annotator{loc: loc, now: now}, nil
}

func (a *Annotator) Location() *time.Location {
	return a.loc
}

// Now is the current time in the annotator's zone.
func (a *Annotator) Now() time.Time {
	return a.now().In(a.loc)
}

// Annotate stamps t with the current time and its word count. A turn that
// already carries a timestamp is returned as is.
func (a *Annotator) Annotate(t Turn) Turn {
	if t.Stamped() {
		return t
	}
	t.Timestamp = a.Now().Format(TimestampLayout)
	t.Length = WordCount(t.Content)
	return t
}

func (a *Annotator) NewTurn(role Role, content string) Turn {
	return a.Annotate(Turn{Role: role, Content: content})
}
