package transcript

import (
	"fmt"
	"strconv"
	"time"
)

// TimedTurn is the export-time view of a Turn. ResponseSeconds is only
// meaningful when HasResponseTime is set.
type TimedTurn struct {
	Turn
	ResponseSeconds int64
	HasResponseTime bool
}

// ResponseTimeField renders the response time for a tabular cell; empty
// for the first turn of a sequence.
func (t TimedTurn) ResponseTimeField() string {
	if !t.HasResponseTime {
		return ""
	}
	return strconv.FormatInt(t.ResponseSeconds, 10)
}

// ResponseTimes derives, for every turn after the first, the whole seconds
// elapsed since the turn before it. Timestamps are read in loc. A clock
// that steps backwards (DST fall-back) yields 0 rather than a negative.
func ResponseTimes(turns []Turn, loc *time.Location) ([]TimedTurn, error) {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]TimedTurn, len(turns))
	var prev time.Time
	for i, turn := range turns {
		ts, err := time.ParseInLocation(TimestampLayout, turn.Timestamp, loc)
		if err != nil {
			return nil, fmt.Errorf("turn %d: parse timestamp: %w", i, err)
		}
		out[i] = TimedTurn{Turn: turn}
		if i > 0 {
			delta := int64(ts.Sub(prev) / time.Second)
			if delta < 0 {
				delta = 0
			}
			out[i].ResponseSeconds = delta
			out[i].HasResponseTime = true
		}
		prev = ts
	}
	return out, nil
}
