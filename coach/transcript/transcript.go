package transcript

import (
	"errors"
	"fmt"
)

var (
	ErrUnstamped   = errors.New("turn has no timestamp")
	ErrUnknownRole = errors.New("unknown turn role")
)

// Transcript is the append-only, ordered log of one session's turns.
// It is not safe for concurrent use; the owning session serializes access.
type Transcript struct {
	turns []Turn
}

func New(seed ...Turn) (*Transcript, error) {
	t := &Transcript{}
	for _, turn := range seed {
		if err := t.Append(turn); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Transcript) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, turn.Role)
	}
	if !turn.Stamped() {
		return ErrUnstamped
	}
	t.turns = append(t.turns, turn)
	return nil
}

// Turns returns a copy of every turn in insertion order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Visible returns the turns shown to the user and exported.
func (t *Transcript) Visible() []Turn {
	return WithoutSystem(t.turns)
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// WithoutSystem filters out system turns, keeping order.
func WithoutSystem(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == RoleSystem {
			continue
		}
		out = append(out, turn)
	}
	return out
}
