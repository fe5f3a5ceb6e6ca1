// Package trace records build lifecycle sequences as JSON lines so they can
// be replayed against a plugin later, with the original timing.
//
// Each line is one step:
//
//	{"build":0,"event":"environment","offsetMs":0}
//	{"build":0,"event":"beforeCompile","offsetMs":12}
//
// Offsets are measured from the start of the trace and never decrease.
package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/discochess/dxmetrics/internal/hooks"
)

// ErrInvalid is returned for traces that cannot be replayed.
var ErrInvalid = errors.New("trace: invalid")

// Step is one lifecycle event of one build.
type Step struct {
	// Build identifies the build the event belongs to. Builds may overlap.
	Build int `json:"build"`

	Event hooks.Event `json:"event"`

	// OffsetMS is the time since the start of the trace, in milliseconds.
	OffsetMS int64 `json:"offsetMs"`
}

// Offset returns the step's offset as a duration.
func (s Step) Offset() time.Duration {
	return time.Duration(s.OffsetMS) * time.Millisecond
}

// Validate checks that every event is known, offsets never decrease and
// no build fires the same event twice.
func Validate(steps []Step) error {
	var last int64
	fired := make(map[int]map[hooks.Event]bool)
	for i, s := range steps {
		if !s.Event.Valid() {
			return fmt.Errorf("%w: step %d: unknown event %q", ErrInvalid, i, s.Event)
		}
		if s.OffsetMS < last {
			return fmt.Errorf("%w: step %d: offset %dms before previous %dms", ErrInvalid, i, s.OffsetMS, last)
		}
		last = s.OffsetMS

		if fired[s.Build] == nil {
			fired[s.Build] = make(map[hooks.Event]bool)
		}
		if fired[s.Build][s.Event] {
			return fmt.Errorf("%w: step %d: build %d fires %s twice", ErrInvalid, i, s.Build, s.Event)
		}
		fired[s.Build][s.Event] = true
	}
	return nil
}

// Encode writes steps as JSON lines.
func Encode(w io.Writer, steps []Step) error {
	enc := json.NewEncoder(w)
	for _, s := range steps {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding step: %w", err)
		}
	}
	return nil
}

// Parse reads JSON lines written by Encode and validates the result.
// Blank lines are skipped.
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var s Step
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalid, line, err)
		}
		steps = append(steps, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	if err := Validate(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// Marshal returns steps encoded as JSON lines.
func Marshal(steps []Step) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, steps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
