// Package display holds the user-facing state of one clock view: the last
// date and time shown and the current error message.
package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zgpcy/worldclock/internal/timeapi"
)

// Loading is shown before the first lookup completes
const Loading = "Loading..."

// Policy decides what happens to the last good result when a lookup fails
type Policy string

// Replacement policies
const (
	// PreserveOnError keeps the previous date and time and only sets the error
	PreserveOnError Policy = "preserve"
	// ReplaceOnError clears the date and time along with setting the error
	ReplaceOnError Policy = "replace"
)

// ParsePolicy accepts "preserve" or "replace"; empty means PreserveOnError
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PreserveOnError:
		return PreserveOnError, nil
	case ReplaceOnError:
		return ReplaceOnError, nil
	default:
		return "", fmt.Errorf("unknown display policy %q (want preserve or replace)", s)
	}
}

// Snapshot is a point-in-time copy of a Holder
type Snapshot struct {
	Zone         string    `json:"zone"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Abbreviation string    `json:"abbreviation,omitempty"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	Loaded       bool      `json:"loaded"`
}

// Holder is the screen-local result holder. Safe for concurrent use.
type Holder struct {
	mu     sync.RWMutex
	policy Policy
	state  Snapshot
}

// NewHolder creates a holder in the loading state
func NewHolder(zone timeapi.Zone, policy Policy) *Holder {
	if policy == "" {
		policy = PreserveOnError
	}
	return &Holder{
		policy: policy,
		state: Snapshot{
			Zone: zone.String(),
			Date: Loading,
		},
	}
}

// Apply records a lookup outcome
func (h *Holder) Apply(res timeapi.Result, err error, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.UpdatedAt = at
	if err != nil {
		h.state.Error = Message(err)
		if h.policy == ReplaceOnError {
			h.state.Date = ""
			h.state.Time = ""
			h.state.Abbreviation = ""
			h.state.Loaded = false
		}
		return
	}

	h.state.Date = res.Date
	h.state.Time = res.Time
	h.state.Abbreviation = res.Abbreviation
	h.state.Error = ""
	h.state.Loaded = true
}

// Snapshot returns a copy of the current state
func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Message maps a lookup error to the text shown to the user
func Message(err error) string {
	if err == nil {
		return ""
	}
	kind, ok := timeapi.KindOf(err)
	if !ok {
		return err.Error()
	}
	switch kind {
	case timeapi.KindNetwork:
		var le *timeapi.LookupError
		if errors.As(err, &le) && le.Err != nil {
			return "Network Error: " + le.Err.Error()
		}
		return "Network Error"
	case timeapi.KindNoData:
		return "No data received"
	case timeapi.KindFormat:
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return "Parsing Error: " + syntaxErr.Error()
		}
		return "Unexpected response format"
	default:
		return err.Error()
	}
}
