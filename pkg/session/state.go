package session

import (
	"encoding/json"
	"fmt"
)

// State of a session lifecycle.
//
//	Starting -> Streaming -> Stopping -> Stopped
//	Starting / Streaming -> Failed
//
// Failed and Stopped are terminal. Failed keeps the session visible
// with its failure reason until it is destroyed or reaped, which
// distinguishes "we stopped it" from "it died" for status queries.
type State int

const (
	StateStarting State = iota
	StateStreaming
	StateStopping
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its lowercase name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the lowercase name produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "starting":
		*s = StateStarting
	case "streaming":
		*s = StateStreaming
	case "stopping":
		*s = StateStopping
	case "failed":
		*s = StateFailed
	case "stopped":
		*s = StateStopped
	default:
		return fmt.Errorf("unknown state %q", name)
	}
	return nil
}

// Terminal reports whether no more frames will ever flow.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateStopped
}

// Active reports whether the session should show up in the active
// streams snapshot.
func (s State) Active() bool {
	return s == StateStarting || s == StateStreaming
}
