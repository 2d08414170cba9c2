// Package plugin discovers and runs external plugin executables that perform
// OS-level work for Reticle: emitting pointer actuation and listening for
// global input events.
package plugin

import "encoding/json"

// Kind identifies what a plugin is for.
type Kind string

const (
	// KindActuator plugins accept move and click requests.
	KindActuator Kind = "actuator"
	// KindListener plugins stream input events as notifications.
	KindListener Kind = "listener"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Kind         Kind            `json:"kind"`
	Executable   string          `json:"executable"`
	Args         []string        `json:"args,omitempty"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is one line sent to a plugin on stdin.
// ID is assigned by Process and echoed back in the matching Response.
type Request struct {
	ID     uint64          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one line read from a plugin's stdout.
// A Response with ID 0 is an unsolicited notification; Event names it.
type Response struct {
	ID      uint64          `json:"id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}
