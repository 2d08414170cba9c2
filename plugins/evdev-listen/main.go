// Package main provides an input listener plugin for Linux.
// It reads mouse buttons and keys from evdev devices and streams them to the
// host as notifications.
//
// Devices are given as arguments. Without arguments the mice and keyboards
// under /dev/input/by-id are used. Reading them usually requires membership
// of the input group. The plugin exits when stdin closes.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Request represents one line from the host.
type Request struct {
	ID     uint64          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response represents one line to the host. ID 0 marks a notification.
type Response struct {
	ID      uint64 `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Event   string `json:"event,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ButtonData is the payload of a "button" notification.
type ButtonData struct {
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// KeyData is the payload of a "key" notification.
type KeyData struct {
	Key     string `json:"key"`
	Pressed bool   `json:"pressed"`
}

// defaultGlobs select input devices when none are given.
var defaultGlobs = []string{
	"/dev/input/by-id/*-event-mouse",
	"/dev/input/by-id/*-event-kbd",
}

// output serializes lines from the device readers and the request loop.
type output struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (o *output) write(r Response) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enc.Encode(r)
}

func main() {
	devices := os.Args[1:]
	if len(devices) == 0 {
		devices = findDevices(defaultGlobs)
	}

	out := &output{enc: json.NewEncoder(os.Stdout)}

	var opened int
	for _, path := range devices {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "evdev-listen: %v\n", err)
			continue
		}
		opened++
		path := path
		go func() {
			defer f.Close()
			if err := readEvents(f, out.write); err != nil {
				fmt.Fprintf(os.Stderr, "evdev-listen: %s: %v\n", path, err)
			}
		}()
	}

	serve(os.Stdin, out, opened)
}

// serve answers requests until r ends.
func serve(r io.Reader, out *output, devices int) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			fmt.Fprintf(os.Stderr, "evdev-listen: failed to decode request: %v\n", err)
			continue
		}
		out.write(handle(req, devices))
	}
}

func handle(req Request, devices int) Response {
	resp := Response{ID: req.ID}
	switch req.Action {
	case "ping":
		if devices == 0 {
			resp.Error = "no readable input devices"
			return resp
		}
		resp.Success = true
	default:
		resp.Error = fmt.Sprintf("unknown action: %s", req.Action)
	}
	return resp
}

// findDevices expands globs, skipping duplicates.
func findDevices(globs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range globs {
		matches, _ := filepath.Glob(g)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
