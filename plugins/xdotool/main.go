// Package main provides an actuator plugin for X11.
// It moves the pointer and clicks through the xdotool command.
//
// Requests arrive on stdin one JSON object per line and each gets one
// response line on stdout. The plugin exits when stdin closes.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Request represents one line from the host.
type Request struct {
	ID     uint64          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response represents one line to the host.
type Response struct {
	ID      uint64 `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MoveParams are the parameters of the move action.
type MoveParams struct {
	DX int32 `json:"dx"`
	DY int32 `json:"dy"`
}

// ClickParams are the parameters of the click action.
type ClickParams struct {
	Button string `json:"button"`
}

// buttonMap maps button names to X11 button numbers.
var buttonMap = map[string]string{
	"left":   "1",
	"middle": "2",
	"right":  "3",
}

// actionHandler handles one action's parameters.
type actionHandler func(run runner, params json.RawMessage) error

// runner executes xdotool with args.
type runner func(args ...string) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"move":  move,
	"click": click,
	"ping":  ping,
}

func main() {
	serve(os.Stdin, os.Stdout, runXdotool)
}

// serve answers requests from r on w until r ends.
func serve(r io.Reader, w io.Writer, run runner) {
	enc := json.NewEncoder(w)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			// Without an ID the host cannot match a reply.
			fmt.Fprintf(os.Stderr, "xdotool: failed to decode request: %v\n", err)
			continue
		}
		enc.Encode(handle(run, req))
	}
}

func handle(run runner, req Request) Response {
	resp := Response{ID: req.ID}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		resp.Error = fmt.Sprintf("unknown action: %s", req.Action)
		return resp
	}

	if err := handler(run, req.Params); err != nil {
		resp.Error = fmt.Sprintf("action %s failed: %v", req.Action, err)
		return resp
	}

	resp.Success = true
	return resp
}

func move(run runner, params json.RawMessage) error {
	var p MoveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	if p.DX == 0 && p.DY == 0 {
		return nil
	}
	// "--" keeps negative deltas from being read as flags.
	return run("mousemove_relative", "--", strconv.Itoa(int(p.DX)), strconv.Itoa(int(p.DY)))
}

func click(run runner, params json.RawMessage) error {
	p := ClickParams{Button: "left"}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return fmt.Errorf("failed to parse params: %w", err)
		}
	}

	button, ok := buttonMap[p.Button]
	if !ok {
		return fmt.Errorf("unknown button: %s", p.Button)
	}
	return run("click", button)
}

func ping(run runner, _ json.RawMessage) error {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return fmt.Errorf("xdotool not installed")
	}
	return nil
}

// runXdotool executes xdotool with the given arguments.
func runXdotool(args ...string) error {
	cmd := exec.Command("xdotool", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("xdotool error: %w, output: %s", err, string(output))
	}
	return nil
}
