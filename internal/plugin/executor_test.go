package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes an executable shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	scriptPath := filepath.Join(tmpDir, name+".sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Kind:       KindActuator,
			Executable: name + ".sh",
			Actions:    []string{"ping", "move", "click"},
		},
		Path:       tmpDir,
		Executable: scriptPath,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "ok-plugin", `#!/bin/sh
cat <<'EOF'
{"id":1,"success":true,"data":{"message":"pong"}}
EOF
`)

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), plugin, &Request{ID: 1, Action: "ping"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.ID != 1 {
		t.Errorf("expected id 1, got %d", response.ID)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "pong" {
		t.Errorf("expected message 'pong', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `#!/bin/sh
read INPUT
echo "{\"id\":7,\"success\":true,\"data\":$INPUT}"
`)

	req := &Request{
		ID:     7,
		Action: "move",
		Params: json.RawMessage(`{"dx":3,"dy":-4}`),
	}

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), plugin, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var received Request
	if err := json.Unmarshal(response.Data, &received); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if received.Action != "move" {
		t.Errorf("expected action 'move', got %q", received.Action)
	}
	if string(received.Params) != `{"dx":3,"dy":-4}` {
		t.Errorf("unexpected params %s", received.Params)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `#!/bin/sh
sleep 10
echo '{"id":1,"success":true}'
`)

	executor := NewExecutor(100 * time.Millisecond)
	_, err := executor.Execute(context.Background(), plugin, &Request{ID: 1, Action: "ping"})

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "killed") {
		t.Errorf("expected timeout-related error, got: %v", err)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	plugin := scriptPlugin(t, "garbage-plugin", `#!/bin/sh
echo 'this is not json'
`)

	executor := NewExecutor(5 * time.Second)
	_, err := executor.Execute(context.Background(), plugin, &Request{ID: 1, Action: "ping"})
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
	if !strings.Contains(err.Error(), "parse plugin response") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	plugin := scriptPlugin(t, "failing-plugin", `#!/bin/sh
echo "boom" >&2
exit 3
`)

	executor := NewExecutor(5 * time.Second)
	_, err := executor.Execute(context.Background(), plugin, &Request{ID: 1, Action: "ping"})
	if err == nil {
		t.Fatal("expected execution error, got nil")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got: %v", err)
	}
}

func TestExecutor_Ping(t *testing.T) {
	good := scriptPlugin(t, "good", `#!/bin/sh
echo '{"id":1,"success":true}'
`)
	bad := scriptPlugin(t, "bad", `#!/bin/sh
echo '{"id":1,"success":false,"error":"xdotool not installed"}'
`)

	executor := NewExecutor(5 * time.Second)

	if err := executor.Ping(context.Background(), good); err != nil {
		t.Errorf("Ping(good) = %v", err)
	}

	err := executor.Ping(context.Background(), bad)
	if err == nil || !strings.Contains(err.Error(), "xdotool not installed") {
		t.Errorf("Ping(bad) = %v, want plugin error", err)
	}
}
