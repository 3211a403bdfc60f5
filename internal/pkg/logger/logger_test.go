package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("hidden")
	log.Warn("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if entry["message"] != "shown" {
		t.Errorf("message = %v, want shown", entry["message"])
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.WithComponent("tracker").WithFields(map[string]interface{}{
		"operation": "connect",
		"target":    "warehouse",
	}).Debug("transition")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"component": "tracker",
		"operation": "connect",
		"target":    "warehouse",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().ErrorWithErr(nil, "ignored")
}
