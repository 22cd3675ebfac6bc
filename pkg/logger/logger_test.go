package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{"Defaults", *DefaultConfig(), false},
		{"Debug JSON", Config{Level: DebugLevel, Format: JSONFormat}, false},
		{"Bad level", Config{Level: "loud", Format: TextFormat}, true},
		{"Bad format", Config{Level: InfoLevel, Format: "yaml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(&Config{Level: "bogus", Format: TextFormat}); err == nil {
		t.Error("New() should reject an invalid level")
	}
}

func TestLogger_FieldsPreserved(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&Config{Level: DebugLevel, Format: JSONFormat}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() failed: %v", err)
	}

	// Fields added across chained calls must all appear in the output
	log.WithComponent("resolver").
		WithField("source", "R1").
		WithFields(Fields{"target": "T1", "score": 0.9}).
		Info("match committed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	for key, want := range map[string]string{
		"component": "resolver",
		"source":    "R1",
		"target":    "T1",
		"msg":       "match committed",
	} {
		if entry[key] != want {
			t.Errorf("entry[%s] = %v, want %s", key, entry[key], want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&Config{Level: WarnLevel, Format: TextFormat}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() failed: %v", err)
	}

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("output contains suppressed levels: %q", output)
	}
	if !strings.Contains(output, "visible") {
		t.Errorf("output missing warn line: %q", output)
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	replacement, err := NewWithOutput(&Config{Level: InfoLevel, Format: TextFormat}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() failed: %v", err)
	}
	SetGlobalLogger(replacement)

	WithComponent("test").Info("routed through global")
	if !strings.Contains(buf.String(), "routed through global") {
		t.Error("WithComponent() should route through the global logger")
	}
}
