package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json"},
		{name: "console debug", level: "debug", format: "console"},
		{name: "empty format defaults to json", level: "warn", format: ""},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("logging.level", tt.level)
			v.Set("logging.format", tt.format)

			logger, err := NewLogger(v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Error("NewLogger() returned nil logger")
			}
		})
	}
}

func TestNewLogger_FileOutputCarriesService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	v := viper.New()
	v.Set("logging.level", "warn")
	v.Set("logging.format", "json")
	v.Set("logging.output", []string{path})

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("below level")
	logger.Warn("tampering detected")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != ServiceName {
		t.Errorf("service = %v, want %q", entry["service"], ServiceName)
	}
	if entry["msg"] != "tampering detected" {
		t.Errorf("msg = %v, want %q", entry["msg"], "tampering detected")
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("entry has no ts field")
	}
}
