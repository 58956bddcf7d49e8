package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json stdout debug", Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"text stderr trace", Config{Level: "trace", Format: "text", Output: "stderr"}, false},
		{"invalid level", Config{Level: "loud"}, true},
		{"invalid format", Config{Format: "xml"}, true},
		{"invalid output", Config{Output: "syslog"}, true},
		{"file without path", Config{Output: "file"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Initialize(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := tt.cfg.Level
			if want == "" {
				want = "info"
			}
			lvl, _ := logrus.ParseLevel(want)
			assert.Equal(t, lvl, logrus.GetLevel())
		})
	}
	require.NoError(t, Close())
}

func TestInitializeWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logcount.log")
	require.NoError(t, Initialize(Config{Level: "info", Format: "json", Output: "file", File: path}))

	logrus.WithField("source", "IvsAgent").Warn("invalid timestamp")
	require.NoError(t, Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "IvsAgent", entry["source"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "invalid timestamp", entry["msg"])
}
