package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
client:
  name: acme
  environment: production
database:
  path: data/acme.db
analysis:
  repeat_pattern_threshold: 4
  recent_window_days: 60
aliases:
  applications:
    "Payroll App": PayrollSvc
  identities:
    peggy.olson@example.com:
      - margaret.olson
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Client.Name)
	assert.Equal(t, "data/acme.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Analysis.RepeatPatternThreshold)
	assert.Equal(t, 60, cfg.Analysis.RecentWindowDays)

	// Unset values pick up defaults.
	assert.Equal(t, DefaultHighVolumeThreshold, cfg.Analysis.HighVolumeThreshold)
	assert.Equal(t, DefaultMaxWorkers, cfg.Analysis.MaxWorkers)

	assert.Equal(t, "PayrollSvc", cfg.Aliases.Applications["Payroll App"])
	assert.Equal(t, []string{"margaret.olson"}, cfg.Aliases.Identities["peggy.olson@example.com"])
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing client name",
			content: "database:\n  path: data/x.db\n",
			wantErr: "client.name",
		},
		{
			name:    "missing database path",
			content: "client:\n  name: acme\n",
			wantErr: "database.path",
		},
		{
			name:    "threshold too low",
			content: "client:\n  name: acme\ndatabase:\n  path: x.db\nanalysis:\n  repeat_pattern_threshold: 1\n",
			wantErr: "repeat_pattern_threshold",
		},
		{
			name:    "invalid yaml",
			content: "client: [unclosed\n",
			wantErr: "parsing config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultRepeatPatternThreshold, cfg.Analysis.RepeatPatternThreshold)
	assert.Equal(t, DefaultRecentWindowDays, cfg.Analysis.RecentWindowDays)
}
