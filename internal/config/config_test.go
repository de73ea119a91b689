package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"evaluator": {"name": " JS "}}`))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "js", cfg.Evaluator.Name)
	require.Equal(t, "render", cfg.Session.ResultMode)
	require.True(t, cfg.Session.EchoEnabled())
	require.Equal(t, 256, cfg.Session.MaxSessions)
	require.Equal(t, 64, cfg.Session.QueueSize)
	require.False(t, cfg.Transcript.Enabled)
	require.Equal(t, "=> ", cfg.Properties.Prompt)
}

func TestLoad_EchoDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"evaluator": {"name": "go"}, "session": {"echo": false, "result_mode": "log"}}`))
	require.NoError(t, err)
	require.False(t, cfg.Session.EchoEnabled())
	require.Equal(t, "log", cfg.Session.ResultMode)
}

func TestLoad_Transcript(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"evaluator": {"name": "go"}, "transcript": {"enabled": true}, "database": {"path": "/tmp/console.db"}}`))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 168, cfg.Transcript.RetentionHours)
	require.Equal(t, "0 * * * *", cfg.Transcript.CleanupSpec)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"missing evaluator": `{}`,
		"bad result mode":   `{"evaluator": {"name": "go"}, "session": {"result_mode": "print"}}`,
		"negative queue":    `{"evaluator": {"name": "go"}, "session": {"queue_size": -1}}`,
		"sqlite path":       `{"evaluator": {"name": "go"}, "transcript": {"enabled": true}}`,
		"bad driver":        `{"evaluator": {"name": "go"}, "transcript": {"enabled": true}, "database": {"driver": "mysql"}}`,
		"postgres host":     `{"evaluator": {"name": "go"}, "transcript": {"enabled": true}, "database": {"driver": "postgres"}}`,
		"bad json":          `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
