package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-realtime-match/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Tick.Rate)
	assert.Equal(t, 40*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 3, cfg.Duel.BestOf)
	assert.Equal(t, float64(25000), cfg.Coop.Boss.MaxHealth)
	assert.Equal(t, config.BossResetFull, cfg.Coop.BossResetPolicy)
	assert.Equal(t, 1000, cfg.Rating.Initial)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
duel:
  best_of: 5
  max_round_duration: 45s
coop:
  boss_reset_policy: preserve
rating:
  k: 24
seed: 42
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Duel.BestOf)
	assert.Equal(t, 45*time.Second, cfg.Duel.MaxRoundDuration)
	assert.Equal(t, config.BossResetPreserve, cfg.Coop.BossResetPolicy)
	assert.Equal(t, 24, cfg.Rating.K)
	assert.Equal(t, uint64(42), cfg.Seed)

	// 未覆寫的欄位維持預設
	assert.Equal(t, 25, cfg.Tick.Rate)
	assert.Equal(t, float64(15), cfg.Combat.ShotCost)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "server: [",
			wantErr: "parse config",
		},
		{
			name:    "invalid best_of",
			content: "duel:\n  best_of: 0\n",
			wantErr: "duel.best_of",
		},
		{
			name:    "unknown reset policy",
			content: "coop:\n  boss_reset_policy: heal\n",
			wantErr: "boss_reset_policy",
		},
		{
			name:    "spawn chance out of range",
			content: "duel:\n  powerups:\n    spawn_chance: 1.5\n",
			wantErr: "duel.powerups.spawn_chance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Postgres.Password = "secret"

	t.Setenv("DATABASE_URL", "")
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=arena sslmode=disable", cfg.PostgresDSN())

	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.PostgresDSN())
}
