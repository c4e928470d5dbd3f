package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

func TestEncode(t *testing.T) {
	data, err := protocol.Encode(protocol.TypeBossUpdate, protocol.BossUpdate{
		Boss: protocol.BossView{X: 500, Y: 150, Health: 100, MaxHealth: 25000},
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "bossUpdate", raw["type"])

	boss := raw["payload"].(map[string]any)["boss"].(map[string]any)
	assert.Equal(t, float64(25000), boss["maxHealth"])
}

func TestEncode_NoPayload(t *testing.T) {
	data, err := protocol.Encode(protocol.TypeDuelQueueLeft, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"duelQueueLeft"}`, string(data))

	_, err = protocol.Encode("", nil)
	assert.Error(t, err)
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		validate func(t *testing.T, msg protocol.Inbound)
	}{
		{
			name:  "join lobby",
			input: `{"type":"joinLobby","payload":{"nickname":"neo","skin":"red"}}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				join, ok := msg.(protocol.JoinLobby)
				require.True(t, ok)
				assert.Equal(t, "neo", join.Nickname)
				assert.Equal(t, "red", join.Skin)
				assert.Empty(t, join.SessionID)
			},
		},
		{
			name:  "start raid without payload",
			input: `{"type":"startRaid"}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				assert.IsType(t, protocol.StartRaid{}, msg)
			},
		},
		{
			name:  "null payload",
			input: `{"type":"leave","payload":null}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				assert.IsType(t, protocol.Leave{}, msg)
			},
		},
		{
			name:  "duel update",
			input: `{"type":"duelUpdate","payload":{"x":10,"y":20.5,"angle":1.2,"energy":99,"action":"shoot"}}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				upd := msg.(protocol.DuelUpdate)
				assert.Equal(t, 10.0, upd.X)
				assert.Equal(t, 20.5, upd.Y)
				assert.Equal(t, protocol.ActionShoot, upd.Action)
			},
		},
		{
			name:  "hit confirm",
			input: `{"type":"duelHitConfirm","payload":{"bulletId":"b1","damage":20,"targetId":"p2"}}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				hit := msg.(protocol.DuelHitConfirm)
				assert.Equal(t, "b1", hit.BulletID)
				assert.Equal(t, "p2", hit.TargetID)
				assert.Equal(t, protocol.TypeDuelHitConfirm, hit.Type())
			},
		},
		{
			name:  "queue join with mode",
			input: `{"type":"duelQueueJoin","payload":{"nickname":"a","mode":"2v2"}}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				assert.Equal(t, protocol.Mode2v2, msg.(protocol.DuelQueueJoin).Mode)
			},
		},
		{
			name:  "powerup collect",
			input: `{"type":"powerupCollect","payload":{"id":"pu-1"}}`,
			validate: func(t *testing.T, msg protocol.Inbound) {
				assert.Equal(t, "pu-1", msg.(protocol.PowerUpCollect).ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.DecodeInbound([]byte(tt.input))
			require.NoError(t, err)
			tt.validate(t, msg)
		})
	}
}

func TestDecodeInbound_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty frame", input: ``},
		{name: "not json", input: `hello`},
		{name: "missing type", input: `{"payload":{}}`},
		{name: "unknown type", input: `{"type":"guessNumber"}`},
		{name: "wrong payload shape", input: `{"type":"bossDamage","payload":{"amount":"lots"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.DecodeInbound([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, msg)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidMessage))
		})
	}
}
