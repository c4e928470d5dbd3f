package session_test

import (
	"math"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	"github.com/koopa0/system-design/14-realtime-match/internal/session"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDuel 兩位玩家排隊配對，並推進到倒數結束
func (h *harness) startDuel(t *testing.T, a, b string) *session.DuelMatch {
	t.Helper()
	h.connect(t, a, b)
	h.handle(t, a, protocol.DuelQueueJoin{Nickname: a})
	h.handle(t, b, protocol.DuelQueueJoin{Nickname: b})

	matchID := h.player(t, a).DuelID
	require.NotEmpty(t, matchID)
	d, ok := h.m.Duel(matchID)
	require.True(t, ok)
	require.Equal(t, session.PhaseCountdown, d.Phase)

	h.tick(h.cfg.Duel.CountdownDelay)
	require.Equal(t, session.PhaseActive, d.Phase)
	return d
}

func combatant(t *testing.T, d *session.DuelMatch, id string) *sim.Combatant {
	t.Helper()
	c, ok := d.Player(id)
	require.True(t, ok, "%s is not in match", id)
	return c
}

// aimAt 射手站在目標右側 44 像素處（兩個 tick 後子彈進入命中半徑）
func aimAt(t *testing.T, d *session.DuelMatch, targetID string) (x, y, angle float64) {
	target := combatant(t, d, targetID)
	x, y = target.X+44, target.Y
	return x, y, sim.AngleTo(x, y, target.X, target.Y)
}

// fireAt 射手移到目標旁開火，推進兩個 tick 讓子彈命中
func (h *harness) fireAt(t *testing.T, d *session.DuelMatch, shooterID, targetID string) {
	t.Helper()
	x, y, angle := aimAt(t, d, targetID)
	h.handle(t, shooterID, protocol.DuelUpdate{X: x, Y: y, Angle: angle, Action: protocol.ActionShoot})
	h.tick(step)
	h.tick(step)
}

// TestDuel_Matchmaking 測試分差在門檻內的兩位玩家立即配對
func TestDuel_Matchmaking(t *testing.T) {
	h := newHarness(t, testConfig())
	h.ratings.Seed([]rating.Profile{
		{PlayerID: "p1", Nickname: "p1", Rating: 1000},
		{PlayerID: "p2", Nickname: "p2", Rating: 1040},
	})
	h.connect(t, "p1", "p2")

	h.handle(t, "p1", protocol.DuelQueueJoin{Nickname: "alice"})
	joined := h.sender.last(t, "p1", protocol.TypeDuelQueueJoined).Payload.(protocol.DuelQueueJoined)
	assert.Equal(t, protocol.Mode1v1, joined.Mode)
	assert.Equal(t, 1, joined.Position)

	h.handle(t, "p2", protocol.DuelQueueJoin{Nickname: "bob"})

	found1 := h.sender.last(t, "p1", protocol.TypeMatchFound).Payload.(protocol.MatchFound)
	found2 := h.sender.last(t, "p2", protocol.TypeMatchFound).Payload.(protocol.MatchFound)

	assert.Equal(t, found1.MatchID, found2.MatchID)
	assert.Equal(t, "p2", found1.Opponent.ID)
	assert.Equal(t, 1040, found1.Opponent.Rating)
	assert.Equal(t, "bob", found1.Opponent.Nickname)
	assert.Equal(t, "p1", found2.Opponent.ID)
	assert.Equal(t, 1000, found2.Opponent.Rating)
	assert.NotEqual(t, found1.Side, found2.Side)

	assert.Empty(t, h.player(t, "p1").QueueMode)
	assert.Equal(t, found1.MatchID, h.player(t, "p1").DuelID)
	assert.Equal(t, 1, h.sender.count("p1", protocol.TypeDuelNewRound))
}

// TestDuel_QueueBeyondThreshold 測試分差過大時等滿 MaxWait 才配對
func TestDuel_QueueBeyondThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Matchmaking.MaxWait = 10 * time.Second
	h := newHarness(t, cfg)
	h.ratings.Seed([]rating.Profile{
		{PlayerID: "p1", Rating: 1000},
		{PlayerID: "p2", Rating: 1500},
	})
	h.connect(t, "p1", "p2")

	h.handle(t, "p1", protocol.DuelQueueJoin{})
	h.handle(t, "p2", protocol.DuelQueueJoin{})
	assert.Equal(t, 0, h.sender.count("p1", protocol.TypeMatchFound))

	h.tick(5 * time.Second)
	assert.Equal(t, 0, h.sender.count("p1", protocol.TypeMatchFound))

	h.tick(5 * time.Second)
	assert.Equal(t, 1, h.sender.count("p1", protocol.TypeMatchFound))
	assert.Equal(t, 1, h.sender.count("p2", protocol.TypeMatchFound))
}

// TestDuel_QueueRequests 測試佇列請求的各種情況
func TestDuel_QueueRequests(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, h *harness)
		msg      protocol.DuelQueueJoin
		wantErr  error
		validate func(t *testing.T, h *harness)
	}{
		{
			name:    "invalid mode",
			msg:     protocol.DuelQueueJoin{Mode: "3v3"},
			wantErr: apperrors.ErrInvalidQueueMode,
		},
		{
			name: "already in coop",
			setup: func(t *testing.T, h *harness) {
				h.handle(t, "p1", protocol.JoinLobby{Nickname: "alice"})
			},
			msg:     protocol.DuelQueueJoin{},
			wantErr: apperrors.ErrAlreadyInSession,
		},
		{
			name: "queued for another mode",
			setup: func(t *testing.T, h *harness) {
				h.handle(t, "p1", protocol.DuelQueueJoin{Mode: protocol.Mode2v2})
			},
			msg:     protocol.DuelQueueJoin{Mode: protocol.Mode1v1},
			wantErr: apperrors.ErrAlreadyInSession,
		},
		{
			name: "rejoin same mode is a no-op",
			setup: func(t *testing.T, h *harness) {
				h.handle(t, "p1", protocol.DuelQueueJoin{})
			},
			msg: protocol.DuelQueueJoin{Mode: protocol.Mode1v1},
			validate: func(t *testing.T, h *harness) {
				assert.Equal(t, 2, h.sender.count("p1", protocol.TypeDuelQueueJoined))
				h.tick(step)
				assert.Equal(t, 1, h.m.Overview().Queued[protocol.Mode1v1])
			},
		},
		{
			name: "default mode is 1v1",
			msg:  protocol.DuelQueueJoin{},
			validate: func(t *testing.T, h *harness) {
				assert.Equal(t, protocol.Mode1v1, h.player(t, "p1").QueueMode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.connect(t, "p1")
			if tt.setup != nil {
				tt.setup(t, h)
			}

			err := h.m.Handle("p1", tt.msg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, h)
			}
		})
	}
}

// TestDuel_CancelQueue 測試取消排隊（冪等）
func TestDuel_CancelQueue(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(t, "p1", "p2")

	h.handle(t, "p1", protocol.DuelQueueJoin{})
	h.handle(t, "p1", protocol.DuelQueueCancel{})
	h.handle(t, "p1", protocol.DuelQueueCancel{})
	assert.Equal(t, 1, h.sender.count("p1", protocol.TypeDuelQueueLeft))

	// 已取消的玩家不會被配對
	h.handle(t, "p2", protocol.DuelQueueJoin{})
	assert.Equal(t, 0, h.sender.count("p2", protocol.TypeMatchFound))
}

// TestDuel_ShootSpendsEnergy 測試射擊消耗能量並產生屬於射手的子彈
func TestDuel_ShootSpendsEnergy(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")

	x, y, angle := aimAt(t, d, "p2")
	h.handle(t, "p1", protocol.Shoot{X: x, Y: y, Angle: angle})

	// 射擊在下一個 tick 才處理
	assert.Empty(t, d.Projectiles)
	h.tick(step)

	p1 := combatant(t, d, "p1")
	assert.InDelta(t, 85, p1.Energy, 0.001)
	assert.Equal(t, 1, p1.Stats.ShotsFired)
	require.Len(t, d.Projectiles, 1)
	assert.Equal(t, "p1", d.Projectiles[0].OwnerID)
	assert.Equal(t, p1.Side, d.Projectiles[0].Side)

	h.tick(step)

	p2 := combatant(t, d, "p2")
	assert.InDelta(t, 80, p2.Health, 0.001)
	assert.Equal(t, 1, p1.Stats.ShotsHit)

	state := h.sender.last(t, "p2", protocol.TypeDuelState).Payload.(protocol.DuelState)
	require.NotNil(t, state.Self)
	assert.Equal(t, "p2", state.Self.ID)
	assert.InDelta(t, 80, state.Self.Health, 0.001)
	require.NotNil(t, state.Opponent)
	assert.Equal(t, "p1", state.Opponent.ID)

	var hits int
	for _, e := range state.Events {
		if e.Kind == protocol.EventHit {
			hits++
			assert.Equal(t, "p1", e.PlayerID)
			assert.Equal(t, "p2", e.TargetID)
		}
	}
	assert.Equal(t, 1, hits)
}

// TestDuel_ShieldHalvesDamage 測試護盾減傷
func TestDuel_ShieldHalvesDamage(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")

	p2 := combatant(t, d, "p2")
	p2.Shield = 5 * time.Second

	h.fireAt(t, d, "p1", "p2")
	assert.InDelta(t, 90, p2.Health, 0.001)
}

// TestDuel_InsufficientEnergy 測試能量不足時不發射
func TestDuel_InsufficientEnergy(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")

	p1 := combatant(t, d, "p1")
	p1.Energy = 10

	x, y, angle := aimAt(t, d, "p2")
	h.handle(t, "p1", protocol.Shoot{X: x, Y: y, Angle: angle})
	h.tick(step)

	assert.Empty(t, d.Projectiles)
	assert.Equal(t, 0, p1.Stats.ShotsFired)
	assert.Equal(t, 0, h.sender.count("p1", protocol.TypeError))
}

// TestDuel_HitConfirm 測試客戶端回報命中
func TestDuel_HitConfirm(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")

	p2 := combatant(t, d, "p2")
	// 射手站得較遠，讓子彈在伺服器碰撞判定前停留在容許範圍內
	x, y := p2.X+70, p2.Y
	h.handle(t, "p1", protocol.DuelUpdate{X: x, Y: y, Angle: sim.AngleTo(x, y, p2.X, p2.Y), Action: protocol.ActionShoot})
	h.tick(step)
	require.Len(t, d.Projectiles, 1)
	bulletID := d.Projectiles[0].ID

	// 伺服器忽略客戶端回報的傷害值
	h.handle(t, "p2", protocol.DuelHitConfirm{BulletID: bulletID, TargetID: "p2", Damage: 99})
	assert.InDelta(t, 80, p2.Health, 0.001)

	// 同一顆子彈不會結算兩次
	h.handle(t, "p2", protocol.DuelHitConfirm{BulletID: bulletID, TargetID: "p2"})
	h.tick(step)
	h.tick(step)
	assert.InDelta(t, 80, p2.Health, 0.001)

	err := h.m.Handle("p1", protocol.DuelHitConfirm{BulletID: "b-999", TargetID: "p1"})
	assert.NoError(t, err)
}

// TestDuel_BestOfThree 測試三戰兩勝，每個回合勝場只計一次
func TestDuel_BestOfThree(t *testing.T) {
	cfg := testConfig()
	cfg.Combat.ProjectileDamage = 100
	h := newHarness(t, cfg)
	d := h.startDuel(t, "p1", "p2")
	side := combatant(t, d, "p1").Side

	h.fireAt(t, d, "p1", "p2")
	assert.Equal(t, 1, d.RoundWins[side])
	assert.Equal(t, 0, d.RoundWins[side.Opposite()])
	assert.Equal(t, session.PhaseRoundOver, d.Phase)

	// 回合間隔期間不會重複計分
	h.tick(step)
	h.tick(step)
	assert.Equal(t, 1, d.RoundWins[side])

	h.tick(cfg.Duel.RoundRestartDelay)
	assert.Equal(t, session.PhaseActive, d.Phase)
	assert.Equal(t, 2, d.RoundNumber)
	assert.InDelta(t, 100, combatant(t, d, "p2").Health, 0.001)
	assert.False(t, combatant(t, d, "p2").Down)

	h.fireAt(t, d, "p1", "p2")
	assert.Equal(t, 2, d.RoundWins[side])
	assert.Equal(t, session.PhaseEnded, d.Phase)
	require.NotNil(t, d.Result)
	assert.Equal(t, side, d.Result.Winner)
	assert.Equal(t, protocol.ReasonRounds, d.Result.Reason)

	end := h.sender.last(t, "p2", protocol.TypeDuelEnd).Payload.(protocol.DuelEnd)
	assert.Equal(t, string(side), end.Winner)
	assert.Equal(t, []string{"p1"}, end.WinnerIDs)
	assert.Equal(t, 2, end.RoundWins[string(side)])
	assert.Equal(t, 1016, end.NewRatings["p1"])
	assert.Equal(t, 984, end.NewRatings["p2"])
	assert.Equal(t, 16, end.RatingChanges["p1"])
	assert.Equal(t, -16, end.RatingChanges["p2"])
	assert.Equal(t, 2, end.Stats["p1"].ShotsHit)

	assert.Equal(t, 1016, h.ratings.Rating("p1"))
	assert.Equal(t, 984, h.ratings.Rating("p2"))

	// 結束後繼續 tick 不會再次結算
	h.tick(step)
	assert.Equal(t, 1, h.sender.count("p1", protocol.TypeDuelEnd))
	assert.Equal(t, 1016, h.ratings.Rating("p1"))

	recs := h.pub.records()
	require.Len(t, recs, 1)
	assert.Equal(t, publish.KindDuel, recs[0].Kind)
	assert.Equal(t, protocol.ReasonRounds, recs[0].Reason)
	assert.Len(t, recs[0].Ratings, 2)

	// 結束後立即可以重新排隊
	assert.Empty(t, h.player(t, "p1").DuelID)
	h.handle(t, "p1", protocol.DuelQueueJoin{})
}

// TestDuel_DisconnectForfeits 測試對戰中斷線判負並額外扣分
func TestDuel_DisconnectForfeits(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")
	p2Side := combatant(t, d, "p2").Side

	h.m.Disconnect("p1")

	assert.True(t, d.Ended())
	require.NotNil(t, d.Result)
	assert.Equal(t, p2Side, d.Result.Winner)
	assert.Equal(t, protocol.ReasonDisconnect, d.Result.Reason)

	end := h.sender.last(t, "p2", protocol.TypeDuelEnd).Payload.(protocol.DuelEnd)
	assert.Equal(t, string(p2Side), end.Winner)
	assert.Equal(t, protocol.ReasonDisconnect, end.Reason)
	assert.Equal(t, 0, h.sender.count("p1", protocol.TypeDuelEnd))

	assert.Equal(t, 1016, h.ratings.Rating("p2"))
	assert.Equal(t, 974, h.ratings.Rating("p1"))
	assert.Less(t, h.ratings.Rating("p1"), 1000)
}

// TestDuel_Concede 測試投降不額外扣分
func TestDuel_Concede(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")

	h.handle(t, "p1", protocol.Concede{})

	require.NotNil(t, d.Result)
	assert.Equal(t, combatant(t, d, "p2").Side, d.Result.Winner)
	assert.Equal(t, protocol.ReasonConcede, d.Result.Reason)
	assert.Equal(t, 984, h.ratings.Rating("p1"))
	assert.Equal(t, 1, h.sender.count("p1", protocol.TypeDuelEnd))

	err := h.m.Handle("p1", protocol.Concede{})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

// TestDuel_Timeout 測試回合超時由總血量決定勝負
func TestDuel_Timeout(t *testing.T) {
	tests := []struct {
		name     string
		damage   bool
		validate func(t *testing.T, h *harness, d *session.DuelMatch)
	}{
		{
			name: "equal health is a draw",
			validate: func(t *testing.T, h *harness, d *session.DuelMatch) {
				assert.Equal(t, sim.Side(""), d.Result.Winner)

				end := h.sender.last(t, "p1", protocol.TypeDuelEnd).Payload.(protocol.DuelEnd)
				assert.Equal(t, protocol.WinnerDraw, end.Winner)
				assert.Empty(t, end.WinnerIDs)
				assert.Equal(t, 0, end.RatingChanges["p1"])
				assert.Equal(t, 0, end.RatingChanges["p2"])
				assert.Equal(t, 1000, end.NewRatings["p1"])

				_, ok := h.ratings.Get("p1")
				assert.False(t, ok)
			},
		},
		{
			name:   "higher health wins",
			damage: true,
			validate: func(t *testing.T, h *harness, d *session.DuelMatch) {
				assert.Equal(t, combatant(t, d, "p1").Side, d.Result.Winner)
				assert.Equal(t, 1016, h.ratings.Rating("p1"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Duel.MaxRoundDuration = time.Second
			h := newHarness(t, cfg)
			d := h.startDuel(t, "p1", "p2")

			if tt.damage {
				h.fireAt(t, d, "p1", "p2")
				require.False(t, d.Ended())
			}

			h.tick(time.Second)
			require.True(t, d.Ended())
			assert.Equal(t, protocol.ReasonTimeout, d.Result.Reason)
			tt.validate(t, h, d)
		})
	}
}

// TestDuel_TwoVersusTwo 測試 2v2：一人離開比賽繼續，整隊離開才判負
func TestDuel_TwoVersusTwo(t *testing.T) {
	h := newHarness(t, testConfig())
	ids := []string{"a", "b", "c", "d"}
	h.connect(t, ids...)
	for _, id := range ids {
		h.handle(t, id, protocol.DuelQueueJoin{Mode: protocol.Mode2v2})
	}

	matchID := h.player(t, "a").DuelID
	require.NotEmpty(t, matchID)
	d, ok := h.m.Duel(matchID)
	require.True(t, ok)
	assert.Equal(t, protocol.Mode2v2, d.Mode)

	found := h.sender.last(t, "a", protocol.TypeMatchFound).Payload.(protocol.MatchFound)
	assert.Len(t, found.Teammates, 1)
	assert.Len(t, found.Opponents, 2)

	teammate := found.Teammates[0].ID
	aSide := combatant(t, d, "a").Side

	h.handle(t, "a", protocol.Leave{})
	assert.False(t, d.Ended())
	assert.True(t, combatant(t, d, "a").Down)
	assert.Empty(t, h.player(t, "a").DuelID)

	h.handle(t, teammate, protocol.Leave{})
	require.True(t, d.Ended())
	assert.Equal(t, aSide.Opposite(), d.Result.Winner)
	assert.Equal(t, protocol.ReasonLeft, d.Result.Reason)

	assert.Equal(t, 974, h.ratings.Rating("a"))
	assert.Equal(t, 974, h.ratings.Rating(teammate))
	for _, o := range found.Opponents {
		assert.Equal(t, 1016, h.ratings.Rating(o.ID))
	}
}

// TestDuel_Spectate 測試觀戰
func TestDuel_Spectate(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")
	h.connect(t, "s1", "s2")

	h.handle(t, "s1", protocol.Spectate{MatchID: d.ID})
	start := h.sender.last(t, "s1", protocol.TypeSpectateStart).Payload.(protocol.SpectateStart)
	assert.Equal(t, d.ID, start.MatchID)
	assert.Len(t, start.Players, 2)

	h.tick(step)
	state := h.sender.last(t, "s1", protocol.TypeDuelState).Payload.(protocol.DuelState)
	assert.Nil(t, state.Self)
	assert.Len(t, state.Players, 2)
	assert.Equal(t, 1, h.m.Overview().Spectators)

	err := h.m.Handle("p1", protocol.Spectate{MatchID: d.ID})
	assert.ErrorIs(t, err, apperrors.ErrOwnMatch)

	err = h.m.Handle("s2", protocol.Spectate{MatchID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)

	h.handle(t, "s1", protocol.StopSpectating{})
	ended := h.sender.last(t, "s1", protocol.TypeSpectateEnded).Payload.(protocol.SpectateEnded)
	assert.Equal(t, "stopped", ended.Reason)
	assert.Empty(t, d.Spectators())

	// 停止觀戰後不再收到快照
	before := h.sender.count("s1", protocol.TypeDuelState)
	h.tick(step)
	assert.Equal(t, before, h.sender.count("s1", protocol.TypeDuelState))
}

// TestDuel_SpectatorNotifiedOnCleanup 測試對戰回收時通知觀戰者
func TestDuel_SpectatorNotifiedOnCleanup(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")
	h.connect(t, "s1")
	h.handle(t, "s1", protocol.Spectate{MatchID: d.ID})

	h.handle(t, "p1", protocol.Concede{})
	assert.Equal(t, 1, h.sender.count("s1", protocol.TypeDuelEnd))

	err := h.m.Handle("s1", protocol.Spectate{MatchID: d.ID})
	assert.ErrorIs(t, err, apperrors.ErrMatchNotActive)

	h.tick(h.cfg.Duel.EndCleanupDelay)
	_, ok := h.m.Duel(d.ID)
	assert.False(t, ok)

	ended := h.sender.last(t, "s1", protocol.TypeSpectateEnded).Payload.(protocol.SpectateEnded)
	assert.Equal(t, "ended", ended.Reason)
	assert.Empty(t, h.player(t, "s1").SpectatingID)
}

// TestDuel_ListDuels 測試進行中對戰列表
func TestDuel_ListDuels(t *testing.T) {
	h := newHarness(t, testConfig())
	d := h.startDuel(t, "p1", "p2")
	h.connect(t, "s1")

	h.handle(t, "s1", protocol.ListDuels{})
	list := h.sender.last(t, "s1", protocol.TypeActiveDuels).Payload.(protocol.ActiveDuels)
	require.Len(t, list.Matches, 1)
	assert.Equal(t, d.ID, list.Matches[0].MatchID)
	assert.Len(t, list.Matches[0].Players, 2)
	assert.Equal(t, string(session.PhaseActive), list.Matches[0].Phase)
}

// TestDuel_Invariants 測試長時間互射下血量與能量始終在範圍內
func TestDuel_Invariants(t *testing.T) {
	cfg := testConfig()
	cfg.Duel.PowerUps.SpawnChance = 0.2
	cfg.Duel.Obstacles.SpawnChance = 0.1
	h := newHarness(t, cfg)
	d := h.startDuel(t, "p1", "p2")

	for i := 0; i < 300; i++ {
		for _, pair := range [][2]string{{"p1", "p2"}, {"p2", "p1"}} {
			self := combatant(t, d, pair[0])
			other := combatant(t, d, pair[1])
			h.handle(t, pair[0], protocol.DuelUpdate{
				X:      self.X + (other.X-self.X)*0.05,
				Y:      self.Y,
				Angle:  sim.AngleTo(self.X, self.Y, other.X, other.Y),
				Action: protocol.ActionShoot,
			})
		}
		h.tick(step)

		for _, id := range []string{"p1", "p2"} {
			c := combatant(t, d, id)
			require.GreaterOrEqual(t, c.Health, 0.0)
			require.LessOrEqual(t, c.Health, c.MaxHealth)
			require.GreaterOrEqual(t, c.Energy, 0.0)
			require.LessOrEqual(t, c.Energy, c.MaxEnergy)
			require.Equal(t, c.Health == 0, c.Down)
		}
		if d.Ended() {
			break
		}
	}

	total := d.RoundWins[sim.SideA] + d.RoundWins[sim.SideB]
	assert.LessOrEqual(t, total, cfg.Duel.BestOf)
}

// TestDuel_DoubleKnockout 測試雙方在同一個 tick 倒地時的回合判定
func TestDuel_DoubleKnockout(t *testing.T) {
	tests := []struct {
		name    string
		healthA float64
		healthB float64
		winner  sim.Side
	}{
		{name: "side A had more health", healthA: 15, healthB: 10, winner: sim.SideA},
		{name: "side B had more health", healthA: 10, healthB: 15, winner: sim.SideB},
		{name: "equal health goes to side B", healthA: 10, healthB: 10, winner: sim.SideB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			d := h.startDuel(t, "p1", "p2")

			p1, p2 := combatant(t, d, "p1"), combatant(t, d, "p2")
			health := map[sim.Side]float64{sim.SideA: tt.healthA, sim.SideB: tt.healthB}
			p1.Health = health[p1.Side]
			p2.Health = health[p2.Side]

			// 雙方都站著時記錄血量
			h.tick(step)

			// 面對面相距 44 像素同時開火，兩顆子彈在同一個 tick 命中
			y := h.cfg.Duel.Arena.Height / 2
			x := h.cfg.Duel.Arena.Width/2 - 22
			h.handle(t, "p1", protocol.Shoot{X: x, Y: y, Angle: 0})
			h.handle(t, "p2", protocol.Shoot{X: x + 44, Y: y, Angle: math.Pi})
			h.tick(step)
			h.tick(step)

			require.True(t, p1.Down)
			require.True(t, p2.Down)
			assert.Equal(t, 1, d.RoundWins[tt.winner])
			assert.Equal(t, 0, d.RoundWins[tt.winner.Opposite()])
			assert.Equal(t, session.PhaseRoundOver, d.Phase)
			assert.Equal(t, 1, d.RoundNumber)
		})
	}
}
