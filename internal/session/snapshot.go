package session

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
)

func bossView(b *sim.Boss) protocol.BossView {
	return protocol.BossView{
		X:         b.X,
		Y:         b.Y,
		Angle:     b.Angle,
		Health:    b.Health,
		MaxHealth: b.MaxHealth,
	}
}

func obstacleViews(obstacles []*sim.Obstacle) []protocol.ObstacleView {
	out := make([]protocol.ObstacleView, 0, len(obstacles))
	for _, o := range obstacles {
		out = append(out, protocol.ObstacleView{ID: o.ID, Type: o.Type, X: o.X, Y: o.Y, Size: o.Size})
	}
	return out
}

func powerUpViews(powerUps []*sim.PowerUp) []protocol.PowerUpView {
	out := make([]protocol.PowerUpView, 0, len(powerUps))
	for _, pu := range powerUps {
		out = append(out, protocol.PowerUpView{ID: pu.ID, Type: string(pu.Kind), X: pu.X, Y: pu.Y, Size: pu.Size})
	}
	return out
}

func projectileViews(projectiles []*sim.Projectile) []protocol.ProjectileView {
	out := make([]protocol.ProjectileView, 0, len(projectiles))
	for _, p := range projectiles {
		out = append(out, protocol.ProjectileView{
			ID:      p.ID,
			OwnerID: p.OwnerID,
			X:       p.X,
			Y:       p.Y,
			Angle:   p.Angle,
			Side:    string(p.Side),
		})
	}
	return out
}

// coopPlayerViews 依加入順序列出房間成員
func (m *Manager) coopPlayerViews(s *CoopSession) []protocol.PlayerView {
	out := make([]protocol.PlayerView, 0, len(s.members))
	for _, id := range s.members {
		mem, ok := s.participants[id]
		if !ok {
			continue
		}
		out = append(out, protocol.PlayerView{
			ID:          id,
			Nickname:    mem.Nickname,
			Skin:        mem.Skin,
			X:           mem.X,
			Y:           mem.Y,
			Angle:       mem.Angle,
			Health:      mem.Health,
			MaxHealth:   mem.MaxHealth,
			IsHost:      id == s.HostID,
			Down:        mem.Down,
			DamageDealt: mem.Stats.DamageDealt,
		})
	}
	return out
}

func combatantView(dl *duelist) protocol.CombatantView {
	v := protocol.CombatantView{
		ID:        dl.ID,
		Nickname:  dl.Nickname,
		Skin:      dl.Skin,
		Side:      string(dl.Side),
		X:         dl.X,
		Y:         dl.Y,
		Angle:     dl.Angle,
		Health:    dl.Health,
		MaxHealth: dl.MaxHealth,
		Energy:    dl.Energy,
		MaxEnergy: dl.MaxEnergy,
		ShieldMs:  dl.Shield.Milliseconds(),
		Down:      dl.Down,
		Connected: dl.connected,
	}
	if len(dl.Effects) > 0 {
		v.Effects = make(map[string]int64, len(dl.Effects))
		for e, remaining := range dl.Effects {
			v.Effects[string(e)] = remaining.Milliseconds()
		}
	}
	return v
}

func roundWins(d *DuelMatch) map[string]int {
	return map[string]int{
		string(sim.SideA): d.RoundWins[sim.SideA],
		string(sim.SideB): d.RoundWins[sim.SideB],
	}
}

func (m *Manager) roundInfo(d *DuelMatch) protocol.RoundInfo {
	return protocol.RoundInfo{
		RoundNumber: d.RoundNumber,
		BestOf:      d.BestOf,
		RoundWins:   roundWins(d),
		Phase:       string(d.Phase),
	}
}

// timeRemaining 倒數與回合間隔時是距離下一階段的時間，進行中是回合剩餘時間
func (m *Manager) timeRemaining(d *DuelMatch, now time.Time) time.Duration {
	var remaining time.Duration
	switch d.Phase {
	case PhaseActive:
		remaining = m.cfg.Duel.MaxRoundDuration - now.Sub(d.roundStartedAt)
	case PhaseCountdown, PhaseRoundOver:
		remaining = d.nextTransitionAt.Sub(now)
	}
	return max(remaining, 0)
}

// broadcastDuelState 依每個接收者的視角送出快照，並清空本 tick 的事件
func (m *Manager) broadcastDuelState(d *DuelMatch, now time.Time) {
	views := make([]protocol.CombatantView, 0, len(d.roster))
	for _, dl := range d.roster {
		views = append(views, combatantView(dl))
	}

	base := protocol.DuelState{
		MatchID:       d.ID,
		PowerUps:      powerUpViews(d.PowerUps),
		Obstacles:     obstacleViews(d.Obstacles),
		Projectiles:   projectileViews(d.Projectiles),
		Events:        d.events,
		TimeRemaining: m.timeRemaining(d, now).Milliseconds(),
		RoundInfo:     m.roundInfo(d),
	}
	if base.Events == nil {
		base.Events = []protocol.DuelEvent{}
	}

	for _, dl := range d.roster {
		if !dl.connected {
			continue
		}
		m.sender.Send(dl.ID, protocol.TypeDuelState, perspective(base, views, dl))
	}

	if len(d.spectators) > 0 {
		spectated := base
		spectated.Players = views
		for _, id := range d.spectators {
			m.sender.Send(id, protocol.TypeDuelState, spectated)
		}
	}

	d.events = nil
}

func perspective(base protocol.DuelState, views []protocol.CombatantView, self *duelist) protocol.DuelState {
	out := base
	for i := range views {
		v := views[i]
		switch {
		case v.ID == self.ID:
			out.Self = &v
		case v.Side == string(self.Side):
			out.Teammates = append(out.Teammates, v)
		default:
			out.Opponents = append(out.Opponents, v)
		}
	}
	if len(out.Opponents) > 0 {
		out.Opponent = &out.Opponents[0]
	}
	return out
}

func duelSummary(d *DuelMatch) protocol.DuelSummary {
	players := make([]protocol.PublicProfile, 0, len(d.roster))
	for _, dl := range d.roster {
		players = append(players, protocol.PublicProfile{
			ID:       dl.ID,
			Nickname: dl.Nickname,
			Skin:     dl.Skin,
			Rating:   dl.rating,
		})
	}
	return protocol.DuelSummary{
		MatchID:    d.ID,
		Mode:       d.Mode,
		Phase:      string(d.Phase),
		Players:    players,
		RoundWins:  roundWins(d),
		Spectators: len(d.spectators),
	}
}

// duelSummaries 尚未結束的對戰，依開始時間排序
func (m *Manager) duelSummaries() []protocol.DuelSummary {
	matches := slices.SortedFunc(maps.Values(m.duels), func(a, b *DuelMatch) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]protocol.DuelSummary, 0, len(matches))
	for _, d := range matches {
		if d.ended {
			continue
		}
		out = append(out, duelSummary(d))
	}
	return out
}
