package session

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/system-design/14-realtime-match/internal/combat"
	"github.com/koopa0/system-design/14-realtime-match/internal/config"
	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// CoopSession 合作討伐房間
//
// 生命週期：
//
//	lobby ──startRaid──▶ raid ──Boss 倒下 / 全員倒地──▶ lobby
//
// 房主是最早加入的玩家，房主離開時轉移給剩下最早加入的人。
// 房間清空後保留 EmptyGrace 才被回收。
type CoopSession struct {
	ID         string
	HostID     string
	InProgress bool
	CreatedAt  time.Time

	Boss        *sim.Boss
	Obstacles   []*sim.Obstacle
	Projectiles []*sim.Projectile

	members      []string // 依加入順序
	participants map[string]*coopMember

	totalDamage        float64
	obstaclesDestroyed int
	emptySince         time.Time
	nextEntity         int
}

type coopMember struct {
	*sim.Combatant
	joinedAt    time.Time
	lastBossHit time.Time
	shot        *shotIntent
}

// shotIntent 待處理的射擊請求；同一 tick 內多次請求只保留最後一次
type shotIntent struct {
	x, y, angle float64
}

// Participants 成員 id（依加入順序）
func (s *CoopSession) Participants() []string {
	return slices.Clone(s.members)
}

// Member 取得成員的戰鬥狀態
func (s *CoopSession) Member(playerID string) (*sim.Combatant, bool) {
	mem, ok := s.participants[playerID]
	if !ok {
		return nil, false
	}
	return mem.Combatant, true
}

func (s *CoopSession) entityID(prefix string) string {
	s.nextEntity++
	return fmt.Sprintf("%s-%d", prefix, s.nextEntity)
}

func (s *CoopSession) combatants() []*sim.Combatant {
	out := make([]*sim.Combatant, 0, len(s.members))
	for _, id := range s.members {
		out = append(out, s.participants[id].Combatant)
	}
	return out
}

func (s *CoopSession) allDown() bool {
	for _, id := range s.members {
		if !s.participants[id].Down {
			return false
		}
	}
	return true
}

func bossParams(c config.CoopConfig) sim.BossParams {
	return sim.BossParams{
		Bounds:         sim.Bounds{MinX: c.Boss.MinX, MinY: c.Boss.MinY, MaxX: c.Boss.MaxX, MaxY: c.Boss.MaxY},
		StartX:         c.Boss.StartX,
		StartY:         c.Boss.StartY,
		SpeedX:         c.Boss.SpeedX,
		SpeedY:         c.Boss.SpeedY,
		Spin:           c.Boss.Spin,
		MaxHealth:      c.Boss.MaxHealth,
		AttackInterval: c.Boss.AttackInterval,
	}
}

func (m *Manager) coopArena() sim.Bounds {
	return sim.Arena(m.cfg.Coop.Arena.Width, m.cfg.Coop.Arena.Height)
}

// CreateCoopSession 建立空的合作房間
func (m *Manager) CreateCoopSession() *CoopSession {
	now := m.clock.Now()
	s := &CoopSession{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		Boss:         sim.NewBoss(bossParams(m.cfg.Coop)),
		participants: make(map[string]*coopMember),
		emptySince:   now,
	}
	m.coops[s.ID] = s

	m.logger.Info("合作房間已創建", "session_id", s.ID)
	return s
}

// JoinCoop 加入指定的合作房間
func (m *Manager) JoinCoop(sessionID, playerID string) error {
	p, ok := m.players[playerID]
	if !ok {
		return apperrors.ErrUnknownPlayer
	}
	if p.busy() {
		return apperrors.ErrAlreadyInSession
	}

	s, ok := m.coops[sessionID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if s.InProgress {
		return apperrors.ErrRaidInProgress
	}
	if len(s.members) >= m.cfg.Coop.MaxPlayers {
		return apperrors.ErrSessionFull
	}

	m.stopSpectating(p, "joined lobby", true)

	c := sim.NewCombatant(p.ID, sim.SidePlayers, m.cfg.Coop.PlayerMaxHealth, m.cfg.Coop.PlayerMaxEnergy)
	c.Nickname, c.Skin = p.Nickname, p.Skin
	x, y := m.coopSpawn(len(s.members))
	c.Reset(x, y, -math.Pi/2)

	s.participants[p.ID] = &coopMember{Combatant: c, joinedAt: m.clock.Now()}
	s.members = append(s.members, p.ID)
	if s.HostID == "" {
		s.HostID = p.ID
	}
	p.CoopID = s.ID

	m.logger.Info("玩家加入合作房間",
		"session_id", s.ID,
		"player_id", p.ID,
		"players", len(s.members))

	m.broadcastLobby(s)
	return nil
}

// coopSpawn 玩家沿底部排開
func (m *Manager) coopSpawn(slot int) (float64, float64) {
	arena := m.cfg.Coop.Arena
	n := float64(m.cfg.Coop.MaxPlayers + 1)
	return arena.Width * float64(slot+1) / n, arena.Height - 80
}

func (m *Manager) handleJoinLobby(p *Player, msg protocol.JoinLobby) error {
	if p.CoopID != "" {
		// 已在房間中：只更新外觀並重送大廳狀態
		if s, ok := m.coops[p.CoopID]; ok && (msg.SessionID == "" || msg.SessionID == s.ID) {
			p.applyProfile(msg.Nickname, msg.Skin)
			if mem, ok := s.participants[p.ID]; ok {
				mem.Nickname, mem.Skin = p.Nickname, p.Skin
			}
			m.broadcastLobby(s)
			return nil
		}
		return apperrors.ErrAlreadyInSession
	}
	if p.busy() {
		return apperrors.ErrAlreadyInSession
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = m.openCoopSession()
	}

	if _, ok := m.coops[sessionID]; !ok {
		return apperrors.ErrSessionNotFound
	}

	p.applyProfile(msg.Nickname, msg.Skin)
	return m.JoinCoop(sessionID, p.ID)
}

// openCoopSession 找一個可加入的房間（最早建立者優先），沒有就建一個
func (m *Manager) openCoopSession() string {
	var best *CoopSession
	for _, s := range m.coops {
		if s.InProgress || len(s.members) >= m.cfg.Coop.MaxPlayers {
			continue
		}
		if best == nil || s.CreatedAt.Before(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.ID < best.ID) {
			best = s
		}
	}
	if best != nil {
		return best.ID
	}
	return m.CreateCoopSession().ID
}

// leaveCoop 離開合作房間（冪等）
func (m *Manager) leaveCoop(p *Player, now time.Time) {
	if p.CoopID == "" {
		return
	}
	s, ok := m.coops[p.CoopID]
	p.CoopID = ""
	if !ok {
		return
	}

	delete(s.participants, p.ID)
	s.members = slices.DeleteFunc(s.members, func(id string) bool { return id == p.ID })

	if s.HostID == p.ID {
		s.HostID = ""
		if len(s.members) > 0 {
			s.HostID = s.members[0]
			m.logger.Info("房主已轉移", "session_id", s.ID, "host_id", s.HostID)
		}
	}

	if len(s.members) == 0 {
		s.emptySince = now
		s.InProgress = false
		s.Projectiles = nil
		s.Obstacles = nil
		return
	}

	if s.InProgress && s.allDown() {
		m.failRaid(s, "all players down")
	}
	m.broadcastLobby(s)
}

func (m *Manager) coopOf(p *Player) (*CoopSession, *coopMember, error) {
	if p.CoopID == "" {
		return nil, nil, apperrors.ErrNotParticipant
	}
	s, ok := m.coops[p.CoopID]
	if !ok {
		return nil, nil, apperrors.ErrSessionNotFound
	}
	return s, s.participants[p.ID], nil
}

func (m *Manager) handleStartRaid(p *Player, now time.Time) error {
	s, _, err := m.coopOf(p)
	if err != nil {
		return err
	}
	if s.HostID != p.ID {
		return apperrors.ErrNotHost
	}
	if s.InProgress {
		return apperrors.ErrRaidInProgress
	}

	m.startRaid(s)
	return nil
}

// startRaid 開始（或重新開始）討伐
//
// Boss 血量依 BossResetPolicy：reset 每次補滿；preserve 保留上次剩餘血量，
// 只有上一次已經被擊敗時才補滿。
func (m *Manager) startRaid(s *CoopSession) {
	params := bossParams(m.cfg.Coop)
	switch {
	case m.cfg.Coop.BossResetPolicy == config.BossResetPreserve && !s.Boss.Defeated():
		s.Boss.ResetPosition(params)
	default:
		s.Boss.Reset(params)
	}

	for i, id := range s.members {
		mem := s.participants[id]
		x, y := m.coopSpawn(i)
		mem.Reset(x, y, -math.Pi/2)
		mem.Stats = sim.Stats{}
		mem.shot = nil
		mem.lastBossHit = time.Time{}
	}

	s.Obstacles = nil
	s.Projectiles = nil
	s.totalDamage = 0
	s.obstaclesDestroyed = 0
	s.InProgress = true

	m.logger.Info("討伐開始",
		"session_id", s.ID,
		"players", len(s.members),
		"boss_health", s.Boss.Health)

	m.broadcastCoop(s, protocol.TypeRaidStart, protocol.RaidStart{
		SessionID: s.ID,
		Boss:      bossView(s.Boss),
		Players:   m.coopPlayerViews(s),
	})
}

// handleBossDamage 訊息驅動的 Boss 傷害
//
// 每位玩家兩次傷害之間至少間隔 BossDamageInterval；傷害四捨五入後限制在 [1, MaxBossHit]。
func (m *Manager) handleBossDamage(p *Player, msg protocol.BossDamage, now time.Time) error {
	s, mem, err := m.coopOf(p)
	if err != nil {
		return err
	}
	if !s.InProgress {
		return apperrors.ErrRaidNotStarted
	}
	if mem.Down {
		return apperrors.ErrPlayerDown
	}
	if math.IsNaN(msg.Amount) || math.IsInf(msg.Amount, 0) {
		return apperrors.ErrInvalidMessage.WithDetails("invalid damage amount")
	}
	if !mem.lastBossHit.IsZero() && now.Sub(mem.lastBossHit) < m.cfg.Coop.BossDamageInterval {
		return apperrors.ErrRateLimited
	}
	mem.lastBossHit = now

	amount := math.Round(msg.Amount)
	amount = math.Max(1, math.Min(m.cfg.Coop.MaxBossHit, amount))

	applied := s.Boss.TakeDamage(amount)
	mem.Stats.DamageDealt += applied
	s.totalDamage += applied

	m.broadcastCoop(s, protocol.TypeBossUpdate, protocol.BossUpdate{Boss: bossView(s.Boss)})

	if s.Boss.Defeated() {
		m.completeRaid(s, now)
	}
	return nil
}

func (m *Manager) handleObstacleHit(p *Player, msg protocol.ObstacleHit) error {
	s, mem, err := m.coopOf(p)
	if err != nil {
		return err
	}
	if !s.InProgress {
		return apperrors.ErrRaidNotStarted
	}

	// 已被其他人擊毀或已離開畫面：靜默忽略
	o := sim.FindObstacle(s.Obstacles, msg.ID)
	if o == nil {
		return nil
	}
	o.Destroyed = true
	s.obstaclesDestroyed++
	mem.Stats.ShotsHit++
	return nil
}

func (m *Manager) handlePlayerMove(p *Player, msg protocol.PlayerMove) error {
	_, mem, err := m.coopOf(p)
	if err != nil || mem.Down {
		// 過期或倒地後的移動封包，不回覆
		return nil
	}
	mem.MoveTo(m.coopArena(), msg.X, msg.Y, msg.Angle)
	return nil
}

// handleShoot 記錄射擊意圖，下一個 tick 才真正發射
func (m *Manager) handleShoot(p *Player, msg protocol.Shoot) error {
	if p.DuelID != "" {
		return m.handleDuelShoot(p, msg)
	}

	s, mem, err := m.coopOf(p)
	if err != nil {
		return nil
	}
	if !s.InProgress || mem.Down {
		return nil
	}
	mem.shot = &shotIntent{x: msg.X, y: msg.Y, angle: msg.Angle}
	return nil
}

// completeRaid Boss 被擊敗
func (m *Manager) completeRaid(s *CoopSession, now time.Time) {
	s.InProgress = false

	team := make([]string, 0, len(s.members))
	for _, id := range s.members {
		team = append(team, s.participants[id].Nickname)
	}
	score := int(math.Round(s.totalDamage)) + m.cfg.Coop.ObstacleBonus*s.obstaclesDestroyed

	m.logger.Info("Boss 已被擊敗",
		"session_id", s.ID,
		"score", score,
		"team", team)

	m.broadcastCoop(s, protocol.TypeRaidDefeated, protocol.RaidDefeated{Team: team, Score: score})

	m.publisher.Publish(publish.Record{
		Kind:       publish.KindRaid,
		MatchID:    s.ID,
		Winner:     string(sim.SidePlayers),
		Reason:     "defeated",
		Score:      score,
		Players:    s.Participants(),
		FinishedAt: now,
	})
}

// failRaid 全員倒地，討伐失敗（不影響積分）
func (m *Manager) failRaid(s *CoopSession, reason string) {
	s.InProgress = false
	s.Projectiles = nil

	m.logger.Info("討伐失敗", "session_id", s.ID, "reason", reason)
	m.broadcastCoop(s, protocol.TypeRaidFailed, protocol.RaidFailed{Reason: reason})
}

// abortCoop tick 發生 panic 時終止房間
func (m *Manager) abortCoop(s *CoopSession, now time.Time) {
	if s.InProgress {
		m.failRaid(s, "aborted")
	}
	for _, id := range s.members {
		if p, ok := m.players[id]; ok {
			p.CoopID = ""
		}
	}
	s.members = nil
	clear(s.participants)
	s.emptySince = now.Add(-m.cfg.Coop.EmptyGrace)
}

// tickCoop 推進一個合作房間
//
// 順序：效果 / 能量 → 射擊意圖 → 移動與生成 → 碰撞 → 結束判定 → 快照。
func (m *Manager) tickCoop(s *CoopSession, now time.Time, dt time.Duration) {
	if !s.InProgress || len(s.members) == 0 {
		return
	}

	step := sim.ClampStep(dt, m.cfg.Tick.MinStep, m.cfg.Tick.MaxStep)
	scale := sim.Scale(step, m.cfg.Tick.ReferenceStep)
	arena := m.coopArena()

	for _, id := range s.members {
		mem := s.participants[id]
		sim.DecayEffects(mem.Combatant, step)
		sim.RegenEnergy(mem.Combatant, m.cfg.Combat.EnergyRegen, step)
	}

	for _, id := range s.members {
		mem := s.participants[id]
		if mem.shot == nil {
			continue
		}
		shot := mem.shot
		mem.shot = nil
		x, y := arena.Clamp(shot.x, shot.y)
		if proj, err := combat.Shoot(m.combat, mem.Combatant, s.entityID("b"), x, y, shot.angle, now); err == nil {
			s.Projectiles = append(s.Projectiles, proj)
		}
	}

	params := bossParams(m.cfg.Coop)
	sim.StepBoss(s.Boss, params, scale)
	if s.Boss.TickAttack(step, m.cfg.Coop.Boss.AttackInterval) {
		m.bossAttack(s, now)
	}

	s.Obstacles, _ = sim.SpawnObstacle(m.rng, s.Obstacles, m.cfg.Coop.Obstacles, arena, s.entityID("o"))
	s.Obstacles = sim.StepObstacles(s.Obstacles, arena, scale)
	s.Projectiles = sim.StepProjectiles(s.Projectiles, arena, scale, now, m.cfg.Combat.ProjectileMaxLife)

	res := combat.ResolveProjectiles(m.combat, s.Projectiles, s.combatants(), s.Obstacles)
	for _, oh := range res.Obstacles {
		if _, ok := s.participants[oh.ShooterID]; ok {
			s.obstaclesDestroyed++
		}
	}

	if s.allDown() {
		m.failRaid(s, "all players down")
		return
	}

	m.broadcastCoop(s, protocol.TypeBossUpdate, protocol.BossUpdate{Boss: bossView(s.Boss)})
	m.broadcastCoop(s, protocol.TypeObstaclesUpdate, protocol.ObstaclesUpdate{Obstacles: obstacleViews(s.Obstacles)})
	m.broadcastCoop(s, protocol.TypePlayersUpdate, protocol.PlayersUpdate{
		Players:     m.coopPlayerViews(s),
		Projectiles: projectileViews(s.Projectiles),
	})
}

// bossAttack Boss 朝每位存活玩家發射一顆子彈
func (m *Manager) bossAttack(s *CoopSession, now time.Time) {
	for _, id := range s.members {
		mem := s.participants[id]
		if mem.Down {
			continue
		}
		s.Projectiles = append(s.Projectiles, &sim.Projectile{
			ID:        s.entityID("bb"),
			OwnerID:   string(sim.SideBoss),
			Side:      sim.SideBoss,
			X:         s.Boss.X,
			Y:         s.Boss.Y,
			Angle:     sim.AngleTo(s.Boss.X, s.Boss.Y, mem.X, mem.Y),
			Speed:     m.cfg.Coop.Boss.AttackSpeed,
			Damage:    m.cfg.Coop.Boss.AttackDamage,
			CreatedAt: now,
		})
	}
}

func (m *Manager) broadcastCoop(s *CoopSession, msgType string, payload any) {
	for _, id := range s.members {
		m.sender.Send(id, msgType, payload)
	}
}

func (m *Manager) broadcastLobby(s *CoopSession) {
	m.broadcastCoop(s, protocol.TypeLobbyUpdate, protocol.LobbyUpdate{
		SessionID:  s.ID,
		HostID:     s.HostID,
		InProgress: s.InProgress,
		Players:    m.coopPlayerViews(s),
	})
}
