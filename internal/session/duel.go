package session

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/system-design/14-realtime-match/internal/combat"
	"github.com/koopa0/system-design/14-realtime-match/internal/matchmaking"
	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// 客戶端主動拾取道具時，允許的距離為拾取半徑的 1.5 倍
const powerUpCollectTolerance = 1.5

// Phase 對戰階段
//
//	countdown → active → roundOver → active → ... → ended
//	              └──────── 任一方達到勝場 / 超時 / 棄權 ────────┘
type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseRoundOver Phase = "roundOver"
	PhaseEnded     Phase = "ended"
)

// MatchResult 對戰結果
type MatchResult struct {
	Winner  sim.Side // 空字串表示平手或中止
	Reason  string
	Changes []rating.Change
	EndedAt time.Time
}

// DuelMatch 一場 best-of-N 對戰
type DuelMatch struct {
	ID          string
	Mode        string
	BestOf      int
	Phase       Phase
	RoundNumber int
	RoundWins   map[sim.Side]int
	StartedAt   time.Time
	Result      *MatchResult

	PowerUps    []*sim.PowerUp
	Obstacles   []*sim.Obstacle
	Projectiles []*sim.Projectile

	roster     []*duelist // A 隊在前
	spectators []string

	roundStartedAt   time.Time
	nextTransitionAt time.Time

	// lastHealth 上一次判定時各隊的總血量，雙方同時倒地時用來決定勝方
	lastHealth map[sim.Side]float64

	events     []protocol.DuelEvent
	ended      bool
	nextEntity int
}

type duelist struct {
	*sim.Combatant
	rating    int // 配對時的積分快照
	connected bool
	forfeited bool // 斷線或中途離開
	shot      *shotIntent
}

// Player 取得參戰者的戰鬥狀態
func (d *DuelMatch) Player(playerID string) (*sim.Combatant, bool) {
	dl := d.member(playerID)
	if dl == nil {
		return nil, false
	}
	return dl.Combatant, true
}

// Spectators 觀戰者 id
func (d *DuelMatch) Spectators() []string {
	return slices.Clone(d.spectators)
}

// Ended 是否已結束
func (d *DuelMatch) Ended() bool {
	return d.ended
}

func (d *DuelMatch) member(playerID string) *duelist {
	for _, dl := range d.roster {
		if dl.ID == playerID {
			return dl
		}
	}
	return nil
}

func (d *DuelMatch) side(side sim.Side) []*duelist {
	var out []*duelist
	for _, dl := range d.roster {
		if dl.Side == side {
			out = append(out, dl)
		}
	}
	return out
}

func (d *DuelMatch) sideAlive(side sim.Side) bool {
	for _, dl := range d.side(side) {
		if !dl.Down {
			return true
		}
	}
	return false
}

func (d *DuelMatch) sideConnected(side sim.Side) bool {
	for _, dl := range d.side(side) {
		if dl.connected {
			return true
		}
	}
	return false
}

func (d *DuelMatch) sideHealth(side sim.Side) float64 {
	total := 0.0
	for _, dl := range d.side(side) {
		total += dl.Health
	}
	return total
}

func (d *DuelMatch) combatants() []*sim.Combatant {
	out := make([]*sim.Combatant, 0, len(d.roster))
	for _, dl := range d.roster {
		out = append(out, dl.Combatant)
	}
	return out
}

// audience 會收到這場對戰訊息的連線：在線的參戰者與所有觀戰者
func (d *DuelMatch) audience() []string {
	out := make([]string, 0, len(d.roster)+len(d.spectators))
	for _, dl := range d.roster {
		if dl.connected {
			out = append(out, dl.ID)
		}
	}
	return append(out, d.spectators...)
}

// winsNeeded 贏得對戰需要的回合數 ceil(bestOf/2)
func (d *DuelMatch) winsNeeded() int {
	return (d.BestOf + 1) / 2
}

func (d *DuelMatch) entityID(prefix string) string {
	d.nextEntity++
	return fmt.Sprintf("%s-%d", prefix, d.nextEntity)
}

func (d *DuelMatch) event(e protocol.DuelEvent) {
	d.events = append(d.events, e)
}

func (m *Manager) duelArena() sim.Bounds {
	return sim.Arena(m.cfg.Duel.Arena.Width, m.cfg.Duel.Arena.Height)
}

// CreateDuelMatch 以配對結果建立對戰並通知雙方
func (m *Manager) CreateDuelMatch(pair matchmaking.Pairing) (*DuelMatch, error) {
	for _, e := range pair.Players() {
		p, ok := m.players[e.PlayerID]
		if !ok {
			return nil, apperrors.ErrUnknownPlayer.WithDetails(e.PlayerID)
		}
		if p.CoopID != "" || p.DuelID != "" {
			return nil, apperrors.ErrAlreadyInSession.WithDetails(e.PlayerID)
		}
	}

	now := m.clock.Now()
	mode := protocol.Mode1v1
	if pair.TeamSize == 2 {
		mode = protocol.Mode2v2
	}

	d := &DuelMatch{
		ID:         uuid.New().String(),
		Mode:       mode,
		BestOf:     m.cfg.Duel.BestOf,
		RoundWins:  map[sim.Side]int{sim.SideA: 0, sim.SideB: 0},
		StartedAt:  now,
		lastHealth: make(map[sim.Side]float64),
	}

	for side, entries := range map[sim.Side][]matchmaking.Entry{sim.SideA: pair.SideA, sim.SideB: pair.SideB} {
		for _, e := range entries {
			c := sim.NewCombatant(e.PlayerID, side, m.cfg.Duel.MaxHealth, m.cfg.Duel.MaxEnergy)
			c.Nickname, c.Skin = e.Nickname, e.Skin
			d.roster = append(d.roster, &duelist{Combatant: c, rating: e.Rating, connected: true})
		}
	}
	slices.SortStableFunc(d.roster, func(a, b *duelist) int {
		if a.Side == b.Side {
			return 0
		}
		if a.Side == sim.SideA {
			return -1
		}
		return 1
	})

	for _, dl := range d.roster {
		m.players[dl.ID].DuelID = d.ID
	}
	m.duels[d.ID] = d

	for _, dl := range d.roster {
		m.sender.Send(dl.ID, protocol.TypeMatchFound, m.matchFoundFor(d, dl))
	}

	m.logger.Info("對戰已創建",
		"match_id", d.ID,
		"mode", mode,
		"players", len(d.roster))

	m.startRound(d, now, 1, m.cfg.Duel.CountdownDelay)
	return d, nil
}

func (m *Manager) matchFoundFor(d *DuelMatch, self *duelist) protocol.MatchFound {
	out := protocol.MatchFound{
		MatchID: d.ID,
		Mode:    d.Mode,
		Side:    string(self.Side),
	}
	for _, dl := range d.roster {
		profile := protocol.PublicProfile{ID: dl.ID, Nickname: dl.Nickname, Skin: dl.Skin, Rating: dl.rating}
		switch {
		case dl.ID == self.ID:
		case dl.Side == self.Side:
			out.Teammates = append(out.Teammates, profile)
		default:
			out.Opponents = append(out.Opponents, profile)
		}
	}
	if len(out.Opponents) > 0 {
		out.Opponent = out.Opponents[0]
	}
	return out
}

// startRound 重置場地並開始新回合
//
// countdown > 0 時先進入倒數，否則直接開打。
func (m *Manager) startRound(d *DuelMatch, now time.Time, number int, countdown time.Duration) {
	arena := m.cfg.Duel.Arena

	for _, side := range []sim.Side{sim.SideA, sim.SideB} {
		members := d.side(side)
		x, angle := arena.Width*0.2, 0.0
		if side == sim.SideB {
			x, angle = arena.Width*0.8, math.Pi
		}
		for i, dl := range members {
			y := arena.Height * float64(i+1) / float64(len(members)+1)
			dl.Reset(x, y, angle)
			dl.shot = nil
			if dl.forfeited {
				dl.TakeDamage(dl.Health)
			}
		}
	}

	d.PowerUps = nil
	d.Obstacles = nil
	d.Projectiles = nil
	d.RoundNumber = number

	if countdown > 0 {
		d.Phase = PhaseCountdown
		d.nextTransitionAt = now.Add(countdown)
	} else {
		d.activate(now)
	}

	payload := protocol.DuelNewRound{RoundNumber: number, RoundWins: roundWins(d)}
	for _, id := range d.audience() {
		m.sender.Send(id, protocol.TypeDuelNewRound, payload)
	}
}

func (d *DuelMatch) activate(now time.Time) {
	d.Phase = PhaseActive
	d.roundStartedAt = now
	d.lastHealth[sim.SideA] = d.sideHealth(sim.SideA)
	d.lastHealth[sim.SideB] = d.sideHealth(sim.SideB)
}

func (m *Manager) duelOf(p *Player) (*DuelMatch, *duelist) {
	if p.DuelID == "" {
		return nil, nil
	}
	d, ok := m.duels[p.DuelID]
	if !ok || d.ended {
		return nil, nil
	}
	dl := d.member(p.ID)
	if dl == nil {
		return nil, nil
	}
	return d, dl
}

// handleDuelUpdate 位置更新立即生效（最後寫入者勝），射擊延到下一個 tick
//
// 客戶端回報的能量只是預測值，伺服器不採用。
func (m *Manager) handleDuelUpdate(p *Player, msg protocol.DuelUpdate) error {
	d, dl := m.duelOf(p)
	if d == nil || dl.Down {
		return nil
	}

	dl.MoveTo(m.duelArena(), msg.X, msg.Y, msg.Angle)
	if msg.Action == protocol.ActionShoot {
		m.queueDuelShot(d, dl)
	}
	return nil
}

func (m *Manager) handleDuelShoot(p *Player, msg protocol.Shoot) error {
	d, dl := m.duelOf(p)
	if d == nil || dl.Down {
		return nil
	}

	dl.MoveTo(m.duelArena(), msg.X, msg.Y, msg.Angle)
	m.queueDuelShot(d, dl)
	return nil
}

func (m *Manager) queueDuelShot(d *DuelMatch, dl *duelist) {
	if d.Phase != PhaseActive || dl.Down {
		return
	}
	dl.shot = &shotIntent{x: dl.X, y: dl.Y, angle: dl.Angle}
}

// handleHitConfirm 客戶端回報命中，伺服器驗證後以自己的數值結算
//
// 驗證：子彈存在且未命中、目標屬於敵方且存活、回報者是目標或射手、
// 子彈與目標距離在命中半徑的容許倍數內。客戶端的 damage 欄位不採用。
func (m *Manager) handleHitConfirm(p *Player, msg protocol.DuelHitConfirm, now time.Time) error {
	d, _ := m.duelOf(p)
	if d == nil {
		return apperrors.ErrNotParticipant
	}
	if d.Phase != PhaseActive {
		return nil
	}

	proj := sim.FindProjectile(d.Projectiles, msg.BulletID)
	if proj == nil {
		// 已由伺服器碰撞判定結算或已消失
		return nil
	}

	target := d.member(msg.TargetID)
	if target == nil || target.Side == proj.Side {
		return apperrors.ErrInvalidMessage.WithDetails("invalid hit target")
	}
	if p.ID != target.ID && p.ID != proj.OwnerID {
		return apperrors.ErrNotParticipant
	}
	if target.Down {
		return nil
	}

	tolerance := m.cfg.Duel.HitConfirmTolerance
	if !combat.Within(proj.X, proj.Y, target.X, target.Y, m.combat.HitRadius*tolerance) {
		return nil
	}

	applied := combat.ApplyHit(m.combat, target.Combatant, proj.Damage)
	proj.Spent = true
	if shooter := d.member(proj.OwnerID); shooter != nil {
		shooter.Stats.ShotsHit++
		shooter.Stats.DamageDealt += applied
	}
	m.recordHit(d, combat.Hit{
		ProjectileID: proj.ID,
		ShooterID:    proj.OwnerID,
		TargetID:     target.ID,
		Damage:       applied,
		Knockout:     target.Down,
	})
	return nil
}

func (m *Manager) recordHit(d *DuelMatch, hit combat.Hit) {
	d.event(protocol.DuelEvent{
		Kind:     protocol.EventHit,
		PlayerID: hit.ShooterID,
		TargetID: hit.TargetID,
		ObjectID: hit.ProjectileID,
		Amount:   hit.Damage,
	})
	if hit.Knockout {
		d.event(protocol.DuelEvent{
			Kind:     protocol.EventKnockout,
			PlayerID: hit.ShooterID,
			TargetID: hit.TargetID,
		})
	}
}

func (m *Manager) handlePowerUpCollect(p *Player, msg protocol.PowerUpCollect) error {
	d, dl := m.duelOf(p)
	if d == nil {
		return apperrors.ErrNotParticipant
	}
	if d.Phase != PhaseActive {
		return nil
	}

	var pickup *combat.Pickup
	d.PowerUps, pickup = combat.Collect(m.combat, dl.Combatant, d.PowerUps, msg.ID, powerUpCollectTolerance)
	if pickup != nil {
		d.event(protocol.DuelEvent{
			Kind:     protocol.EventPowerUp,
			PlayerID: pickup.PlayerID,
			ObjectID: string(pickup.Kind),
		})
	}
	return nil
}

func (m *Manager) handleConcede(p *Player, now time.Time) error {
	d, dl := m.duelOf(p)
	if d == nil {
		return apperrors.ErrNotParticipant
	}
	m.endMatch(d, dl.Side.Opposite(), protocol.ReasonConcede, now)
	return nil
}

// leaveDuel 斷線或離開對戰（冪等）
//
// 該玩家立即倒地；若同隊已無在線成員，對手直接獲勝。
func (m *Manager) leaveDuel(p *Player, reason string, now time.Time) {
	if p.DuelID == "" {
		return
	}
	d, dl := m.duelOf(p)
	p.DuelID = ""
	if d == nil || dl.forfeited {
		return
	}

	dl.forfeited = true
	dl.connected = false
	dl.shot = nil
	dl.TakeDamage(dl.Health)

	m.logger.Info("玩家離開對戰",
		"match_id", d.ID,
		"player_id", p.ID,
		"reason", reason)

	if !d.sideConnected(dl.Side) {
		m.endMatch(d, dl.Side.Opposite(), reason, now)
	}
}

// tickDuel 推進一場對戰
//
// 順序：效果 / 能量 → 射擊意圖 → 移動與生成 → 碰撞與拾取 → 回合判定 → 快照。
func (m *Manager) tickDuel(d *DuelMatch, now time.Time, dt time.Duration) {
	switch d.Phase {
	case PhaseEnded:
		return
	case PhaseCountdown:
		if now.Before(d.nextTransitionAt) {
			m.broadcastDuelState(d, now)
			return
		}
		d.activate(now)
	case PhaseRoundOver:
		if now.Before(d.nextTransitionAt) {
			m.broadcastDuelState(d, now)
			return
		}
		m.startRound(d, now, d.RoundNumber+1, 0)
	}

	step := sim.ClampStep(dt, m.cfg.Tick.MinStep, m.cfg.Tick.MaxStep)
	scale := sim.Scale(step, m.cfg.Tick.ReferenceStep)
	arena := m.duelArena()

	for _, dl := range d.roster {
		sim.DecayEffects(dl.Combatant, step)
		sim.RegenEnergy(dl.Combatant, m.cfg.Combat.EnergyRegen, step)
	}

	for _, dl := range d.roster {
		if dl.shot == nil {
			continue
		}
		shot := dl.shot
		dl.shot = nil
		proj, err := combat.Shoot(m.combat, dl.Combatant, d.entityID("b"), shot.x, shot.y, shot.angle, now)
		if err != nil {
			continue
		}
		d.Projectiles = append(d.Projectiles, proj)
		d.event(protocol.DuelEvent{Kind: protocol.EventShot, PlayerID: dl.ID, ObjectID: proj.ID})
	}

	d.Projectiles = sim.StepProjectiles(d.Projectiles, arena, scale, now, m.cfg.Combat.ProjectileMaxLife)
	d.Obstacles, _ = sim.SpawnObstacle(m.rng, d.Obstacles, m.cfg.Duel.Obstacles, arena, d.entityID("o"))
	d.Obstacles = sim.StepObstacles(d.Obstacles, arena, scale)
	d.PowerUps = sim.ExpirePowerUps(d.PowerUps, now)
	d.PowerUps, _ = sim.SpawnPowerUp(m.rng, d.PowerUps, m.cfg.Duel.PowerUps, arena, d.entityID("pu"), now)

	res := combat.ResolveProjectiles(m.combat, d.Projectiles, d.combatants(), d.Obstacles)
	for _, hit := range res.Hits {
		m.recordHit(d, hit)
	}
	for _, oh := range res.Obstacles {
		d.event(protocol.DuelEvent{Kind: protocol.EventObstacle, PlayerID: oh.ShooterID, ObjectID: oh.ObstacleID})
	}

	var pickups []combat.Pickup
	d.PowerUps, pickups = combat.CollectPowerUps(m.combat, d.combatants(), d.PowerUps)
	for _, pu := range pickups {
		d.event(protocol.DuelEvent{Kind: protocol.EventPowerUp, PlayerID: pu.PlayerID, ObjectID: string(pu.Kind)})
	}

	m.evaluateRound(d, now)
	if !d.ended {
		m.broadcastDuelState(d, now)
	}
}

// abortDuel tick 發生 panic 時中止對戰（不結算積分）並立即回收
func (m *Manager) abortDuel(d *DuelMatch, now time.Time) {
	if !d.ended {
		m.endMatch(d, "", protocol.ReasonAborted, now)
	}
	d.nextTransitionAt = now
}

// removeDuel 回收對戰，通知仍在觀戰的人
func (m *Manager) removeDuel(d *DuelMatch) {
	for _, id := range d.spectators {
		if p, ok := m.players[id]; ok && p.SpectatingID == d.ID {
			p.SpectatingID = ""
			m.sender.Send(id, protocol.TypeSpectateEnded, protocol.SpectateEnded{MatchID: d.ID, Reason: "ended"})
		}
	}
	d.spectators = nil

	for _, dl := range d.roster {
		if p, ok := m.players[dl.ID]; ok && p.DuelID == d.ID {
			p.DuelID = ""
		}
	}

	m.logger.Info("對戰已移除", "match_id", d.ID)
}
