// Package session 擁有所有合作房間與對戰，並以單一排程器驅動它們
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/combat"
	"github.com/koopa0/system-design/14-realtime-match/internal/config"
	"github.com/koopa0/system-design/14-realtime-match/internal/matchmaking"
	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// 系統設計問題：
//   多個房間、多個對戰同時進行，每個都要以固定頻率推進模擬，
//   同時還要處理源源不斷的玩家訊息。怎麼做才不需要到處加鎖？
//
// 設計方案：
//   ✅ 單一排程器 goroutine - 所有場次狀態只在這個 goroutine 內被讀寫
//   ✅ Inbox channel - 連線 goroutine 只負責投遞命令，不直接碰狀態
//   ✅ 截止時間欄位 - 回合重開、房間回收都記在場次上，由 tick 檢查
//   ✅ 每個場次獨立 recover - 一個場次出錯只會終止它自己
//
// 跨 goroutine 讀取的只有兩樣東西：
//   - rating.Store（自帶 RWMutex）
//   - Overview（每個 tick 結束後以 atomic.Pointer 發佈的唯讀快照）

// Manager 場次管理器
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	clock     Clock
	rng       *rand.Rand
	sender    Sender
	ratings   *rating.Store
	publisher Publisher
	combat    combat.Params

	players map[string]*Player
	coops   map[string]*CoopSession
	duels   map[string]*DuelMatch
	queues  map[string]*matchmaking.Queue // mode -> queue

	lastTick  time.Time
	tickCount uint64

	inbox    chan any
	overview atomic.Pointer[Overview]
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Inbox 命令
type (
	connectCmd struct {
		connID string
		reply  chan error
	}
	disconnectCmd struct {
		connID string
	}
	messageCmd struct {
		connID string
		msg    protocol.Inbound
	}
)

// NewManager 創建場次管理器（尚未啟動排程器，見 Start）
func NewManager(cfg *config.Config, sender Sender, ratings *rating.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		clock:     systemClock{},
		sender:    sender,
		ratings:   ratings,
		publisher: nopPublisher{},
		combat:    combat.FromConfig(cfg.Combat),
		players:   make(map[string]*Player),
		coops:     make(map[string]*CoopSession),
		duels:     make(map[string]*DuelMatch),
		queues:    make(map[string]*matchmaking.Queue),
		inbox:     make(chan any, cfg.Tick.InboxSize),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for _, mode := range []string{protocol.Mode1v1, protocol.Mode2v2} {
		teamSize := 1
		if mode == protocol.Mode2v2 {
			teamSize = 2
		}
		m.queues[mode] = matchmaking.NewQueue(matchmaking.Options{
			TeamSize:  teamSize,
			Threshold: cfg.Matchmaking.RatingThreshold,
			MaxWait:   cfg.Matchmaking.MaxWait,
		})
	}

	m.publishOverview(m.clock.Now())
	return m
}

// Start 啟動排程器 goroutine
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop 停止排程器並等待它結束
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
	m.logger.Info("場次管理器已停止")
}

// run 排程器主迴圈
//
// tick 與命令在同一個 select 中處理，因此模擬與訊息處理永遠不會同時執行。
func (m *Manager) run() {
	defer m.wg.Done()
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.TickInterval())
	defer ticker.Stop()

	m.logger.Info("排程器啟動", "interval", m.cfg.TickInterval())

	for {
		// 停止訊號優先於 inbox，已排隊的斷線不會在關閉時被判負
		select {
		case <-m.stopCh:
			m.shutdown()
			return
		default:
		}

		select {
		case <-m.stopCh:
			m.shutdown()
			return
		case cmd := <-m.inbox:
			m.dispatch(cmd)
		case <-ticker.C:
			m.Tick(m.clock.Now())
		}
	}
}

// SubmitConnect 投遞連線事件並等待註冊結果
func (m *Manager) SubmitConnect(ctx context.Context, connID string) error {
	reply := make(chan error, 1)
	if err := m.submit(ctx, connectCmd{connID: connID, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.doneCh:
		return apperrors.New(apperrors.ErrCodeUnavailable, "scheduler stopped")
	}
}

// SubmitDisconnect 投遞斷線事件
func (m *Manager) SubmitDisconnect(connID string) {
	_ = m.submit(context.Background(), disconnectCmd{connID: connID})
}

// SubmitMessage 投遞客戶端訊息
func (m *Manager) SubmitMessage(ctx context.Context, connID string, msg protocol.Inbound) error {
	return m.submit(ctx, messageCmd{connID: connID, msg: msg})
}

func (m *Manager) submit(ctx context.Context, cmd any) error {
	select {
	case m.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.doneCh:
		return apperrors.New(apperrors.ErrCodeUnavailable, "scheduler stopped")
	}
}

// dispatch 處理一個 inbox 命令；單一命令的 panic 不會讓排程器停止
func (m *Manager) dispatch(cmd any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("處理命令時發生 panic",
				"command", fmt.Sprintf("%T", cmd),
				"panic", r)
		}
	}()

	switch c := cmd.(type) {
	case connectCmd:
		c.reply <- m.Connect(c.connID)
	case disconnectCmd:
		m.Disconnect(c.connID)
	case messageCmd:
		if err := m.Handle(c.connID, c.msg); err != nil {
			m.replyError(c.connID, c.msg.Type(), err)
		}
	}
}

// replyError 把拒絕原因回覆給客戶端；高頻輸入的拒絕不回覆
func (m *Manager) replyError(connID, request string, err error) {
	if apperrors.IsSilent(err) {
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		m.logger.Error("處理消息時發生非預期錯誤",
			"player_id", connID,
			"type", request,
			"error", err)
		appErr = apperrors.New(apperrors.ErrCodeInternal, "internal error")
	}

	m.sender.Send(connID, protocol.TypeError, protocol.Error{
		Code:    appErr.Code,
		Message: appErr.Message,
		Request: request,
	})
}

// Connect 註冊新連線
func (m *Manager) Connect(connID string) error {
	if _, exists := m.players[connID]; exists {
		return apperrors.New(apperrors.ErrCodeAlreadyExists, "player already connected")
	}

	m.players[connID] = &Player{
		ID:          connID,
		Nickname:    defaultNickname,
		ConnectedAt: m.clock.Now(),
	}
	m.sender.Send(connID, protocol.TypeWelcome, protocol.Welcome{PlayerID: connID})

	m.logger.Debug("玩家已連線", "player_id", connID)
	return nil
}

// Disconnect 移除連線並清理它參與的一切（冪等）
//
// 對戰中斷線會立即判負；在佇列中則靜默移除。
func (m *Manager) Disconnect(connID string) {
	p, ok := m.players[connID]
	if !ok {
		return
	}

	now := m.clock.Now()
	m.cancelQueue(p, false)
	m.leaveCoop(p, now)
	m.leaveDuel(p, protocol.ReasonDisconnect, now)
	m.stopSpectating(p, "", false)

	delete(m.players, connID)
	m.logger.Debug("玩家已斷線", "player_id", connID)
}

// Handle 處理一則已解碼的客戶端訊息
//
// 錯誤只代表「這則訊息被拒絕」，狀態不會被部分修改。
func (m *Manager) Handle(connID string, msg protocol.Inbound) error {
	p, ok := m.players[connID]
	if !ok {
		return apperrors.ErrUnknownPlayer
	}
	now := m.clock.Now()

	switch msg := msg.(type) {
	case protocol.JoinLobby:
		return m.handleJoinLobby(p, msg)
	case protocol.StartRaid:
		return m.handleStartRaid(p, now)
	case protocol.BossDamage:
		return m.handleBossDamage(p, msg, now)
	case protocol.ObstacleHit:
		return m.handleObstacleHit(p, msg)
	case protocol.PlayerMove:
		return m.handlePlayerMove(p, msg)
	case protocol.Shoot:
		return m.handleShoot(p, msg)
	case protocol.DuelQueueJoin:
		return m.handleQueueJoin(p, msg, now)
	case protocol.DuelQueueCancel:
		m.cancelQueue(p, true)
		return nil
	case protocol.DuelUpdate:
		return m.handleDuelUpdate(p, msg)
	case protocol.DuelHitConfirm:
		return m.handleHitConfirm(p, msg, now)
	case protocol.PowerUpCollect:
		return m.handlePowerUpCollect(p, msg)
	case protocol.Spectate:
		return m.JoinSpectator(msg.MatchID, p.ID)
	case protocol.StopSpectating:
		m.stopSpectating(p, "stopped", true)
		return nil
	case protocol.Leave:
		m.leaveAll(p, now)
		return nil
	case protocol.Concede:
		return m.handleConcede(p, now)
	case protocol.GetLeaderboard:
		m.sender.Send(p.ID, protocol.TypeLeaderboard, m.leaderboard(msg.Limit))
		return nil
	case protocol.ListDuels:
		m.sender.Send(p.ID, protocol.TypeActiveDuels, protocol.ActiveDuels{Matches: m.duelSummaries()})
		return nil
	case protocol.Chat:
		return m.handleChat(p, msg)
	case protocol.Ping:
		m.sender.Send(p.ID, protocol.TypePong, nil)
		return nil
	default:
		return apperrors.ErrInvalidMessage
	}
}

// leaveAll 離開佇列、房間、對戰與觀戰（冪等）
func (m *Manager) leaveAll(p *Player, now time.Time) {
	m.cancelQueue(p, true)
	m.leaveCoop(p, now)
	m.leaveDuel(p, protocol.ReasonLeft, now)
	m.stopSpectating(p, "stopped", true)
}

// Tick 推進所有場次一步
//
// 順序固定：合作房間 → 對戰（依 id 排序）→ 配對 → 回收 → 發佈概況。
func (m *Manager) Tick(now time.Time) {
	dt := m.cfg.TickInterval()
	if !m.lastTick.IsZero() {
		dt = now.Sub(m.lastTick)
	}
	m.lastTick = now
	m.tickCount++

	for _, id := range slices.Sorted(maps.Keys(m.coops)) {
		s := m.coops[id]
		m.guard("coop", id, func() { m.tickCoop(s, now, dt) }, func() { m.abortCoop(s, now) })
	}

	for _, id := range slices.Sorted(maps.Keys(m.duels)) {
		d := m.duels[id]
		m.guard("duel", id, func() { m.tickDuel(d, now, dt) }, func() { m.abortDuel(d, now) })
	}

	for _, mode := range []string{protocol.Mode1v1, protocol.Mode2v2} {
		m.pairQueue(mode, now)
	}

	m.reap(now)
	m.publishOverview(now)
}

// guard 以 recover 隔離單一場次的錯誤
func (m *Manager) guard(kind, id string, fn func(), abort func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("場次 tick 發生 panic，中止該場次",
				"kind", kind,
				"session_id", id,
				"panic", r)
			abort()
		}
	}()
	fn()
}

// reap 移除已到期的場次
func (m *Manager) reap(now time.Time) {
	for id, s := range m.coops {
		if len(s.members) == 0 && now.Sub(s.emptySince) >= m.cfg.Coop.EmptyGrace {
			delete(m.coops, id)
			m.logger.Info("合作房間已移除", "session_id", id)
		}
	}

	for id, d := range m.duels {
		if d.Phase == PhaseEnded && !now.Before(d.nextTransitionAt) {
			m.removeDuel(d)
			delete(m.duels, id)
		}
	}
}

// shutdown 伺服器關閉時中止所有對戰（不結算積分）
func (m *Manager) shutdown() {
	now := m.clock.Now()
	for _, id := range slices.Sorted(maps.Keys(m.duels)) {
		d := m.duels[id]
		if !d.ended {
			m.endMatch(d, "", protocol.ReasonAborted, now)
		}
	}
}

// Player 取得玩家狀態
//
// 以下查詢方法只能在排程器 goroutine 內（或排程器未啟動時）呼叫。
func (m *Manager) Player(playerID string) (*Player, bool) {
	p, ok := m.players[playerID]
	return p, ok
}

// Coop 取得合作房間
func (m *Manager) Coop(sessionID string) (*CoopSession, bool) {
	s, ok := m.coops[sessionID]
	return s, ok
}

// Duel 取得對戰
func (m *Manager) Duel(matchID string) (*DuelMatch, bool) {
	d, ok := m.duels[matchID]
	return d, ok
}

func (m *Manager) leaderboard(limit int) protocol.Leaderboard {
	if limit <= 0 {
		limit = m.cfg.Rating.LeaderboardSize
	}
	if limit > 100 {
		limit = 100
	}

	top := m.ratings.Top(limit)
	entries := make([]protocol.LeaderboardEntry, 0, len(top))
	for i, p := range top {
		entries = append(entries, protocol.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.PlayerID,
			Nickname: p.Nickname,
			Rating:   p.Rating,
			Wins:     p.Wins,
			Losses:   p.Losses,
		})
	}
	return protocol.Leaderboard{Entries: entries}
}

func (m *Manager) handleChat(p *Player, msg protocol.Chat) error {
	text := sanitizeChat(msg.Text)
	if text == "" {
		return apperrors.ErrInvalidMessage.WithDetails("empty chat message")
	}

	var recipients []string
	switch {
	case p.CoopID != "":
		if s, ok := m.coops[p.CoopID]; ok {
			recipients = s.members
		}
	case p.DuelID != "":
		if d, ok := m.duels[p.DuelID]; ok {
			recipients = d.audience()
		}
	case p.SpectatingID != "":
		if d, ok := m.duels[p.SpectatingID]; ok {
			recipients = d.audience()
		}
	}
	if len(recipients) == 0 {
		return apperrors.ErrNotParticipant
	}

	out := protocol.ChatMessage{PlayerID: p.ID, Nickname: p.Nickname, Text: text}
	for _, id := range recipients {
		m.sender.Send(id, protocol.TypeChatMessage, out)
	}
	return nil
}
