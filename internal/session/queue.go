package session

import (
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/matchmaking"
	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// handleQueueJoin 加入對戰佇列，並立即嘗試配對
//
// 重複加入同一模式視為成功（回傳目前位置）。
func (m *Manager) handleQueueJoin(p *Player, msg protocol.DuelQueueJoin, now time.Time) error {
	mode := msg.Mode
	if mode == "" {
		mode = protocol.Mode1v1
	}
	q, ok := m.queues[mode]
	if !ok {
		return apperrors.ErrInvalidQueueMode.WithDetails(mode)
	}

	if p.CoopID != "" || p.DuelID != "" {
		return apperrors.ErrAlreadyInSession
	}
	if p.QueueMode != "" {
		if p.QueueMode != mode {
			return apperrors.ErrAlreadyInSession.WithDetails("queued for " + p.QueueMode)
		}
		m.sender.Send(p.ID, protocol.TypeDuelQueueJoined, protocol.DuelQueueJoined{Mode: mode, Position: q.Position(p.ID)})
		return nil
	}

	m.stopSpectating(p, "queued", true)
	p.applyProfile(msg.Nickname, msg.Skin)

	q.Enqueue(matchmaking.Entry{
		PlayerID:   p.ID,
		Nickname:   p.Nickname,
		Skin:       p.Skin,
		Rating:     m.ratings.Rating(p.ID),
		EnqueuedAt: now,
	})
	p.QueueMode = mode

	m.sender.Send(p.ID, protocol.TypeDuelQueueJoined, protocol.DuelQueueJoined{Mode: mode, Position: q.Position(p.ID)})
	m.logger.Debug("玩家加入配對佇列", "player_id", p.ID, "mode", mode, "queue_size", q.Len())

	m.pairQueue(mode, now)
	return nil
}

// cancelQueue 離開佇列（冪等）
func (m *Manager) cancelQueue(p *Player, notify bool) {
	if p.QueueMode == "" {
		return
	}
	if q, ok := m.queues[p.QueueMode]; ok {
		q.Cancel(p.ID)
	}
	p.QueueMode = ""

	if notify {
		m.sender.Send(p.ID, protocol.TypeDuelQueueLeft, protocol.DuelQueueLeft{})
	}
}

// pairQueue 持續配對直到佇列中找不到合適的組合
func (m *Manager) pairQueue(mode string, now time.Time) {
	q, ok := m.queues[mode]
	if !ok {
		return
	}

	for {
		pair, ok := q.TryPair(now)
		if !ok {
			return
		}

		for _, e := range pair.Players() {
			if p, ok := m.players[e.PlayerID]; ok {
				p.QueueMode = ""
			}
		}

		if _, err := m.CreateDuelMatch(pair); err != nil {
			m.logger.Warn("創建對戰失敗",
				"mode", mode,
				"error", err)
		}
	}
}
