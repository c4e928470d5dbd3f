package session

import (
	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// JoinSpectator 觀戰一場進行中的對戰
//
// 同時只能觀戰一場；切換時舊的對戰會收到 spectateEnded(switched)。
func (m *Manager) JoinSpectator(matchID, connID string) error {
	p, ok := m.players[connID]
	if !ok {
		return apperrors.ErrUnknownPlayer
	}

	d, ok := m.duels[matchID]
	if !ok {
		return apperrors.ErrMatchNotFound.WithDetails(matchID)
	}
	if d.ended {
		return apperrors.ErrMatchNotActive
	}
	if d.member(p.ID) != nil {
		return apperrors.ErrOwnMatch
	}
	if p.busy() {
		return apperrors.ErrAlreadyInSession
	}

	if p.SpectatingID != matchID {
		m.stopSpectating(p, "switched", true)
		d.spectators = append(d.spectators, p.ID)
		p.SpectatingID = matchID
	}

	views := make([]protocol.CombatantView, 0, len(d.roster))
	for _, dl := range d.roster {
		views = append(views, combatantView(dl))
	}
	m.sender.Send(p.ID, protocol.TypeSpectateStart, protocol.SpectateStart{
		MatchID:   d.ID,
		Players:   views,
		RoundInfo: m.roundInfo(d),
	})

	m.logger.Debug("觀戰者加入", "match_id", d.ID, "player_id", p.ID, "spectators", len(d.spectators))
	return nil
}

// stopSpectating 停止觀戰（冪等）
func (m *Manager) stopSpectating(p *Player, reason string, notify bool) {
	if p.SpectatingID == "" {
		return
	}
	matchID := p.SpectatingID
	p.SpectatingID = ""

	if d, ok := m.duels[matchID]; ok {
		for i, id := range d.spectators {
			if id == p.ID {
				d.spectators = append(d.spectators[:i], d.spectators[i+1:]...)
				break
			}
		}
	}

	if notify {
		m.sender.Send(p.ID, protocol.TypeSpectateEnded, protocol.SpectateEnded{MatchID: matchID, Reason: reason})
	}
}
