package session

import (
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
)

// Overview 伺服器概況的唯讀快照
//
// 由排程器在每個 tick 結束時發佈，HTTP handler 可以在任何 goroutine 讀取。
type Overview struct {
	Players         int                    `json:"players"`
	Queued          map[string]int         `json:"queued"`
	CoopSessions    int                    `json:"coop_sessions"`
	RaidsInProgress int                    `json:"raids_in_progress"`
	Duels           int                    `json:"duels"`
	Spectators      int                    `json:"spectators"`
	Ticks           uint64                 `json:"ticks"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ActiveDuels     []protocol.DuelSummary `json:"active_duels"`
}

// Overview 取得最近一次發佈的概況
func (m *Manager) Overview() *Overview {
	return m.overview.Load()
}

func (m *Manager) publishOverview(now time.Time) {
	o := &Overview{
		Players:      len(m.players),
		Queued:       make(map[string]int, len(m.queues)),
		CoopSessions: len(m.coops),
		Ticks:        m.tickCount,
		UpdatedAt:    now,
		ActiveDuels:  m.duelSummaries(),
	}
	for mode, q := range m.queues {
		o.Queued[mode] = q.Len()
	}
	for _, s := range m.coops {
		if s.InProgress {
			o.RaidsInProgress++
		}
	}
	for _, d := range m.duels {
		if d.ended {
			continue
		}
		o.Duels++
		o.Spectators += len(d.spectators)
	}
	m.overview.Store(o)
}
