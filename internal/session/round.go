package session

import (
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
)

// 系統設計問題：
//   三戰兩勝的對戰中，回合結束、斷線、投降、超時可能在同一個 tick 發生，
//   怎麼保證結果只結算一次？
//
// 核心挑戰：
//   1. 結束條件很多：擊倒、超時、斷線、投降、伺服器關閉
//   2. 積分只能更新一次
//   3. 回合之間要延遲，但不能在排程器之外開計時器
//
// 設計方案：
//   ✅ 狀態機 countdown → active → roundOver → ended
//   ✅ ended 旗標 - endMatch 第二次呼叫直接返回
//   ✅ nextTransitionAt - 延遲轉換記在對戰上，由 tick 檢查

// evaluateRound 回合判定，每個 active tick 在碰撞之後呼叫一次
//
//   - 雙方都還有人站著：檢查回合是否超時
//   - 只剩一方站著：該方贏得回合
//   - 雙方同時倒地：上一次判定時總血量較高的一方獲勝，相同則判給 B 隊
func (m *Manager) evaluateRound(d *DuelMatch, now time.Time) {
	aliveA, aliveB := d.sideAlive(sim.SideA), d.sideAlive(sim.SideB)

	if aliveA && aliveB {
		if now.Sub(d.roundStartedAt) >= m.cfg.Duel.MaxRoundDuration {
			m.timeoutMatch(d, now)
			return
		}
		d.lastHealth[sim.SideA] = d.sideHealth(sim.SideA)
		d.lastHealth[sim.SideB] = d.sideHealth(sim.SideB)
		return
	}

	var winner sim.Side
	switch {
	case aliveA:
		winner = sim.SideA
	case aliveB:
		winner = sim.SideB
	case d.lastHealth[sim.SideA] > d.lastHealth[sim.SideB]:
		winner = sim.SideA
	default:
		winner = sim.SideB
	}

	d.RoundWins[winner]++
	d.event(protocol.DuelEvent{Kind: protocol.EventRoundOver, ObjectID: string(winner)})

	m.logger.Debug("回合結束",
		"match_id", d.ID,
		"round", d.RoundNumber,
		"winner", winner)

	if d.RoundWins[winner] >= d.winsNeeded() {
		m.endMatch(d, winner, protocol.ReasonRounds, now)
		return
	}

	d.Phase = PhaseRoundOver
	d.nextTransitionAt = now.Add(m.cfg.Duel.RoundRestartDelay)
	for _, dl := range d.roster {
		dl.shot = nil
	}
}

// timeoutMatch 回合超時直接結束整場對戰，由總血量決定勝負
func (m *Manager) timeoutMatch(d *DuelMatch, now time.Time) {
	healthA, healthB := d.sideHealth(sim.SideA), d.sideHealth(sim.SideB)

	var winner sim.Side
	switch {
	case healthA > healthB:
		winner = sim.SideA
	case healthB > healthA:
		winner = sim.SideB
	}
	m.endMatch(d, winner, protocol.ReasonTimeout, now)
}

// endMatch 結束對戰（只會生效一次）
//
// winner 為空字串代表平手或中止，此時不結算積分。
// 斷線或中途離開的敗方額外扣分，投降不扣。
func (m *Manager) endMatch(d *DuelMatch, winner sim.Side, reason string, now time.Time) {
	if d.ended {
		return
	}
	d.ended = true
	d.Phase = PhaseEnded
	d.nextTransitionAt = now.Add(m.cfg.Duel.EndCleanupDelay)
	for _, dl := range d.roster {
		dl.shot = nil
	}

	var changes []rating.Change
	if winner != "" && reason != protocol.ReasonAborted {
		var result rating.Result
		for _, dl := range d.roster {
			rp := rating.Player{ID: dl.ID, Nickname: dl.Nickname}
			if dl.Side == winner {
				result.Winners = append(result.Winners, rp)
				continue
			}
			result.Losers = append(result.Losers, rp)
			if dl.forfeited {
				result.Penalized = append(result.Penalized, dl.ID)
			}
		}
		result.Penalty = m.cfg.Rating.DisconnectPenalty
		changes = m.ratings.ApplyResult(result)
	}

	d.Result = &MatchResult{
		Winner:  winner,
		Reason:  reason,
		Changes: changes,
		EndedAt: now,
	}

	// 對戰結束後玩家可以立即重新排隊
	for _, dl := range d.roster {
		if p, ok := m.players[dl.ID]; ok && p.DuelID == d.ID {
			p.DuelID = ""
		}
	}

	m.broadcastDuelState(d, now)
	end := m.duelEnd(d)
	for _, id := range d.audience() {
		m.sender.Send(id, protocol.TypeDuelEnd, end)
	}

	m.logger.Info("對戰結束",
		"match_id", d.ID,
		"winner", end.Winner,
		"reason", reason,
		"rounds", d.RoundNumber)

	if reason == protocol.ReasonAborted {
		return
	}

	rec := publish.Record{
		Kind:       publish.KindDuel,
		MatchID:    d.ID,
		Mode:       d.Mode,
		Winner:     end.Winner,
		Reason:     reason,
		FinishedAt: now,
	}
	for _, dl := range d.roster {
		rec.Players = append(rec.Players, dl.ID)
		if profile, ok := m.ratings.Get(dl.ID); ok {
			rec.Ratings = append(rec.Ratings, profile)
		}
	}
	m.publisher.Publish(rec)
}

func (m *Manager) duelEnd(d *DuelMatch) protocol.DuelEnd {
	end := protocol.DuelEnd{
		MatchID:       d.ID,
		Winner:        protocol.WinnerDraw,
		RoundWins:     roundWins(d),
		Stats:         make(map[string]protocol.PlayerStats, len(d.roster)),
		NewRatings:    make(map[string]int, len(d.roster)),
		RatingChanges: make(map[string]int, len(d.roster)),
	}
	if d.Result == nil {
		return end
	}

	end.Reason = d.Result.Reason
	if d.Result.Winner != "" {
		end.Winner = string(d.Result.Winner)
	}

	for _, dl := range d.roster {
		if dl.Side == d.Result.Winner {
			end.WinnerIDs = append(end.WinnerIDs, dl.ID)
		}
		end.Stats[dl.ID] = protocol.PlayerStats{
			ShotsFired:  dl.Stats.ShotsFired,
			ShotsHit:    dl.Stats.ShotsHit,
			DamageDealt: dl.Stats.DamageDealt,
			Accuracy:    dl.Stats.Accuracy(),
		}
		end.NewRatings[dl.ID] = m.ratings.Rating(dl.ID)
		end.RatingChanges[dl.ID] = 0
	}
	for _, c := range d.Result.Changes {
		end.NewRatings[c.PlayerID] = c.New
		end.RatingChanges[c.PlayerID] = c.Delta()
	}
	return end
}
