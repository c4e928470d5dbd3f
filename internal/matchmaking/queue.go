// Package matchmaking 依積分把等待中的玩家配對成對戰
package matchmaking

import (
	"math"
	"sort"
	"time"
)

// 系統設計問題：
//   玩家不斷加入佇列，積分分布不均，怎麼配出公平的對局又不讓人等太久？
//
// 核心挑戰：
//   1. 公平性：積分差越小越好
//   2. 等待時間：冷門時段可能永遠找不到積分相近的對手
//   3. 一致性：同一個玩家不能同時出現在兩場配對中
//
// 設計方案：
//   ✅ 以最新入列者為基準找積分最接近的人 - 新人不必排在所有人後面
//   ✅ 等待上限 - 超過 MaxWait 直接與等最久的人配對
//   ✅ 2v2 最高分與最低分同隊 - 兩隊平均積分接近
//   ✅ 冪等的 Enqueue / Cancel - 重複請求沒有副作用

// Entry 佇列條目
type Entry struct {
	PlayerID   string
	Nickname   string
	Skin       string
	Rating     int // 入列時的積分快照
	EnqueuedAt time.Time
}

// Pairing 配對結果
//
// SideA 包含觸發配對的最新入列者，SideB 是先入列、等待較久的一方。
type Pairing struct {
	TeamSize int
	SideA    []Entry
	SideB    []Entry
}

// Players 所有參與者（SideA 在前）
func (p Pairing) Players() []Entry {
	out := make([]Entry, 0, len(p.SideA)+len(p.SideB))
	out = append(out, p.SideA...)
	return append(out, p.SideB...)
}

// Options 配對參數
type Options struct {
	TeamSize int // 1 = 1v1，2 = 2v2

	// Threshold 優先配對的最大積分差
	Threshold int

	// MaxWait 最佳候選超過門檻時，最久等待者需等多久才強制配對；0 = 立即
	MaxWait time.Duration
}

// Queue 單一模式的配對佇列
//
// 只由排程器 goroutine 操作，沒有加鎖。
type Queue struct {
	opts    Options
	entries []Entry // 依入列順序
}

// NewQueue 創建配對佇列
func NewQueue(opts Options) *Queue {
	if opts.TeamSize < 1 {
		opts.TeamSize = 1
	}
	return &Queue{opts: opts}
}

// TeamSize 每隊人數
func (q *Queue) TeamSize() int {
	return q.opts.TeamSize
}

// Enqueue 加入佇列；已在佇列中則不做任何事並回傳 false
func (q *Queue) Enqueue(e Entry) bool {
	if q.Contains(e.PlayerID) {
		return false
	}
	q.entries = append(q.entries, e)
	return true
}

// Cancel 移出佇列；不在佇列中回傳 false
func (q *Queue) Cancel(playerID string) bool {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains 玩家是否在佇列中
func (q *Queue) Contains(playerID string) bool {
	return q.Position(playerID) > 0
}

// Position 玩家在佇列中的位置（從 1 開始），不在佇列中回傳 0
func (q *Queue) Position(playerID string) int {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

// Len 佇列長度
func (q *Queue) Len() int {
	return len(q.entries)
}

// Entries 佇列快照
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// TryPair 嘗試以最新入列者為中心組成一場對戰
//
// 規則：
//   - 從其他條目中挑積分差最小的（同分差取等待最久的）
//   - 最佳候選超過門檻時，改和等待最久的條目配對，前提是對方已等滿 MaxWait
//
// 成功時參與者會一次全部移出佇列。
func (q *Queue) TryPair(now time.Time) (Pairing, bool) {
	need := q.opts.TeamSize * 2
	if len(q.entries) < need {
		return Pairing{}, false
	}

	newestIdx := len(q.entries) - 1
	newest := q.entries[newestIdx]

	// 其他條目依（積分差，入列順序）排序
	others := make([]int, 0, newestIdx)
	for i := 0; i < newestIdx; i++ {
		others = append(others, i)
	}
	delta := func(i int) int {
		return int(math.Abs(float64(q.entries[i].Rating - newest.Rating)))
	}
	sort.SliceStable(others, func(a, b int) bool {
		return delta(others[a]) < delta(others[b])
	})

	picked := others[:need-1]
	if delta(picked[len(picked)-1]) > q.opts.Threshold {
		oldest := q.entries[0]
		if q.opts.MaxWait > 0 && now.Sub(oldest.EnqueuedAt) < q.opts.MaxWait {
			return Pairing{}, false
		}
		// 等待最久的條目優先
		picked = make([]int, 0, need-1)
		for i := 0; i < need-1; i++ {
			picked = append(picked, i)
		}
	}

	group := make([]Entry, 0, need)
	group = append(group, newest)
	for _, i := range picked {
		group = append(group, q.entries[i])
	}

	q.remove(append(picked, newestIdx))

	sideA, sideB := split(group, q.opts.TeamSize)
	return Pairing{TeamSize: q.opts.TeamSize, SideA: sideA, SideB: sideB}, true
}

// split 分隊；group[0] 是最新入列者，所在隊伍為 SideA
//
// 2v2 依積分排序後，最高 + 最低一隊、中間兩人一隊，讓兩隊平均積分接近。
func split(group []Entry, teamSize int) (sideA, sideB []Entry) {
	if teamSize == 1 {
		return []Entry{group[0]}, []Entry{group[1]}
	}

	sorted := make([]Entry, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})

	n := len(sorted)
	var x, y []Entry
	for i := 0; i < n/2; i++ {
		if i%2 == 0 {
			x = append(x, sorted[i], sorted[n-1-i])
		} else {
			y = append(y, sorted[i], sorted[n-1-i])
		}
	}

	for _, e := range x {
		if e.PlayerID == group[0].PlayerID {
			return x, y
		}
	}
	return y, x
}

func (q *Queue) remove(indices []int) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := q.entries[:0]
	for i, e := range q.entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	q.entries = kept
}
