// Package rating 維護玩家的 ELO 積分與勝負紀錄
//
// Store 是唯一跨場次共享的狀態。寫入只來自排程器 goroutine（對戰結束時），
// 讀取則可能來自 HTTP handler，因此以 RWMutex 保護。
package rating

import (
	"math"
	"sort"
	"sync"
)

// Params 積分參數
type Params struct {
	Initial int // 新玩家的初始積分
	K       int // K 值
	Floor   int // 積分下限
}

// DefaultParams 預設參數
func DefaultParams() Params {
	return Params{Initial: 1000, K: 32, Floor: 100}
}

// Profile 玩家積分檔案
type Profile struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Player 參與結算的玩家
type Player struct {
	ID       string
	Nickname string
}

// Result 一場對戰的結算輸入
type Result struct {
	Winners []Player
	Losers  []Player

	// Penalized 額外扣分的玩家（斷線 / 中途離開），必須在 Losers 之中
	Penalized []string
	Penalty   int
}

// Change 單一玩家的積分變化
type Change struct {
	PlayerID string `json:"player_id"`
	Old      int    `json:"old"`
	New      int    `json:"new"`
}

// Delta 變化量
func (c Change) Delta() int {
	return c.New - c.Old
}

// Store 記憶體中的積分表
type Store struct {
	params   Params
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewStore 創建積分表
func NewStore(params Params) *Store {
	if params.K <= 0 {
		params.K = DefaultParams().K
	}
	if params.Initial <= 0 {
		params.Initial = DefaultParams().Initial
	}
	return &Store{
		params:   params,
		profiles: make(map[string]*Profile),
	}
}

// Expected 積分 a 對上積分 b 的期望勝率
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Get 取得玩家檔案（副本）
func (s *Store) Get(playerID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[playerID]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// Rating 取得玩家積分，沒有紀錄時回傳初始積分
func (s *Store) Rating(playerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[playerID]; ok {
		return p.Rating
	}
	return s.params.Initial
}

// Seed 載入既有檔案（例如啟動時從 Redis 讀回），覆蓋同名紀錄
func (s *Store) Seed(profiles []Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range profiles {
		if p.PlayerID == "" {
			continue
		}
		cp := p
		s.profiles[p.PlayerID] = &cp
	}
}

// UpdateRatings 1v1 結算
func (s *Store) UpdateRatings(winner, loser Player) []Change {
	return s.ApplyResult(Result{
		Winners: []Player{winner},
		Losers:  []Player{loser},
	})
}

// ApplyResult 結算一場對戰
//
// 團隊戰以雙方平均積分計算期望勝率，同隊成員得失相同的分數。
// 平手不應呼叫此方法。
func (s *Store) ApplyResult(result Result) []Change {
	if len(result.Winners) == 0 || len(result.Losers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	winners := s.ensure(result.Winners)
	losers := s.ensure(result.Losers)

	e := Expected(average(winners), average(losers))
	delta := int(math.Round(float64(s.params.K) * (1 - e)))

	penalized := make(map[string]bool, len(result.Penalized))
	for _, id := range result.Penalized {
		penalized[id] = true
	}

	changes := make([]Change, 0, len(winners)+len(losers))
	for _, p := range winners {
		old := p.Rating
		p.Rating = s.floor(old + delta)
		p.Wins++
		changes = append(changes, Change{PlayerID: p.PlayerID, Old: old, New: p.Rating})
	}
	for _, p := range losers {
		old := p.Rating
		loss := delta
		if penalized[p.PlayerID] {
			loss += result.Penalty
		}
		p.Rating = s.floor(old - loss)
		p.Losses++
		changes = append(changes, Change{PlayerID: p.PlayerID, Old: old, New: p.Rating})
	}

	return changes
}

// Top 依積分排序的前 n 名
func (s *Store) Top(n int) []Profile {
	s.mu.RLock()
	list := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		list = append(list, *p)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Rating != list[j].Rating {
			return list[i].Rating > list[j].Rating
		}
		if list[i].Wins != list[j].Wins {
			return list[i].Wins > list[j].Wins
		}
		return list[i].PlayerID < list[j].PlayerID
	})

	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// Len 檔案數量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// ensure 取得或建立檔案，順便更新暱稱（呼叫者需持有寫鎖）
func (s *Store) ensure(players []Player) []*Profile {
	out := make([]*Profile, 0, len(players))
	for _, pl := range players {
		p, ok := s.profiles[pl.ID]
		if !ok {
			p = &Profile{PlayerID: pl.ID, Rating: s.params.Initial}
			s.profiles[pl.ID] = p
		}
		if pl.Nickname != "" {
			p.Nickname = pl.Nickname
		}
		out = append(out, p)
	}
	return out
}

func (s *Store) floor(r int) int {
	if r < s.params.Floor {
		return s.params.Floor
	}
	return r
}

func average(profiles []*Profile) int {
	sum := 0
	for _, p := range profiles {
		sum += p.Rating
	}
	return int(math.Round(float64(sum) / float64(len(profiles))))
}
