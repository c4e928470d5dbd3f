// Package sim 是兩種模式共用的實體模擬
//
// 所有函式都是「給定輸入即確定」的：時間由呼叫者傳入，隨機數來自呼叫者的
// *rand.Rand，沒有任何共享狀態。呼叫者（session）負責保證單一 goroutine。
package sim

import (
	"math"
	"time"
)

// Bounds 矩形範圍
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Arena 以寬高建立從原點開始的範圍
func Arena(width, height float64) Bounds {
	return Bounds{MaxX: width, MaxY: height}
}

// Clamp 將座標限制在範圍內
func (b Bounds) Clamp(x, y float64) (float64, float64) {
	return clamp(x, b.MinX, b.MaxX), clamp(y, b.MinY, b.MaxY)
}

// Contains 座標是否在範圍內（含邊界）
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Side 陣營
type Side string

const (
	SideA       Side = "A"
	SideB       Side = "B"
	SidePlayers Side = "players" // 合作模式的玩家陣營
	SideBoss    Side = "boss"
)

// Opposite 對戰中的對手陣營
func (s Side) Opposite() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	case SidePlayers:
		return SideBoss
	case SideBoss:
		return SidePlayers
	}
	return ""
}

// Effect 計時效果
type Effect string

const (
	EffectDamage Effect = "damage"
	EffectSpeed  Effect = "speed"
	EffectRapid  Effect = "rapid"
)

// Stats 戰鬥統計
type Stats struct {
	ShotsFired  int
	ShotsHit    int
	DamageDealt float64
}

// Combatant 參戰者狀態（兩種模式共用）
//
// 不變式：0 ≤ Health ≤ MaxHealth、0 ≤ Energy ≤ MaxEnergy。
// 所有修改都應經過方法，不直接寫欄位。
type Combatant struct {
	ID       string
	Nickname string
	Skin     string
	Side     Side

	X, Y, Angle float64

	Health    float64
	MaxHealth float64
	Energy    float64
	MaxEnergy float64

	Shield  time.Duration
	Effects map[Effect]time.Duration

	Down  bool
	Stats Stats
}

// NewCombatant 創建滿血滿能量的參戰者
func NewCombatant(id string, side Side, maxHealth, maxEnergy float64) *Combatant {
	return &Combatant{
		ID:        id,
		Side:      side,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Energy:    maxEnergy,
		MaxEnergy: maxEnergy,
		Effects:   make(map[Effect]time.Duration),
	}
}

// Reset 回到滿血滿能量並清除效果（新回合 / 重新開始討伐）
func (c *Combatant) Reset(x, y, angle float64) {
	c.X, c.Y, c.Angle = x, y, angle
	c.Health = c.MaxHealth
	c.Energy = c.MaxEnergy
	c.Shield = 0
	clear(c.Effects)
	c.Down = false
}

// MoveTo 更新位置，限制在範圍內
func (c *Combatant) MoveTo(b Bounds, x, y, angle float64) {
	c.X, c.Y = b.Clamp(x, y)
	if !math.IsNaN(angle) && !math.IsInf(angle, 0) {
		c.Angle = angle
	}
}

// TakeDamage 扣血並回傳實際扣除量；血量歸零時標記倒地
func (c *Combatant) TakeDamage(amount float64) float64 {
	if amount <= 0 || c.Down {
		return 0
	}
	applied := math.Min(amount, c.Health)
	c.Health -= applied
	if c.Health <= 0 {
		c.Health = 0
		c.Down = true
	}
	return applied
}

// Heal 回血，不超過上限；倒地者不回血
func (c *Combatant) Heal(amount float64) {
	if c.Down || amount <= 0 {
		return
	}
	c.Health = math.Min(c.MaxHealth, c.Health+amount)
}

// AddEnergy 增加能量，不超過上限
func (c *Combatant) AddEnergy(amount float64) {
	c.Energy = clamp(c.Energy+amount, 0, c.MaxEnergy)
}

// SpendEnergy 扣除能量；不足時不扣並回傳 false
func (c *Combatant) SpendEnergy(cost float64) bool {
	if c.Energy < cost {
		return false
	}
	c.Energy = clamp(c.Energy-cost, 0, c.MaxEnergy)
	return true
}

// HasEffect 效果是否生效中
func (c *Combatant) HasEffect(e Effect) bool {
	return c.Effects[e] > 0
}

// Shielded 護盾是否生效中
func (c *Combatant) Shielded() bool {
	return c.Shield > 0
}

// Accuracy 命中率
func (s Stats) Accuracy() float64 {
	if s.ShotsFired == 0 {
		return 0
	}
	return float64(s.ShotsHit) / float64(s.ShotsFired)
}

// Distance 兩點距離
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
