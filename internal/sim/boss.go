package sim

import (
	"math"
	"time"
)

// BossParams Boss 的移動參數
type BossParams struct {
	Bounds         Bounds // 中心點可移動的範圍
	StartX, StartY float64
	SpeedX, SpeedY float64 // 像素 / 基準步長
	Spin           float64 // 弧度 / 基準步長
	MaxHealth      float64
	AttackInterval time.Duration
}

// Boss 合作模式的 Boss
type Boss struct {
	X, Y, Angle float64
	Health      float64
	MaxHealth   float64

	// DirX / DirY 只會是 +1 或 -1
	DirX, DirY float64

	AttackCooldown time.Duration
}

// NewBoss 在起始位置創建滿血 Boss
func NewBoss(p BossParams) *Boss {
	b := &Boss{}
	b.Reset(p)
	return b
}

// Reset 回到起始位置並恢復滿血
func (b *Boss) Reset(p BossParams) {
	b.ResetPosition(p)
	b.MaxHealth = p.MaxHealth
	b.Health = p.MaxHealth
}

// ResetPosition 回到起始位置，不改變血量
func (b *Boss) ResetPosition(p BossParams) {
	b.X, b.Y = p.StartX, p.StartY
	b.Angle = 0
	b.DirX, b.DirY = 1, 1
	b.AttackCooldown = p.AttackInterval
}

// Defeated 血量是否歸零
func (b *Boss) Defeated() bool {
	return b.Health <= 0
}

// TakeDamage 扣血並回傳實際扣除量（血量只減不增）
func (b *Boss) TakeDamage(amount float64) float64 {
	if amount <= 0 || b.Health <= 0 {
		return 0
	}
	applied := math.Min(amount, b.Health)
	b.Health -= applied
	return applied
}

// StepBoss 推進 Boss 一步
//
// 兩軸獨立反彈：碰到邊界就把該軸速度反向，同時以固定角速度自轉。
// scale 是這一步相對於基準步長的倍數。
func StepBoss(b *Boss, p BossParams, scale float64) {
	b.X += p.SpeedX * b.DirX * scale
	b.Y += p.SpeedY * b.DirY * scale

	if b.X <= p.Bounds.MinX {
		b.X, b.DirX = p.Bounds.MinX, 1
	} else if b.X >= p.Bounds.MaxX {
		b.X, b.DirX = p.Bounds.MaxX, -1
	}
	if b.Y <= p.Bounds.MinY {
		b.Y, b.DirY = p.Bounds.MinY, 1
	} else if b.Y >= p.Bounds.MaxY {
		b.Y, b.DirY = p.Bounds.MaxY, -1
	}

	b.Angle = math.Mod(b.Angle+p.Spin*scale, 2*math.Pi)
}

// TickAttack 扣除攻擊冷卻，冷卻結束時回傳 true 並重置冷卻
func (b *Boss) TickAttack(dt, interval time.Duration) bool {
	b.AttackCooldown -= dt
	if b.AttackCooldown > 0 {
		return false
	}
	b.AttackCooldown += interval
	if b.AttackCooldown <= 0 {
		b.AttackCooldown = interval
	}
	return true
}
