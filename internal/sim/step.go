package sim

import (
	"math"
	"time"
)

// ClampStep 把實際經過時間限制在 [lo, hi]，吸收排程抖動
func ClampStep(dt, lo, hi time.Duration) time.Duration {
	if dt < lo {
		return lo
	}
	if dt > hi {
		return hi
	}
	return dt
}

// Scale 經過時間相對於基準步長的倍數（速度單位是「像素 / 基準步長」）
func Scale(dt, reference time.Duration) float64 {
	if reference <= 0 {
		return 1
	}
	return float64(dt) / float64(reference)
}

// DecayEffects 所有計時效果扣除 dt，歸零的移除
func DecayEffects(c *Combatant, dt time.Duration) {
	if c.Shield > 0 {
		c.Shield -= dt
		if c.Shield < 0 {
			c.Shield = 0
		}
	}
	for e, left := range c.Effects {
		left -= dt
		if left <= 0 {
			delete(c.Effects, e)
			continue
		}
		c.Effects[e] = left
	}
}

// RegenEnergy 依經過時間回復能量（perSecond 為每秒回復量）
func RegenEnergy(c *Combatant, perSecond float64, dt time.Duration) {
	if c.Down {
		return
	}
	c.AddEnergy(perSecond * dt.Seconds())
}

// Advance 沿角度前進 distance
func Advance(x, y, angle, distance float64) (float64, float64) {
	return x + math.Cos(angle)*distance, y + math.Sin(angle)*distance
}

// AngleTo 從 (x, y) 指向 (tx, ty) 的角度
func AngleTo(x, y, tx, ty float64) float64 {
	return math.Atan2(ty-y, tx-x)
}
