package sim

import "time"

// Projectile 子彈
type Projectile struct {
	ID        string
	OwnerID   string
	Side      Side
	X, Y      float64
	Angle     float64
	Speed     float64 // 像素 / 基準步長
	Damage    float64
	CreatedAt time.Time

	// Spent 已命中，下一次 StepProjectiles 時移除
	Spent bool
}

// StepProjectiles 移動子彈，移除已命中、出界或超過壽命的
func StepProjectiles(projectiles []*Projectile, b Bounds, scale float64, now time.Time, maxLife time.Duration) []*Projectile {
	kept := projectiles[:0]
	for _, p := range projectiles {
		if p.Spent || now.Sub(p.CreatedAt) >= maxLife {
			continue
		}
		p.X, p.Y = Advance(p.X, p.Y, p.Angle, p.Speed*scale)
		if !b.Contains(p.X, p.Y) {
			continue
		}
		kept = append(kept, p)
	}
	clear(projectiles[len(kept):])
	return kept
}

// FindProjectile 依 id 查找未命中的子彈
func FindProjectile(projectiles []*Projectile, id string) *Projectile {
	for _, p := range projectiles {
		if p.ID == id && !p.Spent {
			return p
		}
	}
	return nil
}
