// Package combat 是伺服器權威的戰鬥結算：射擊、命中、道具
package combat

import (
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/config"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// Params 戰鬥數值
type Params struct {
	ShotCost          float64
	RapidFireFactor   float64
	ProjectileSpeed   float64
	ProjectileDamage  float64
	DamageBoostFactor float64
	ShieldFactor      float64
	HitRadius         float64
	PickupRadius      float64

	HealthRestore float64
	EnergyRestore float64
	ShieldTime    time.Duration
	EffectTime    time.Duration
}

// FromConfig 從配置轉換
func FromConfig(c config.CombatConfig) Params {
	return Params{
		ShotCost:          c.ShotCost,
		RapidFireFactor:   c.RapidFireFactor,
		ProjectileSpeed:   c.ProjectileSpeed,
		ProjectileDamage:  c.ProjectileDamage,
		DamageBoostFactor: c.DamageBoostFactor,
		ShieldFactor:      c.ShieldFactor,
		HitRadius:         c.HitRadius,
		PickupRadius:      c.PickupRadius,
		HealthRestore:     c.HealthRestore,
		EnergyRestore:     c.EnergyRestore,
		ShieldTime:        c.ShieldTime,
		EffectTime:        c.EffectTime,
	}
}

// ShotCostFor 射擊的能量成本（快速射擊效果打折）
func (p Params) ShotCostFor(c *sim.Combatant) float64 {
	if c.HasEffect(sim.EffectRapid) {
		return p.ShotCost * p.RapidFireFactor
	}
	return p.ShotCost
}

// Shoot 從 (x, y) 朝 angle 發射子彈
//
// 倒地或能量不足時拒絕，不修改任何狀態。傷害加成在發射時計入子彈。
func Shoot(p Params, shooter *sim.Combatant, id string, x, y, angle float64, now time.Time) (*sim.Projectile, error) {
	if shooter.Down {
		return nil, apperrors.ErrPlayerDown
	}
	if !shooter.SpendEnergy(p.ShotCostFor(shooter)) {
		return nil, apperrors.ErrInsufficientEnergy
	}

	damage := p.ProjectileDamage
	if shooter.HasEffect(sim.EffectDamage) {
		damage *= p.DamageBoostFactor
	}
	shooter.Stats.ShotsFired++

	return &sim.Projectile{
		ID:        id,
		OwnerID:   shooter.ID,
		Side:      shooter.Side,
		X:         x,
		Y:         y,
		Angle:     angle,
		Speed:     p.ProjectileSpeed,
		Damage:    damage,
		CreatedAt: now,
	}, nil
}

// ApplyHit 對目標造成傷害，護盾生效時減半；回傳實際扣除的血量
func ApplyHit(p Params, target *sim.Combatant, damage float64) float64 {
	if target.Shielded() {
		damage *= p.ShieldFactor
	}
	return target.TakeDamage(damage)
}

// Within 兩點距離是否在 radius 內
func Within(ax, ay, bx, by, radius float64) bool {
	dx, dy := ax-bx, ay-by
	return dx*dx+dy*dy <= radius*radius
}

// Hit 一次命中
type Hit struct {
	ProjectileID string
	ShooterID    string
	TargetID     string
	Damage       float64
	Knockout     bool
}

// ObstacleHit 子彈擊毀障礙物
type ObstacleHit struct {
	ProjectileID string
	ShooterID    string
	ObstacleID   string
}

// Resolution 一個 tick 的碰撞結果
type Resolution struct {
	Hits      []Hit
	Obstacles []ObstacleHit
}

// ResolveProjectiles 子彈對玩家、子彈對障礙物的碰撞
//
// 每顆子彈最多命中一次：先檢查敵對陣營的存活玩家，再檢查障礙物。
// 命中的子彈標記 Spent，擊中的障礙物標記 Destroyed，下一次移動時移除。
func ResolveProjectiles(p Params, projectiles []*sim.Projectile, combatants []*sim.Combatant, obstacles []*sim.Obstacle) Resolution {
	var res Resolution

	byID := make(map[string]*sim.Combatant, len(combatants))
	for _, c := range combatants {
		byID[c.ID] = c
	}

	for _, proj := range projectiles {
		if proj.Spent {
			continue
		}

		if hit, ok := hitCombatant(p, proj, combatants, byID); ok {
			res.Hits = append(res.Hits, hit)
			continue
		}

		for _, o := range obstacles {
			if o.Destroyed {
				continue
			}
			if Within(proj.X, proj.Y, o.X, o.Y, o.Size/2) {
				o.Destroyed = true
				proj.Spent = true
				res.Obstacles = append(res.Obstacles, ObstacleHit{
					ProjectileID: proj.ID,
					ShooterID:    proj.OwnerID,
					ObstacleID:   o.ID,
				})
				break
			}
		}
	}

	return res
}

func hitCombatant(p Params, proj *sim.Projectile, combatants []*sim.Combatant, byID map[string]*sim.Combatant) (Hit, bool) {
	for _, target := range combatants {
		if target.Down || target.Side == proj.Side || target.ID == proj.OwnerID {
			continue
		}
		if !Within(proj.X, proj.Y, target.X, target.Y, p.HitRadius) {
			continue
		}

		applied := ApplyHit(p, target, proj.Damage)
		proj.Spent = true

		if shooter, ok := byID[proj.OwnerID]; ok {
			shooter.Stats.ShotsHit++
			shooter.Stats.DamageDealt += applied
		}

		return Hit{
			ProjectileID: proj.ID,
			ShooterID:    proj.OwnerID,
			TargetID:     target.ID,
			Damage:       applied,
			Knockout:     target.Down,
		}, true
	}
	return Hit{}, false
}

// ApplyPowerUp 套用道具效果
func ApplyPowerUp(p Params, c *sim.Combatant, kind sim.PowerUpKind) {
	switch kind {
	case sim.PowerUpHealth:
		c.Heal(p.HealthRestore)
	case sim.PowerUpEnergy:
		c.AddEnergy(p.EnergyRestore)
	case sim.PowerUpShield:
		c.Shield = p.ShieldTime
	case sim.PowerUpDamage:
		c.Effects[sim.EffectDamage] = p.EffectTime
	case sim.PowerUpSpeed:
		c.Effects[sim.EffectSpeed] = p.EffectTime
	case sim.PowerUpRapid:
		c.Effects[sim.EffectRapid] = p.EffectTime
	}
}

// Pickup 一次道具拾取
type Pickup struct {
	PlayerID  string
	PowerUpID string
	Kind      sim.PowerUpKind
}

// CollectPowerUps 伺服器端的接觸判定：每個道具由第一個碰到的存活玩家拾取
func CollectPowerUps(p Params, combatants []*sim.Combatant, powerUps []*sim.PowerUp) ([]*sim.PowerUp, []Pickup) {
	var pickups []Pickup
	kept := powerUps[:0]

	for _, pu := range powerUps {
		taken := false
		for _, c := range combatants {
			if c.Down || !Within(c.X, c.Y, pu.X, pu.Y, p.PickupRadius) {
				continue
			}
			ApplyPowerUp(p, c, pu.Kind)
			pickups = append(pickups, Pickup{PlayerID: c.ID, PowerUpID: pu.ID, Kind: pu.Kind})
			taken = true
			break
		}
		if !taken {
			kept = append(kept, pu)
		}
	}
	clear(powerUps[len(kept):])

	return kept, pickups
}

// Collect 客戶端主動拾取：道具必須存在且在容許距離內
//
// tolerance 是拾取半徑的倍數，吸收客戶端與伺服器之間的位置延遲。
func Collect(p Params, c *sim.Combatant, powerUps []*sim.PowerUp, id string, tolerance float64) ([]*sim.PowerUp, *Pickup) {
	if c.Down {
		return powerUps, nil
	}
	for _, pu := range powerUps {
		if pu.ID != id {
			continue
		}
		if !Within(c.X, c.Y, pu.X, pu.Y, p.PickupRadius*tolerance) {
			return powerUps, nil
		}
		ApplyPowerUp(p, c, pu.Kind)
		return sim.RemovePowerUp(powerUps, id), &Pickup{PlayerID: c.ID, PowerUpID: pu.ID, Kind: pu.Kind}
	}
	return powerUps, nil
}
