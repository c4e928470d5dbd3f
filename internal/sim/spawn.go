package sim

import (
	"math/rand/v2"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/config"
)

// Obstacle 障礙物：從頂端落下，可被子彈擊毀
type Obstacle struct {
	ID        string
	Type      string
	X, Y      float64
	VX, VY    float64 // 像素 / 基準步長
	Size      float64
	Destroyed bool
}

var obstacleTypes = []string{"asteroid", "crate", "debris"}

// SpawnObstacle 每 tick 一次的伯努利試驗；數量已達上限時直接略過
//
// 生成位置在頂端邊界的隨機 x，速度向下並帶一點橫向分量。
func SpawnObstacle(rng *rand.Rand, obstacles []*Obstacle, cfg config.ObstacleConfig, b Bounds, id string) ([]*Obstacle, *Obstacle) {
	if len(obstacles) >= cfg.MaxCount {
		return obstacles, nil
	}
	if rng.Float64() >= cfg.SpawnChance {
		return obstacles, nil
	}

	size := between(rng, cfg.MinSize, cfg.MaxSize)
	o := &Obstacle{
		ID:   id,
		Type: obstacleTypes[rng.IntN(len(obstacleTypes))],
		X:    between(rng, b.MinX+size, b.MaxX-size),
		Y:    b.MinY - size/2,
		VX:   between(rng, -cfg.MaxLateral, cfg.MaxLateral),
		VY:   between(rng, cfg.MinSpeed, cfg.MaxSpeed),
		Size: size,
	}
	return append(obstacles, o), o
}

// StepObstacles 移動障礙物並移除已擊毀、落出底部或飛出兩側的
func StepObstacles(obstacles []*Obstacle, b Bounds, scale float64) []*Obstacle {
	kept := obstacles[:0]
	for _, o := range obstacles {
		if o.Destroyed {
			continue
		}
		o.X += o.VX * scale
		o.Y += o.VY * scale
		if o.Y-o.Size > b.MaxY || o.X+o.Size < b.MinX || o.X-o.Size > b.MaxX {
			continue
		}
		kept = append(kept, o)
	}
	clear(obstacles[len(kept):])
	return kept
}

// FindObstacle 依 id 查找未擊毀的障礙物
func FindObstacle(obstacles []*Obstacle, id string) *Obstacle {
	for _, o := range obstacles {
		if o.ID == id && !o.Destroyed {
			return o
		}
	}
	return nil
}

// PowerUpKind 道具種類
type PowerUpKind string

const (
	PowerUpHealth PowerUpKind = "health"
	PowerUpEnergy PowerUpKind = "energy"
	PowerUpShield PowerUpKind = "shield"
	PowerUpDamage PowerUpKind = "damage"
	PowerUpSpeed  PowerUpKind = "speed"
	PowerUpRapid  PowerUpKind = "rapid"
)

// PowerUpKinds 固定順序（加權抽選需要確定的走訪順序）
var PowerUpKinds = []PowerUpKind{
	PowerUpHealth,
	PowerUpEnergy,
	PowerUpShield,
	PowerUpDamage,
	PowerUpSpeed,
	PowerUpRapid,
}

// PowerUp 道具
type PowerUp struct {
	ID        string
	Kind      PowerUpKind
	X, Y      float64
	Size      float64
	ExpiresAt time.Time
}

// PickPowerUpKind 依權重抽選道具種類；權重全為 0 時回傳空字串
func PickPowerUpKind(rng *rand.Rand, weights map[string]int) PowerUpKind {
	total := 0
	for _, k := range PowerUpKinds {
		if w := weights[string(k)]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		return ""
	}

	n := rng.IntN(total)
	for _, k := range PowerUpKinds {
		w := weights[string(k)]
		if w <= 0 {
			continue
		}
		if n < w {
			return k
		}
		n -= w
	}
	return ""
}

// SpawnPowerUp 依機率生成道具；已達上限時略過
func SpawnPowerUp(rng *rand.Rand, powerUps []*PowerUp, cfg config.PowerUpConfig, b Bounds, id string, now time.Time) ([]*PowerUp, *PowerUp) {
	if len(powerUps) >= cfg.MaxCount {
		return powerUps, nil
	}
	if rng.Float64() >= cfg.SpawnChance {
		return powerUps, nil
	}

	kind := PickPowerUpKind(rng, cfg.Weights)
	if kind == "" {
		return powerUps, nil
	}

	margin := cfg.Size * 2
	p := &PowerUp{
		ID:        id,
		Kind:      kind,
		X:         between(rng, b.MinX+margin, b.MaxX-margin),
		Y:         between(rng, b.MinY+margin, b.MaxY-margin),
		Size:      cfg.Size,
		ExpiresAt: now.Add(cfg.TTL),
	}
	return append(powerUps, p), p
}

// ExpirePowerUps 移除已過期未被拾取的道具
func ExpirePowerUps(powerUps []*PowerUp, now time.Time) []*PowerUp {
	kept := powerUps[:0]
	for _, p := range powerUps {
		if now.Before(p.ExpiresAt) {
			kept = append(kept, p)
		}
	}
	clear(powerUps[len(kept):])
	return kept
}

// RemovePowerUp 移除指定道具
func RemovePowerUp(powerUps []*PowerUp, id string) []*PowerUp {
	for i, p := range powerUps {
		if p.ID == id {
			return append(powerUps[:i], powerUps[i+1:]...)
		}
	}
	return powerUps
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
