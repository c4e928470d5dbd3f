package combat_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-realtime-match/internal/combat"
	"github.com/koopa0/system-design/14-realtime-match/internal/config"
	"github.com/koopa0/system-design/14-realtime-match/internal/sim"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func params() combat.Params {
	return combat.FromConfig(config.Default().Combat)
}

func player(id string, side sim.Side, x, y float64) *sim.Combatant {
	c := sim.NewCombatant(id, side, 100, 100)
	c.X, c.Y = x, y
	return c
}

func TestShoot(t *testing.T) {
	p := params()
	shooter := player("p1", sim.SideA, 100, 100)

	proj, err := combat.Shoot(p, shooter, "b-1", shooter.X, shooter.Y, 0, t0)
	require.NoError(t, err)

	assert.Equal(t, 85.0, shooter.Energy)
	assert.Equal(t, "p1", proj.OwnerID)
	assert.Equal(t, sim.SideA, proj.Side)
	assert.Equal(t, 20.0, proj.Damage)
	assert.Equal(t, 1, shooter.Stats.ShotsFired)
}

func TestShoot_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(c *sim.Combatant)
		wantErr error
	}{
		{
			name:    "insufficient energy",
			setup:   func(c *sim.Combatant) { c.Energy = 14 },
			wantErr: apperrors.ErrInsufficientEnergy,
		},
		{
			name:    "player down",
			setup:   func(c *sim.Combatant) { c.TakeDamage(100) },
			wantErr: apperrors.ErrPlayerDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := player("p1", sim.SideA, 0, 0)
			tt.setup(c)
			energy := c.Energy

			proj, err := combat.Shoot(params(), c, "b-1", 0, 0, 0, t0)

			assert.Nil(t, proj)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, energy, c.Energy, "no state mutation on rejection")
			assert.Equal(t, 0, c.Stats.ShotsFired)
		})
	}
}

func TestShoot_Effects(t *testing.T) {
	p := params()
	c := player("p1", sim.SideA, 0, 0)
	c.Effects[sim.EffectRapid] = time.Second
	c.Effects[sim.EffectDamage] = time.Second

	proj, err := combat.Shoot(p, c, "b-1", 0, 0, 0, t0)
	require.NoError(t, err)

	assert.Equal(t, 92.5, c.Energy)
	assert.Equal(t, 30.0, proj.Damage)
}

func TestApplyHit_Shield(t *testing.T) {
	p := params()
	target := player("p2", sim.SideB, 0, 0)
	target.Shield = time.Second

	applied := combat.ApplyHit(p, target, 20)

	assert.Equal(t, 10.0, applied)
	assert.Equal(t, 90.0, target.Health)
}

func TestApplyHit_FloorsAtZero(t *testing.T) {
	target := player("p2", sim.SideB, 0, 0)
	target.Health = 5

	applied := combat.ApplyHit(params(), target, 20)

	assert.Equal(t, 5.0, applied)
	assert.Equal(t, 0.0, target.Health)
	assert.True(t, target.Down)
}

func TestResolveProjectiles(t *testing.T) {
	p := params()
	shooter := player("p1", sim.SideA, 100, 100)
	target := player("p2", sim.SideB, 300, 100)
	teammate := player("p3", sim.SideA, 500, 500)

	projectiles := []*sim.Projectile{
		{ID: "hit", OwnerID: "p1", Side: sim.SideA, X: 290, Y: 110, Damage: 20},
		{ID: "friendly", OwnerID: "p1", Side: sim.SideA, X: 500, Y: 500, Damage: 20},
		{ID: "obstacle", OwnerID: "p1", Side: sim.SideA, X: 700, Y: 300, Damage: 20},
		{ID: "miss", OwnerID: "p1", Side: sim.SideA, X: 1000, Y: 600, Damage: 20},
	}
	obstacles := []*sim.Obstacle{{ID: "o-1", X: 705, Y: 300, Size: 30}}

	res := combat.ResolveProjectiles(p, projectiles, []*sim.Combatant{shooter, target, teammate}, obstacles)

	require.Len(t, res.Hits, 1)
	assert.Equal(t, combat.Hit{ProjectileID: "hit", ShooterID: "p1", TargetID: "p2", Damage: 20}, res.Hits[0])
	assert.Equal(t, 80.0, target.Health)
	assert.Equal(t, 100.0, teammate.Health, "no friendly fire")

	assert.Equal(t, 1, shooter.Stats.ShotsHit)
	assert.Equal(t, 20.0, shooter.Stats.DamageDealt)

	require.Len(t, res.Obstacles, 1)
	assert.Equal(t, "o-1", res.Obstacles[0].ObstacleID)
	assert.True(t, obstacles[0].Destroyed)

	assert.True(t, projectiles[0].Spent)
	assert.False(t, projectiles[1].Spent)
	assert.True(t, projectiles[2].Spent)
	assert.False(t, projectiles[3].Spent)
}

func TestResolveProjectiles_OneHitPerProjectile(t *testing.T) {
	p := params()
	a := player("a", sim.SideB, 100, 100)
	b := player("b", sim.SideB, 105, 100)
	proj := &sim.Projectile{ID: "x", OwnerID: "s", Side: sim.SideA, X: 102, Y: 100, Damage: 20}

	res := combat.ResolveProjectiles(p, []*sim.Projectile{proj}, []*sim.Combatant{a, b}, nil)
	require.Len(t, res.Hits, 1)

	res = combat.ResolveProjectiles(p, []*sim.Projectile{proj}, []*sim.Combatant{a, b}, nil)
	assert.Empty(t, res.Hits, "spent projectile cannot hit again")
	assert.Equal(t, 180.0, a.Health+b.Health)
}

func TestResolveProjectiles_Knockout(t *testing.T) {
	target := player("p2", sim.SideB, 0, 0)
	target.Health = 10
	proj := &sim.Projectile{ID: "x", OwnerID: "p1", Side: sim.SideA, Damage: 20}

	res := combat.ResolveProjectiles(params(), []*sim.Projectile{proj}, []*sim.Combatant{target}, nil)

	require.Len(t, res.Hits, 1)
	assert.True(t, res.Hits[0].Knockout)
	assert.Equal(t, 10.0, res.Hits[0].Damage)
}

func TestApplyPowerUp(t *testing.T) {
	p := params()

	tests := []struct {
		kind     sim.PowerUpKind
		validate func(t *testing.T, c *sim.Combatant)
	}{
		{kind: sim.PowerUpHealth, validate: func(t *testing.T, c *sim.Combatant) {
			assert.Equal(t, 80.0, c.Health)
		}},
		{kind: sim.PowerUpEnergy, validate: func(t *testing.T, c *sim.Combatant) {
			assert.Equal(t, 50.0, c.Energy)
		}},
		{kind: sim.PowerUpShield, validate: func(t *testing.T, c *sim.Combatant) {
			assert.Equal(t, 5*time.Second, c.Shield)
		}},
		{kind: sim.PowerUpDamage, validate: func(t *testing.T, c *sim.Combatant) {
			assert.True(t, c.HasEffect(sim.EffectDamage))
		}},
		{kind: sim.PowerUpSpeed, validate: func(t *testing.T, c *sim.Combatant) {
			assert.Equal(t, 8*time.Second, c.Effects[sim.EffectSpeed])
		}},
		{kind: sim.PowerUpRapid, validate: func(t *testing.T, c *sim.Combatant) {
			assert.True(t, c.HasEffect(sim.EffectRapid))
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := player("p1", sim.SideA, 0, 0)
			c.Health = 50
			c.Energy = 10

			combat.ApplyPowerUp(p, c, tt.kind)
			tt.validate(t, c)

			assert.LessOrEqual(t, c.Health, c.MaxHealth)
			assert.LessOrEqual(t, c.Energy, c.MaxEnergy)
		})
	}
}

func TestCollectPowerUps(t *testing.T) {
	p := params()
	near := player("near", sim.SideA, 100, 100)
	near.Health = 50
	far := player("far", sim.SideB, 900, 600)

	pus := []*sim.PowerUp{
		{ID: "pu-1", Kind: sim.PowerUpHealth, X: 110, Y: 110},
		{ID: "pu-2", Kind: sim.PowerUpShield, X: 400, Y: 400},
	}

	kept, pickups := combat.CollectPowerUps(p, []*sim.Combatant{near, far}, pus)

	require.Len(t, pickups, 1)
	assert.Equal(t, combat.Pickup{PlayerID: "near", PowerUpID: "pu-1", Kind: sim.PowerUpHealth}, pickups[0])
	assert.Equal(t, 80.0, near.Health)
	require.Len(t, kept, 1)
	assert.Equal(t, "pu-2", kept[0].ID)
}

func TestCollect(t *testing.T) {
	p := params()

	tests := []struct {
		name       string
		x, y       float64
		id         string
		wantPickup bool
	}{
		{name: "within tolerance", x: 140, y: 100, id: "pu-1", wantPickup: true},
		{name: "too far", x: 200, y: 100, id: "pu-1", wantPickup: false},
		{name: "unknown id", x: 100, y: 100, id: "pu-9", wantPickup: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := player("p1", sim.SideA, tt.x, tt.y)
			pus := []*sim.PowerUp{{ID: "pu-1", Kind: sim.PowerUpShield, X: 100, Y: 100}}

			kept, pickup := combat.Collect(p, c, pus, tt.id, 1.5)

			if tt.wantPickup {
				require.NotNil(t, pickup)
				assert.Empty(t, kept)
				assert.True(t, c.Shielded())
			} else {
				assert.Nil(t, pickup)
				assert.Len(t, kept, 1)
				assert.False(t, c.Shielded())
			}
		})
	}
}
