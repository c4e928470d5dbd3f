// Package config 定義對戰伺服器的全部可調參數
//
// 所有欄位都有預設值（Default），YAML 檔案只需要覆寫想改的部分。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BossResetPolicy 重新開始討伐時 Boss 血量的處理方式
type BossResetPolicy string

const (
	// BossResetFull 每次討伐都恢復滿血
	BossResetFull BossResetPolicy = "reset"
	// BossResetPreserve 保留上一次討伐剩餘血量（已被擊敗則恢復滿血）
	BossResetPreserve BossResetPolicy = "preserve"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Tick TickConfig `yaml:"tick"`

	Coop CoopConfig `yaml:"coop"`

	Duel DuelConfig `yaml:"duel"`

	Combat CombatConfig `yaml:"combat"`

	Matchmaking MatchmakingConfig `yaml:"matchmaking"`

	Rating RatingConfig `yaml:"rating"`

	Publish struct {
		BufferSize int           `yaml:"buffer_size"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"publish"`

	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"postgres"`

	// Seed 隨機生成（障礙物、道具）的種子，0 表示以啟動時間為種子
	Seed uint64 `yaml:"seed"`
}

// TickConfig 排程器配置
type TickConfig struct {
	Rate int `yaml:"rate"` // 每秒 tick 數

	// 單次 tick 的模擬步長會被夾在 [MinStep, MaxStep]，吸收排程抖動
	MinStep time.Duration `yaml:"min_step"`
	MaxStep time.Duration `yaml:"max_step"`

	// ReferenceStep 速度參數對應的基準步長（速度單位：像素 / 基準步長）
	ReferenceStep time.Duration `yaml:"reference_step"`

	InboxSize int `yaml:"inbox_size"`
}

// Arena 矩形場地
type Arena struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// CoopConfig 合作討伐配置
type CoopConfig struct {
	Arena      Arena `yaml:"arena"`
	MaxPlayers int   `yaml:"max_players"`

	// EmptyGrace 房間清空後保留多久才銷毀
	EmptyGrace time.Duration `yaml:"empty_grace"`

	BossResetPolicy BossResetPolicy `yaml:"boss_reset_policy"`

	Boss struct {
		MaxHealth      float64       `yaml:"max_health"`
		StartX         float64       `yaml:"start_x"`
		StartY         float64       `yaml:"start_y"`
		MinX           float64       `yaml:"min_x"`
		MaxX           float64       `yaml:"max_x"`
		MinY           float64       `yaml:"min_y"`
		MaxY           float64       `yaml:"max_y"`
		SpeedX         float64       `yaml:"speed_x"`
		SpeedY         float64       `yaml:"speed_y"`
		Spin           float64       `yaml:"spin"`
		AttackInterval time.Duration `yaml:"attack_interval"`
		AttackDamage   float64       `yaml:"attack_damage"`
		AttackSpeed    float64       `yaml:"attack_speed"`
	} `yaml:"boss"`

	// BossDamageInterval 同一玩家兩次 bossDamage 的最小間隔
	BossDamageInterval time.Duration `yaml:"boss_damage_interval"`
	MaxBossHit         float64       `yaml:"max_boss_hit"`

	ObstacleBonus int `yaml:"obstacle_bonus"`

	Obstacles ObstacleConfig `yaml:"obstacles"`

	PlayerMaxHealth float64 `yaml:"player_max_health"`
	PlayerMaxEnergy float64 `yaml:"player_max_energy"`
}

// ObstacleConfig 障礙物生成配置
type ObstacleConfig struct {
	SpawnChance float64 `yaml:"spawn_chance"` // 每 tick 生成機率
	MaxCount    int     `yaml:"max_count"`
	MinSpeed    float64 `yaml:"min_speed"`
	MaxSpeed    float64 `yaml:"max_speed"`
	MaxLateral  float64 `yaml:"max_lateral"`
	MinSize     float64 `yaml:"min_size"`
	MaxSize     float64 `yaml:"max_size"`
}

// PowerUpConfig 道具生成配置
type PowerUpConfig struct {
	SpawnChance float64        `yaml:"spawn_chance"`
	MaxCount    int            `yaml:"max_count"`
	TTL         time.Duration  `yaml:"ttl"`
	Size        float64        `yaml:"size"`
	Weights     map[string]int `yaml:"weights"`
}

// DuelConfig 對戰配置
type DuelConfig struct {
	Arena  Arena `yaml:"arena"`
	BestOf int   `yaml:"best_of"`

	MaxHealth float64 `yaml:"max_health"`
	MaxEnergy float64 `yaml:"max_energy"`

	CountdownDelay    time.Duration `yaml:"countdown_delay"`
	RoundRestartDelay time.Duration `yaml:"round_restart_delay"`
	MaxRoundDuration  time.Duration `yaml:"max_round_duration"`
	EndCleanupDelay   time.Duration `yaml:"end_cleanup_delay"`

	// HitConfirmTolerance 客戶端回報命中時允許的距離倍數（相對於命中半徑）
	HitConfirmTolerance float64 `yaml:"hit_confirm_tolerance"`

	Obstacles ObstacleConfig `yaml:"obstacles"`
	PowerUps  PowerUpConfig  `yaml:"powerups"`
}

// CombatConfig 戰鬥數值
type CombatConfig struct {
	ShotCost          float64       `yaml:"shot_cost"`
	RapidFireFactor   float64       `yaml:"rapid_fire_factor"`
	ProjectileSpeed   float64       `yaml:"projectile_speed"`
	ProjectileDamage  float64       `yaml:"projectile_damage"`
	ProjectileMaxLife time.Duration `yaml:"projectile_max_life"`
	DamageBoostFactor float64       `yaml:"damage_boost_factor"`
	ShieldFactor      float64       `yaml:"shield_factor"`
	HitRadius         float64       `yaml:"hit_radius"`
	PickupRadius      float64       `yaml:"pickup_radius"`
	EnergyRegen       float64       `yaml:"energy_regen"` // 每秒回復量

	HealthRestore float64       `yaml:"health_restore"`
	EnergyRestore float64       `yaml:"energy_restore"`
	ShieldTime    time.Duration `yaml:"shield_time"`
	EffectTime    time.Duration `yaml:"effect_time"`
}

// MatchmakingConfig 配對配置
type MatchmakingConfig struct {
	// RatingThreshold 優先配對的最大分差
	RatingThreshold int `yaml:"rating_threshold"`
	// MaxWait 分差超過門檻時，最久等待者需等多久才強制配對；0 表示立即配對
	MaxWait time.Duration `yaml:"max_wait"`
}

// RatingConfig 積分配置
type RatingConfig struct {
	Initial           int `yaml:"initial"`
	K                 int `yaml:"k"`
	Floor             int `yaml:"floor"`
	DisconnectPenalty int `yaml:"disconnect_penalty"`
	LeaderboardSize   int `yaml:"leaderboard_size"`
}

// Default 返回預設配置
//
// Boss 每 40ms 推進一次（25 Hz），在 x∈[100,900]、y∈[80,220] 之間反彈，血量 25000。
func Default() *Config {
	c := &Config{}

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second

	c.Log.Level = "info"
	c.Log.Format = "text"

	c.Tick = TickConfig{
		Rate:          25,
		MinStep:       20 * time.Millisecond,
		MaxStep:       70 * time.Millisecond,
		ReferenceStep: 40 * time.Millisecond,
		InboxSize:     1024,
	}

	c.Coop.Arena = Arena{Width: 1000, Height: 700}
	c.Coop.MaxPlayers = 8
	c.Coop.EmptyGrace = 10 * time.Second
	c.Coop.BossResetPolicy = BossResetFull
	c.Coop.Boss.MaxHealth = 25000
	c.Coop.Boss.StartX = 500
	c.Coop.Boss.StartY = 150
	c.Coop.Boss.MinX = 100
	c.Coop.Boss.MaxX = 900
	c.Coop.Boss.MinY = 80
	c.Coop.Boss.MaxY = 220
	c.Coop.Boss.SpeedX = 3.0
	c.Coop.Boss.SpeedY = 1.2
	c.Coop.Boss.Spin = 0.02
	c.Coop.Boss.AttackInterval = 2500 * time.Millisecond
	c.Coop.Boss.AttackDamage = 10
	c.Coop.Boss.AttackSpeed = 6
	c.Coop.BossDamageInterval = 65 * time.Millisecond
	c.Coop.MaxBossHit = 500
	c.Coop.ObstacleBonus = 50
	c.Coop.Obstacles = ObstacleConfig{
		SpawnChance: 0.02,
		MaxCount:    12,
		MinSpeed:    1.5,
		MaxSpeed:    3.5,
		MaxLateral:  1.0,
		MinSize:     20,
		MaxSize:     50,
	}
	c.Coop.PlayerMaxHealth = 100
	c.Coop.PlayerMaxEnergy = 100

	c.Duel.Arena = Arena{Width: 1280, Height: 720}
	c.Duel.BestOf = 3
	c.Duel.MaxHealth = 100
	c.Duel.MaxEnergy = 100
	c.Duel.CountdownDelay = 3 * time.Second
	c.Duel.RoundRestartDelay = 3 * time.Second
	c.Duel.MaxRoundDuration = 90 * time.Second
	c.Duel.EndCleanupDelay = 5 * time.Second
	c.Duel.HitConfirmTolerance = 2.0
	c.Duel.Obstacles = ObstacleConfig{
		SpawnChance: 0.01,
		MaxCount:    6,
		MinSpeed:    1.0,
		MaxSpeed:    2.5,
		MaxLateral:  1.0,
		MinSize:     24,
		MaxSize:     48,
	}
	c.Duel.PowerUps = PowerUpConfig{
		SpawnChance: 0.01,
		MaxCount:    3,
		TTL:         10 * time.Second,
		Size:        24,
		Weights: map[string]int{
			"health": 25,
			"energy": 25,
			"shield": 15,
			"damage": 15,
			"speed":  10,
			"rapid":  10,
		},
	}

	c.Combat = CombatConfig{
		ShotCost:          15,
		RapidFireFactor:   0.5,
		ProjectileSpeed:   8,
		ProjectileDamage:  20,
		ProjectileMaxLife: 3 * time.Second,
		DamageBoostFactor: 1.5,
		ShieldFactor:      0.5,
		HitRadius:         32,
		PickupRadius:      30,
		EnergyRegen:       12,
		HealthRestore:     30,
		EnergyRestore:     40,
		ShieldTime:        5 * time.Second,
		EffectTime:        8 * time.Second,
	}

	c.Matchmaking = MatchmakingConfig{
		RatingThreshold: 200,
		MaxWait:         0,
	}

	c.Rating = RatingConfig{
		Initial:           1000,
		K:                 32,
		Floor:             100,
		DisconnectPenalty: 10,
		LeaderboardSize:   10,
	}

	c.Publish.BufferSize = 256
	c.Publish.Timeout = 3 * time.Second

	c.Redis.Addr = "localhost:6379"
	c.Redis.KeyPrefix = "arena"

	c.NATS.URL = "nats://localhost:4222"
	c.NATS.SubjectPrefix = "arena"

	c.Postgres.Host = "localhost"
	c.Postgres.Port = 5432
	c.Postgres.User = "postgres"
	c.Postgres.DBName = "arena"
	c.Postgres.MaxConns = 4

	return c
}

// Load 以預設值為基礎讀取 YAML 配置檔
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path 來自啟動參數，非使用者輸入
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	var errs []error

	if c.Tick.Rate <= 0 {
		errs = append(errs, fmt.Errorf("tick.rate must be positive, got %d", c.Tick.Rate))
	}
	if c.Tick.MinStep <= 0 || c.Tick.MinStep > c.Tick.MaxStep {
		errs = append(errs, fmt.Errorf("tick.min_step must be in (0, max_step]"))
	}
	if c.Tick.ReferenceStep <= 0 {
		errs = append(errs, fmt.Errorf("tick.reference_step must be positive"))
	}
	if c.Duel.BestOf < 1 {
		errs = append(errs, fmt.Errorf("duel.best_of must be at least 1, got %d", c.Duel.BestOf))
	}
	if c.Coop.MaxPlayers < 1 {
		errs = append(errs, fmt.Errorf("coop.max_players must be at least 1"))
	}
	switch c.Coop.BossResetPolicy {
	case BossResetFull, BossResetPreserve:
	default:
		errs = append(errs, fmt.Errorf("coop.boss_reset_policy must be %q or %q", BossResetFull, BossResetPreserve))
	}
	for name, p := range map[string]float64{
		"coop.obstacles.spawn_chance": c.Coop.Obstacles.SpawnChance,
		"duel.obstacles.spawn_chance": c.Duel.Obstacles.SpawnChance,
		"duel.powerups.spawn_chance":  c.Duel.PowerUps.SpawnChance,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, p))
		}
	}
	if c.Rating.K <= 0 {
		errs = append(errs, fmt.Errorf("rating.k must be positive"))
	}
	if c.Publish.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("publish.buffer_size must be positive"))
	}

	return errors.Join(errs...)
}

// TickInterval 排程器間隔
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Tick.Rate)
}

// PostgresDSN 生成 PostgreSQL 連線字串
func (c *Config) PostgresDSN() string {
	// 支援環境變數覆蓋（生產環境常用）
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.DBName,
	)
}
