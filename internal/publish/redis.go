package publish

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
)

// RedisClient 用到的 Redis 命令（方便測試時替換）
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
}

// RedisSink 把積分表鏡像到 Redis
//
// 資料結構：
//   - <prefix>:rating:<playerId>  hash {nickname, rating, wins, losses}
//   - <prefix>:leaderboard        sorted set，score = rating
type RedisSink struct {
	client RedisClient
	prefix string
}

// NewRedisSink 創建 Redis 寫入目標
func NewRedisSink(client RedisClient, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

// Name 實作 Sink
func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) profileKey(playerID string) string {
	return fmt.Sprintf("%s:rating:%s", s.prefix, playerID)
}

func (s *RedisSink) leaderboardKey() string {
	return s.prefix + ":leaderboard"
}

// Write 實作 Sink；沒有積分變化的紀錄（討伐、平手）直接略過
func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	for _, p := range rec.Ratings {
		if err := s.client.HSet(ctx, s.profileKey(p.PlayerID),
			"nickname", p.Nickname,
			"rating", p.Rating,
			"wins", p.Wins,
			"losses", p.Losses,
		).Err(); err != nil {
			return fmt.Errorf("hset profile %s: %w", p.PlayerID, err)
		}

		if err := s.client.ZAdd(ctx, s.leaderboardKey(), redis.Z{
			Score:  float64(p.Rating),
			Member: p.PlayerID,
		}).Err(); err != nil {
			return fmt.Errorf("zadd leaderboard: %w", err)
		}
	}
	return nil
}

// LoadProfiles 讀回排行榜前 limit 名的檔案，用於啟動時預載積分表
func (s *RedisSink) LoadProfiles(ctx context.Context, limit int64) ([]rating.Profile, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := s.client.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	profiles := make([]rating.Profile, 0, len(members))
	for _, z := range members {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}

		fields, err := s.client.HGetAll(ctx, s.profileKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", id, err)
		}

		profiles = append(profiles, rating.Profile{
			PlayerID: id,
			Nickname: fields["nickname"],
			Rating:   int(z.Score),
			Wins:     atoi(fields["wins"]),
			Losses:   atoi(fields["losses"]),
		})
	}

	return profiles, nil
}

// NewRedisClient 建立連線並 Ping 確認可用
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
