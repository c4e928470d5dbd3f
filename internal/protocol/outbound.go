package protocol

// Welcome 連線建立後的第一則訊息
type Welcome struct {
	PlayerID string `json:"playerId"`
}

// Error 拒絕請求時的回覆
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// PlayerView 合作模式玩家的公開狀態
type PlayerView struct {
	ID          string  `json:"id"`
	Nickname    string  `json:"nickname"`
	Skin        string  `json:"skin"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Angle       float64 `json:"angle"`
	Health      float64 `json:"health"`
	MaxHealth   float64 `json:"maxHealth"`
	IsHost      bool    `json:"isHost"`
	Down        bool    `json:"down"`
	DamageDealt float64 `json:"damageDealt"`
}

// BossView Boss 狀態
type BossView struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Angle     float64 `json:"angle"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
}

// ObstacleView 障礙物
type ObstacleView struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// PowerUpView 道具
type PowerUpView struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// ProjectileView 子彈
type ProjectileView struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"ownerId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Angle   float64 `json:"angle"`
	Side    string  `json:"side"`
}

// LobbyUpdate 大廳成員變動
type LobbyUpdate struct {
	SessionID  string       `json:"sessionId"`
	HostID     string       `json:"hostId"`
	InProgress bool         `json:"inProgress"`
	Players    []PlayerView `json:"players"`
}

// RaidStart 討伐開始
type RaidStart struct {
	SessionID string       `json:"sessionId"`
	Boss      BossView     `json:"boss"`
	Players   []PlayerView `json:"players"`
}

// BossUpdate Boss 狀態更新
type BossUpdate struct {
	Boss BossView `json:"boss"`
}

// RaidDefeated Boss 被擊敗
type RaidDefeated struct {
	Team  []string `json:"team"`
	Score int      `json:"score"`
}

// RaidFailed 全員倒地
type RaidFailed struct {
	Reason string `json:"reason"`
}

// ObstaclesUpdate 障礙物列表
type ObstaclesUpdate struct {
	Obstacles []ObstacleView `json:"obstacles"`
}

// PlayersUpdate 合作模式每 tick 的玩家與子彈快照
type PlayersUpdate struct {
	Players     []PlayerView     `json:"players"`
	Projectiles []ProjectileView `json:"projectiles"`
}

// DuelQueueJoined 已加入對戰佇列
type DuelQueueJoined struct {
	Mode     string `json:"mode"`
	Position int    `json:"position"`
}

// DuelQueueLeft 已離開對戰佇列
type DuelQueueLeft struct{}

// PublicProfile 對手的公開資料
type PublicProfile struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Skin     string `json:"skin"`
	Rating   int    `json:"rating"`
}

// MatchFound 配對成功
//
// Opponent 是對方陣營的第一位玩家，2v2 時完整名單在 Opponents。
type MatchFound struct {
	MatchID   string          `json:"matchId"`
	Mode      string          `json:"mode"`
	Side      string          `json:"side"`
	Opponent  PublicProfile   `json:"opponent"`
	Opponents []PublicProfile `json:"opponents,omitempty"`
	Teammates []PublicProfile `json:"teammates,omitempty"`
}

// CombatantView 對戰玩家的狀態
type CombatantView struct {
	ID        string           `json:"id"`
	Nickname  string           `json:"nickname"`
	Skin      string           `json:"skin"`
	Side      string           `json:"side"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Angle     float64          `json:"angle"`
	Health    float64          `json:"health"`
	MaxHealth float64          `json:"maxHealth"`
	Energy    float64          `json:"energy"`
	MaxEnergy float64          `json:"maxEnergy"`
	ShieldMs  int64            `json:"shieldMs"`
	Effects   map[string]int64 `json:"effects,omitempty"`
	Down      bool             `json:"down"`
	Connected bool             `json:"connected"`
}

// DuelEvent tick 內發生的事件（命中、拾取等），隨下一個快照送出
type DuelEvent struct {
	Kind     string  `json:"kind"`
	PlayerID string  `json:"playerId,omitempty"`
	TargetID string  `json:"targetId,omitempty"`
	ObjectID string  `json:"objectId,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
}

// 事件種類
const (
	EventShot      = "shot"
	EventHit       = "hit"
	EventKnockout  = "knockout"
	EventPowerUp   = "powerup"
	EventObstacle  = "obstacle"
	EventRoundOver = "roundOver"
)

// RoundInfo 回合資訊
type RoundInfo struct {
	RoundNumber int            `json:"roundNumber"`
	BestOf      int            `json:"bestOf"`
	RoundWins   map[string]int `json:"roundWins"`
	Phase       string         `json:"phase"`
}

// DuelState 對戰快照，依接收者視角組裝
//
// 觀戰者的 Self / Opponent 為空，改看 Players。
type DuelState struct {
	MatchID       string           `json:"matchId"`
	Self          *CombatantView   `json:"self,omitempty"`
	Opponent      *CombatantView   `json:"opponent,omitempty"`
	Teammates     []CombatantView  `json:"teammates,omitempty"`
	Opponents     []CombatantView  `json:"opponents,omitempty"`
	Players       []CombatantView  `json:"players,omitempty"`
	PowerUps      []PowerUpView    `json:"powerups"`
	Obstacles     []ObstacleView   `json:"obstacles"`
	Projectiles   []ProjectileView `json:"projectiles"`
	Events        []DuelEvent      `json:"events"`
	TimeRemaining int64            `json:"timeRemaining"` // 毫秒
	RoundInfo     RoundInfo        `json:"roundInfo"`
}

// DuelNewRound 新回合開始
type DuelNewRound struct {
	RoundNumber int            `json:"roundNumber"`
	RoundWins   map[string]int `json:"roundWins"`
}

// PlayerStats 單場統計
type PlayerStats struct {
	ShotsFired  int     `json:"shotsFired"`
	ShotsHit    int     `json:"shotsHit"`
	DamageDealt float64 `json:"damageDealt"`
	Accuracy    float64 `json:"accuracy"`
}

// DuelEnd 對戰結束
//
// Winner 是獲勝陣營（"A" / "B"）或 "draw"；1v1 時 WinnerIDs 只有一人。
type DuelEnd struct {
	MatchID       string                 `json:"matchId"`
	Winner        string                 `json:"winner"`
	WinnerIDs     []string               `json:"winnerIds"`
	Reason        string                 `json:"reason"`
	RoundWins     map[string]int         `json:"roundWins"`
	Stats         map[string]PlayerStats `json:"stats"`
	NewRatings    map[string]int         `json:"newRatings"`
	RatingChanges map[string]int         `json:"ratingChanges"`
}

// SpectateStart 開始觀戰
type SpectateStart struct {
	MatchID   string          `json:"matchId"`
	Players   []CombatantView `json:"players"`
	RoundInfo RoundInfo       `json:"roundInfo"`
}

// SpectateEnded 觀戰結束
type SpectateEnded struct {
	MatchID string `json:"matchId"`
	Reason  string `json:"reason"`
}

// LeaderboardEntry 排行榜條目
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Leaderboard 排行榜
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// DuelSummary 進行中對戰的摘要
type DuelSummary struct {
	MatchID    string          `json:"matchId"`
	Mode       string          `json:"mode"`
	Phase      string          `json:"phase"`
	Players    []PublicProfile `json:"players"`
	RoundWins  map[string]int  `json:"roundWins"`
	Spectators int             `json:"spectators"`
}

// ActiveDuels 進行中的對戰列表
type ActiveDuels struct {
	Matches []DuelSummary `json:"matches"`
}

// ChatMessage 轉發的聊天訊息
type ChatMessage struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}
