// Package protocol 定義客戶端與伺服器之間的訊息格式
//
// 每則訊息都是一個信封：
//
//	{"type": "duelUpdate", "payload": {...}}
//
// type 決定 payload 的結構。入站訊息解碼成 Inbound 介面的具體型別，
// 由 session 層以 type switch 分派。
package protocol

import "encoding/json"

// 入站訊息類型（客戶端 → 伺服器）
const (
	TypeJoinLobby       = "joinLobby"
	TypeStartRaid       = "startRaid"
	TypeBossDamage      = "bossDamage"
	TypeObstacleHit     = "obstacleHit"
	TypePlayerMove      = "playerMove"
	TypeShoot           = "shoot"
	TypeDuelQueueJoin   = "duelQueueJoin"
	TypeDuelQueueCancel = "duelQueueCancel"
	TypeDuelUpdate      = "duelUpdate"
	TypeDuelHitConfirm  = "duelHitConfirm"
	TypePowerUpCollect  = "powerupCollect"
	TypeSpectate        = "spectate"
	TypeStopSpectating  = "stopSpectating"
	TypeLeave           = "leave"
	TypeConcede         = "concede"
	TypeGetLeaderboard  = "getLeaderboard"
	TypeListDuels       = "listDuels"
	TypeChat            = "chat"
	TypePing            = "ping"
)

// 出站訊息類型（伺服器 → 客戶端）
const (
	TypeWelcome         = "welcome"
	TypeError           = "error"
	TypePong            = "pong"
	TypeLobbyUpdate     = "lobbyUpdate"
	TypeRaidStart       = "raidStart"
	TypeBossUpdate      = "bossUpdate"
	TypeRaidDefeated    = "raidDefeated"
	TypeRaidFailed      = "raidFailed"
	TypeObstaclesUpdate = "obstaclesUpdate"
	TypePlayersUpdate   = "playersUpdate"
	TypeDuelQueueJoined = "duelQueueJoined"
	TypeDuelQueueLeft   = "duelQueueLeft"
	TypeMatchFound      = "matchFound"
	TypeDuelState       = "duelState"
	TypeDuelNewRound    = "duelNewRound"
	TypeDuelEnd         = "duelEnd"
	TypeSpectateStart   = "spectateStart"
	TypeSpectateEnded   = "spectateEnded"
	TypeLeaderboard     = "leaderboard"
	TypeActiveDuels     = "activeDuels"
	TypeChatMessage     = "chatMessage"
)

// 對戰模式
const (
	Mode1v1 = "1v1"
	Mode2v2 = "2v2"
)

// 對戰結束原因
const (
	ReasonRounds     = "rounds"
	ReasonTimeout    = "timeout"
	ReasonDisconnect = "disconnect"
	ReasonLeft       = "left"
	ReasonConcede    = "concede"
	ReasonAborted    = "aborted"
)

// WinnerDraw 平手時 duelEnd.winner 的值
const WinnerDraw = "draw"

// Envelope 訊息信封
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
