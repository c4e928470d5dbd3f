package protocol

// Inbound 入站訊息（封閉的 tagged union，只有本套件的型別能實作）
type Inbound interface {
	// Type 回傳訊息類型字串
	Type() string
	inbound()
}

// JoinLobby 加入合作討伐大廳；SessionID 為空時自動挑選或建立房間
type JoinLobby struct {
	Nickname  string `json:"nickname"`
	Skin      string `json:"skin"`
	SessionID string `json:"sessionId,omitempty"`
}

// StartRaid 房主開始討伐
type StartRaid struct{}

// BossDamage 對 Boss 造成傷害
type BossDamage struct {
	Amount float64 `json:"amount"`
}

// ObstacleHit 擊毀障礙物
type ObstacleHit struct {
	ID string `json:"id"`
}

// PlayerMove 合作模式的位置更新
type PlayerMove struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// Shoot 發射子彈
type Shoot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// DuelQueueJoin 加入對戰佇列；Mode 預設 1v1
type DuelQueueJoin struct {
	Nickname string `json:"nickname"`
	Skin     string `json:"skin"`
	Mode     string `json:"mode,omitempty"`
}

// DuelQueueCancel 離開對戰佇列
type DuelQueueCancel struct{}

// DuelUpdate 對戰中的位置 / 動作更新
//
// Energy 只是客戶端的預測值，伺服器不採用。
type DuelUpdate struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Energy float64 `json:"energy"`
	Action string  `json:"action,omitempty"`
}

// ActionShoot DuelUpdate.Action 的射擊動作
const ActionShoot = "shoot"

// DuelHitConfirm 客戶端回報命中
type DuelHitConfirm struct {
	BulletID string  `json:"bulletId"`
	Damage   float64 `json:"damage"`
	TargetID string  `json:"targetId"`
}

// PowerUpCollect 拾取道具
type PowerUpCollect struct {
	ID string `json:"id"`
}

// Spectate 觀戰
type Spectate struct {
	MatchID string `json:"matchId"`
}

// StopSpectating 停止觀戰
type StopSpectating struct{}

// Leave 離開目前的房間 / 對戰 / 佇列
type Leave struct{}

// Concede 投降
type Concede struct{}

// GetLeaderboard 查詢排行榜
type GetLeaderboard struct {
	Limit int `json:"limit,omitempty"`
}

// ListDuels 查詢進行中的對戰
type ListDuels struct{}

// Chat 聊天訊息（只轉發給同一場次的成員）
type Chat struct {
	Text string `json:"text"`
}

// Ping 應用層心跳
type Ping struct{}

func (JoinLobby) Type() string       { return TypeJoinLobby }
func (StartRaid) Type() string       { return TypeStartRaid }
func (BossDamage) Type() string      { return TypeBossDamage }
func (ObstacleHit) Type() string     { return TypeObstacleHit }
func (PlayerMove) Type() string      { return TypePlayerMove }
func (Shoot) Type() string           { return TypeShoot }
func (DuelQueueJoin) Type() string   { return TypeDuelQueueJoin }
func (DuelQueueCancel) Type() string { return TypeDuelQueueCancel }
func (DuelUpdate) Type() string      { return TypeDuelUpdate }
func (DuelHitConfirm) Type() string  { return TypeDuelHitConfirm }
func (PowerUpCollect) Type() string  { return TypePowerUpCollect }
func (Spectate) Type() string        { return TypeSpectate }
func (StopSpectating) Type() string  { return TypeStopSpectating }
func (Leave) Type() string           { return TypeLeave }
func (Concede) Type() string         { return TypeConcede }
func (GetLeaderboard) Type() string  { return TypeGetLeaderboard }
func (ListDuels) Type() string       { return TypeListDuels }
func (Chat) Type() string            { return TypeChat }
func (Ping) Type() string            { return TypePing }

func (JoinLobby) inbound()       {}
func (StartRaid) inbound()       {}
func (BossDamage) inbound()      {}
func (ObstacleHit) inbound()     {}
func (PlayerMove) inbound()      {}
func (Shoot) inbound()           {}
func (DuelQueueJoin) inbound()   {}
func (DuelQueueCancel) inbound() {}
func (DuelUpdate) inbound()      {}
func (DuelHitConfirm) inbound()  {}
func (PowerUpCollect) inbound()  {}
func (Spectate) inbound()        {}
func (StopSpectating) inbound()  {}
func (Leave) inbound()           {}
func (Concede) inbound()         {}
func (GetLeaderboard) inbound()  {}
func (ListDuels) inbound()       {}
func (Chat) inbound()            {}
func (Ping) inbound()            {}
