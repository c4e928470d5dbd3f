package session

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNicknameLen  = 16
	defaultNickname = "Player"
	maxChatLen      = 200
)

// Player 連線中的玩家
//
// 身分就是連線 id。玩家只透過 id 弱引用所在的場次，場次被移除時不會留下懸空指標。
type Player struct {
	ID          string
	Nickname    string
	Skin        string
	ConnectedAt time.Time

	QueueMode    string // 非空表示在配對佇列中
	CoopID       string
	DuelID       string
	SpectatingID string
}

// busy 是否已在佇列、合作房間或對戰中（觀戰不算）
func (p *Player) busy() bool {
	return p.QueueMode != "" || p.CoopID != "" || p.DuelID != ""
}

// SanitizeNickname 只保留英數字、底線和空白，最長 16 字，空字串回傳 "Player"
func SanitizeNickname(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || r == ' ' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(name) > maxNicknameLen {
		name = strings.TrimSpace(name[:maxNicknameLen])
	}
	if name == "" {
		return defaultNickname
	}
	return name
}

// sanitizeChat 去除控制字元並截斷
func sanitizeChat(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxChatLen {
		s = string([]rune(s)[:maxChatLen])
	}
	return s
}

// applyProfile 更新暱稱與外觀；空值保留原本的設定
func (p *Player) applyProfile(nickname, skin string) {
	if strings.TrimSpace(nickname) != "" {
		p.Nickname = SanitizeNickname(nickname)
	}
	if skin = strings.TrimSpace(skin); skin != "" {
		if utf8.RuneCountInString(skin) > 32 {
			skin = string([]rune(skin)[:32])
		}
		p.Skin = skin
	}
}
