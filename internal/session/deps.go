package session

import (
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
)

// Clock 時間來源，測試時換成可手動推進的假時鐘
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sender 把訊息送到指定連線
//
// 實作必須是非阻塞的（排程器 goroutine 會直接呼叫）。
type Sender interface {
	Send(connID, msgType string, payload any)
}

// Publisher 對戰 / 討伐結果的對外發送（fire-and-forget）
type Publisher interface {
	Publish(rec publish.Record)
}

type nopPublisher struct{}

func (nopPublisher) Publish(publish.Record) {}

// Option 管理器選項
type Option func(*Manager)

// WithClock 指定時間來源
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithPublisher 指定結果發送器
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}
