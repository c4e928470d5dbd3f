// Package publish 把討伐 / 對戰結果送到外部系統
//
// 外部系統（NATS、Redis、PostgreSQL）全部是選配的，任何一個失敗都只記錄日誌，
// 不會影響遊戲狀態。Dispatcher 以獨立 goroutine 寫入，排程器只做非阻塞的投遞。
package publish

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
)

// 系統設計問題：
//   對戰結束要寫 Redis、發 NATS、存 PostgreSQL，任何一個變慢都不能拖住 tick。
//
// 設計方案：
//   ✅ 有界緩衝 channel - Publish 只做非阻塞投遞，滿了丟棄並計數
//   ✅ 單一 worker - 依序寫入每個 Sink，每次寫入有獨立逾時
//   ✅ 窄介面 - Sink 依賴的客戶端都是介面，測試用 fake 或測試容器

// Kind 紀錄類型
type Kind string

const (
	KindRaid Kind = "raid"
	KindDuel Kind = "duel"
)

// Record 一場討伐或對戰的結果
type Record struct {
	Kind       Kind             `json:"kind"`
	MatchID    string           `json:"match_id"`
	Mode       string           `json:"mode,omitempty"`
	Winner     string           `json:"winner,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Score      int              `json:"score,omitempty"`
	Players    []string         `json:"players"`
	Ratings    []rating.Profile `json:"ratings,omitempty"` // 結算後的積分檔案
	FinishedAt time.Time        `json:"finished_at"`
}

// Sink 結果的寫入目標
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// Dispatcher 非同步的結果分發器
//
// 緩衝區滿時直接丟棄並計數，不阻塞呼叫者。
type Dispatcher struct {
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration
	records chan Record

	dropped   atomic.Int64
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher 創建分發器並啟動 worker
func NewDispatcher(logger *slog.Logger, bufferSize int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	d := &Dispatcher{
		sinks:   sinks,
		logger:  logger,
		timeout: timeout,
		records: make(chan Record, bufferSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Publish 投遞一筆紀錄（非阻塞）
func (d *Dispatcher) Publish(rec Record) {
	if len(d.sinks) == 0 {
		return
	}
	select {
	case d.records <- rec:
	default:
		d.dropped.Add(1)
		d.logger.Warn("結果緩衝區滿，丟棄紀錄",
			"kind", rec.Kind,
			"match_id", rec.MatchID)
	}
}

// Dropped 被丟棄的紀錄數
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close 停止接收並等待緩衝區清空
//
// Close 之後不可再呼叫 Publish。
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.records)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for rec := range d.records {
		for _, sink := range d.sinks {
			d.write(sink, rec)
		}
	}
}

func (d *Dispatcher) write(sink Sink, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Write(ctx, rec); err != nil {
		d.logger.Error("結果寫入失敗",
			"sink", sink.Name(),
			"kind", rec.Kind,
			"match_id", rec.MatchID,
			"error", err)
	}
}
