package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher NATS 連線中用到的部分（*nats.Conn 實作此介面）
type NATSPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSSink 把結果發佈到 <prefix>.<kind>
type NATSSink struct {
	conn   NATSPublisher
	prefix string
}

// NewNATSSink 創建 NATS 寫入目標
func NewNATSSink(conn NATSPublisher, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

// ConnectNATS 連接 NATS
//
//   - MaxReconnects(-1)：無限重連
//   - ReconnectWait(1s)：重連間隔
//   - PingInterval(20s)：心跳檢測
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("realtime-match"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Name 實作 Sink
func (s *NATSSink) Name() string { return "nats" }

// Subject 紀錄對應的主題
func (s *NATSSink) Subject(kind Kind) string {
	if s.prefix == "" {
		return string(kind)
	}
	return s.prefix + "." + string(kind)
}

// Write 實作 Sink
//
// core NATS 的 Publish 只寫入本地緩衝，不會因 ctx 阻塞。
func (s *NATSSink) Write(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.conn.Publish(s.Subject(rec.Kind), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
