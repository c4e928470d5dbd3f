// Package server 提供 HTTP API 與 WebSocket 入口
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	"github.com/koopa0/system-design/14-realtime-match/internal/session"
)

// Handler HTTP 請求處理器
//
// 所有 API 只讀取跨 goroutine 安全的資料：rating.Store 與排程器發佈的 Overview。
type Handler struct {
	manager *session.Manager
	ratings *rating.Store
	hub     *Hub
	logger  *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *session.Manager, ratings *rating.Store, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		ratings: ratings,
		hub:     hub,
		logger:  logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	mux.HandleFunc("GET /api/v1/leaderboard", wrap(h.leaderboard))
	mux.HandleFunc("GET /api/v1/ratings/{player_id}", wrap(h.getRating))
	mux.HandleFunc("GET /api/v1/duels", wrap(h.listDuels))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	// WebSocket 需要 Hijacker，不經過包裝 ResponseWriter 的中間件
	mux.HandleFunc("GET /ws", h.hub.ServeWS)

	return mux
}

// leaderboard 排行榜
func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	top := h.ratings.Top(limit)
	entries := make([]map[string]any, 0, len(top))
	for i, p := range top {
		entries = append(entries, map[string]any{
			"rank":      i + 1,
			"player_id": p.PlayerID,
			"nickname":  p.Nickname,
			"rating":    p.Rating,
			"wins":      p.Wins,
			"losses":    p.Losses,
		})
	}

	h.jsonResponse(w, map[string]any{
		"entries": entries,
		"total":   h.ratings.Len(),
	}, http.StatusOK)
}

// getRating 查詢單一玩家的積分
func (h *Handler) getRating(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("player_id")

	profile, ok := h.ratings.Get(playerID)
	if !ok {
		h.errorResponse(w, "player not rated", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, profile, http.StatusOK)
}

// listDuels 進行中的對戰
func (h *Handler) listDuels(w http.ResponseWriter, r *http.Request) {
	o := h.manager.Overview()
	h.jsonResponse(w, map[string]any{
		"matches": o.ActiveDuels,
		"total":   len(o.ActiveDuels),
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	o := h.manager.Overview()
	h.jsonResponse(w, map[string]any{
		"connections":       h.hub.ConnectionCount(),
		"idle_connections":  h.hub.IdleConnections(pingPeriod),
		"players":           o.Players,
		"queued":            o.Queued,
		"coop_sessions":     o.CoopSessions,
		"raids_in_progress": o.RaidsInProgress,
		"duels":             o.Duels,
		"spectators":        o.Spectators,
		"ticks":             o.Ticks,
		"rated_players":     h.ratings.Len(),
		"updated_at":        o.UpdatedAt,
	}, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
