package handler

import (
	"database/sql"
	"net/http"
)

// HealthHandler はヘルスチェックエンドポイントのハンドラー。
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler はHealthHandlerを生成する。
// dbはnilでもよい（DB未構成の縮退モードでは接続確認をスキップする）。
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Handle はプロセスの健全性を返す。
// DBが構成されている場合は接続確認も行い、到達不能なら503を返す。
// GET /health
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}
		body["database"] = "ok"
	}

	writeJSON(w, http.StatusOK, body)
}
