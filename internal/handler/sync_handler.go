package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/tunesync/internal/middleware"
)

// SyncServiceInterface は同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	Available() bool
	Read(ctx context.Context, userID string, keys []string) (map[string]*string, error)
	Write(ctx context.Context, userID string, data map[string]interface{}) (int, error)
	Delete(ctx context.Context, userID string, keys []string) (int, error)
}

// SyncHandler は/api/syncエンドポイントのHTTPハンドラー。
//
// 未認証アクセスは401ではなくHTTP 200のソフトエラーで応答する。
// フロントエンドはこれを「ローカルストレージへフォールバックせよ」の
// シグナルとして扱う。
type SyncHandler struct {
	service SyncServiceInterface
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface) *SyncHandler {
	return &SyncHandler{service: service}
}

// Handle は/api/syncへのリクエストをメソッド別に振り分ける。
func (h *SyncHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// statusクエリパラメータ付きGETは、認証・ストレージに触れずに
	// バックエンドの利用可否のみを返す（ヘルス/能力プローブ）
	if r.Method == http.MethodGet && r.URL.Query().Has("status") {
		writeJSON(w, http.StatusOK, map[string]bool{
			"d1Available": h.service.Available(),
		})
		return
	}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeUnauthenticated(w, r.Method)
		return
	}

	if !h.service.Available() {
		// バックエンドDB未構成: 整形式の縮退応答を返す
		h.writeUnavailable(w, r.Method)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.read(w, r, claims.UserID)
	case http.MethodPost:
		h.write(w, r, claims.UserID)
	case http.MethodDelete:
		h.delete(w, r, claims.UserID)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// read は指定キー（またはユーザーの全レコード）を取得する。
// GET /api/sync?keys=a,b,c
func (h *SyncHandler) read(w http.ResponseWriter, r *http.Request, userID string) {
	keys := parseKeysParam(r.URL.Query().Get("keys"))

	data, err := h.service.Read(r.Context(), userID, keys)
	if err != nil {
		slog.Error("sync read failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"d1Available": true,
			"error":       "Failed to read data",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"d1Available": true,
		"data":        data,
	})
}

// write はリクエストボディのdataオブジェクトを保存する。
// POST /api/sync  ボディ: {"data": {"key": value, ...}}
func (h *SyncHandler) write(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Data map[string]interface{} `json:"data"`
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload.Data == nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	updated, err := h.service.Write(r.Context(), userID, payload.Data)
	if err != nil {
		slog.Error("sync write failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"d1Available": true,
			"error":       "Failed to write data",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"d1Available": true,
		"updated":     updated,
	})
}

// delete はリクエストボディで指定されたキー群を削除する。
// DELETE /api/sync  ボディ: {"keys": ["a", "b"]}
func (h *SyncHandler) delete(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Keys []string `json:"keys"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	deleted, err := h.service.Delete(r.Context(), userID, payload.Keys)
	if err != nil {
		slog.Error("sync delete failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"d1Available": true,
			"error":       "Failed to delete data",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"d1Available": true,
		"deleted":     deleted,
	})
}

// writeUnauthenticated は未認証時のソフトエラー応答（HTTP 200）を書き込む。
func (h *SyncHandler) writeUnauthenticated(w http.ResponseWriter, method string) {
	body := map[string]interface{}{
		"d1Available": false,
		"error":       "Not authenticated",
	}
	if method == http.MethodGet {
		body["data"] = map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, body)
}

// writeUnavailable はバックエンドDB未構成時の縮退応答を書き込む。
func (h *SyncHandler) writeUnavailable(w http.ResponseWriter, method string) {
	body := map[string]interface{}{
		"d1Available": false,
	}
	switch method {
	case http.MethodGet:
		body["data"] = map[string]interface{}{}
	case http.MethodPost:
		body["updated"] = 0
	case http.MethodDelete:
		body["deleted"] = 0
	}
	writeJSON(w, http.StatusOK, body)
}

// parseKeysParam はカンマ区切りのkeysパラメータを分解する。
// 空要素は除外する。
func parseKeysParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
