package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/tunesync/internal/middleware"
	"github.com/hitoshi/tunesync/internal/session"
)

// --- モック定義 ---

type mockSyncService struct {
	available bool
	readFn    func(ctx context.Context, userID string, keys []string) (map[string]*string, error)
	writeFn   func(ctx context.Context, userID string, data map[string]interface{}) (int, error)
	deleteFn  func(ctx context.Context, userID string, keys []string) (int, error)
}

func (m *mockSyncService) Available() bool {
	return m.available
}

func (m *mockSyncService) Read(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
	if m.readFn != nil {
		return m.readFn(ctx, userID, keys)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) Write(ctx context.Context, userID string, data map[string]interface{}) (int, error) {
	if m.writeFn != nil {
		return m.writeFn(ctx, userID, data)
	}
	return 0, errors.New("not implemented")
}

func (m *mockSyncService) Delete(ctx context.Context, userID string, keys []string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, keys)
	}
	return 0, errors.New("not implemented")
}

func strPtr(s string) *string { return &s }

func authedSyncRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithClaims(req.Context(), &session.Claims{UserID: "user-1"}))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return body
}

// --- テスト ---

// statusプローブが認証・ストレージに触れず利用可否を返すことを検証
func TestSyncHandler_StatusProbe(t *testing.T) {
	service := &mockSyncService{
		available: true,
		readFn: func(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
			t.Error("status probe must not touch storage")
			return nil, nil
		},
	}
	h := NewSyncHandler(service)

	// 未認証でもプローブは応答する
	req := httptest.NewRequest(http.MethodGet, "/api/sync?status=1", nil)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["d1Available"] != true {
		t.Errorf("d1Available = %v, want true", body["d1Available"])
	}
}

// DB未構成時のstatusプローブがfalseを返すことを検証
func TestSyncHandler_StatusProbe_Degraded(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: false})

	req := httptest.NewRequest(http.MethodGet, "/api/sync?status=1", nil)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	body := decodeBody(t, w)
	if body["d1Available"] != false {
		t.Errorf("d1Available = %v, want false", body["d1Available"])
	}
}

// 未認証GETがHTTP 200のソフトエラーで応答することを検証
func TestSyncHandler_Unauthenticated_Get(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: true})

	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (not 401)", w.Code)
	}
	body := decodeBody(t, w)
	if body["d1Available"] != false {
		t.Errorf("d1Available = %v, want false", body["d1Available"])
	}
	if body["error"] != "Not authenticated" {
		t.Errorf("error = %v, want Not authenticated", body["error"])
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok || len(data) != 0 {
		t.Errorf("data = %v, want empty object", body["data"])
	}
}

// 未認証POST/DELETEもHTTP 200のソフトエラーで応答することを検証
func TestSyncHandler_Unauthenticated_PostDelete(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: true})

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/sync", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		h.Handle(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", method, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "Not authenticated" {
			t.Errorf("%s: error = %v", method, body["error"])
		}
	}
}

// DB未構成時の認証済みアクセスが縮退応答になることを検証
func TestSyncHandler_Degraded_Authenticated(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: false})

	req := authedSyncRequest(http.MethodGet, "/api/sync", "")
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["d1Available"] != false {
		t.Errorf("d1Available = %v, want false", body["d1Available"])
	}
	if _, exists := body["error"]; exists {
		t.Error("degraded response for authenticated user should not be an auth error")
	}
}

// keysパラメータが分解されてサービスに渡ることを検証
func TestSyncHandler_Read_WithKeys(t *testing.T) {
	service := &mockSyncService{
		available: true,
		readFn: func(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			if len(keys) != 2 || keys[0] != "volume" || keys[1] != "favoriteSongs" {
				t.Errorf("keys = %v", keys)
			}
			return map[string]*string{
				"volume":        strPtr("80"),
				"favoriteSongs": nil,
			}, nil
		},
	}
	h := NewSyncHandler(service)

	req := authedSyncRequest(http.MethodGet, "/api/sync?keys=volume,favoriteSongs", "")
	w := httptest.NewRecorder()
	h.Handle(w, req)

	body := decodeBody(t, w)
	if body["d1Available"] != true {
		t.Errorf("d1Available = %v, want true", body["d1Available"])
	}
	data := body["data"].(map[string]interface{})
	if data["volume"] != "80" {
		t.Errorf("volume = %v, want 80", data["volume"])
	}
	// 存在しないキーは明示的にnull
	if v, exists := data["favoriteSongs"]; !exists || v != nil {
		t.Errorf("favoriteSongs = %v (exists=%v), want explicit null", v, exists)
	}
}

// keysなしのGETが全件読み出しになることを検証
func TestSyncHandler_Read_All(t *testing.T) {
	service := &mockSyncService{
		available: true,
		readFn: func(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
			if keys != nil {
				t.Errorf("keys = %v, want nil for full read", keys)
			}
			return map[string]*string{"volume": strPtr("55")}, nil
		},
	}
	h := NewSyncHandler(service)

	req := authedSyncRequest(http.MethodGet, "/api/sync", "")
	w := httptest.NewRecorder()
	h.Handle(w, req)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	if data["volume"] != "55" {
		t.Errorf("volume = %v", data["volume"])
	}
}

// 読み出し失敗が500のJSONエラーになることを検証
func TestSyncHandler_Read_Error(t *testing.T) {
	service := &mockSyncService{
		available: true,
		readFn: func(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
			return nil, errors.New("connection reset")
		},
	}
	h := NewSyncHandler(service)

	req := authedSyncRequest(http.MethodGet, "/api/sync", "")
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

// POSTのdataがサービスへ渡り、updated件数が返ることを検証
func TestSyncHandler_Write(t *testing.T) {
	service := &mockSyncService{
		available: true,
		writeFn: func(ctx context.Context, userID string, data map[string]interface{}) (int, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			if len(data) != 2 {
				t.Errorf("data = %v, want 2 entries", data)
			}
			if data["volume"] != json.Number("80") {
				t.Errorf("volume = %v (%T), want json.Number(80)", data["volume"], data["volume"])
			}
			return len(data), nil
		},
	}
	h := NewSyncHandler(service)

	req := authedSyncRequest(http.MethodPost, "/api/sync", `{"data":{"volume":80,"favoriteSongs":"[1,2,3]"}}`)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["d1Available"] != true {
		t.Errorf("d1Available = %v, want true", body["d1Available"])
	}
	if body["updated"] != float64(2) {
		t.Errorf("updated = %v, want 2", body["updated"])
	}
}

// 不正なPOSTボディが400 Invalid payloadになることを検証
func TestSyncHandler_Write_InvalidPayload(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: true})

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{data:`},
		{"array data", `{"data":[1,2,3]}`},
		{"missing data", `{}`},
		{"scalar data", `{"data":"text"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedSyncRequest(http.MethodPost, "/api/sync", tt.body)
			w := httptest.NewRecorder()
			h.Handle(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			body := decodeBody(t, w)
			if body["error"] != "Invalid payload" {
				t.Errorf("error = %v, want Invalid payload", body["error"])
			}
		})
	}
}

// DELETEのkeysがサービスへ渡り、deleted件数が返ることを検証
func TestSyncHandler_Delete(t *testing.T) {
	service := &mockSyncService{
		available: true,
		deleteFn: func(ctx context.Context, userID string, keys []string) (int, error) {
			if len(keys) != 2 {
				t.Errorf("keys = %v", keys)
			}
			return 2, nil
		},
	}
	h := NewSyncHandler(service)

	req := authedSyncRequest(http.MethodDelete, "/api/sync", `{"keys":["volume","favoriteSongs"]}`)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	body := decodeBody(t, w)
	if body["deleted"] != float64(2) {
		t.Errorf("deleted = %v, want 2", body["deleted"])
	}
}

// 不正なDELETEボディが400になることを検証
func TestSyncHandler_Delete_InvalidPayload(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: true})

	req := authedSyncRequest(http.MethodDelete, "/api/sync", `{"keys":`)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// 未対応メソッドが405になることを検証
func TestSyncHandler_MethodNotAllowed(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{available: true})

	req := authedSyncRequest(http.MethodPatch, "/api/sync", "")
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

// parseKeysParamの分解規則を検証
func TestParseKeysParam(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b", []string{"a", "b"}},
		{",", nil},
	}

	for _, tt := range tests {
		got := parseKeysParam(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("parseKeysParam(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseKeysParam(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}
