package api_test

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"flag-arena/internal/api"
	"flag-arena/internal/game"
	"flag-arena/internal/game/ranking"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	state *game.GameState
}

func NewMockEngine() *MockEngine {
	owner := uint32(2)
	return &MockEngine{state: &game.GameState{
		Players: []game.Player{
			{ID: 1, X: 100, Y: 100, Score: 3},
			{ID: 2, X: 400, Y: 300, HasFlag: true, Score: 7},
		},
		FlagX:       400,
		FlagY:       300,
		FlagOwnerID: &owner,
		Boxes:       []game.WoodBox{{X: 10, Y: 10}},
	}}
}

func (m *MockEngine) Snapshot() *game.GameState { return m.state }

func (m *MockEngine) GetPlayer(id uint32) (game.Player, bool) {
	for _, p := range m.state.Players {
		if p.ID == id {
			return p, true
		}
	}
	return game.Player{}, false
}

func (m *MockEngine) Leaderboard(n int) []ranking.Entry {
	entries := []ranking.Entry{{ID: 2, Score: 7, Rank: 1}, {ID: 1, Score: 3, Rank: 2}}
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

func (m *MockEngine) Stats() game.EngineStats {
	return game.EngineStats{MatchID: "test-match", Tick: 42, Players: len(m.state.Players)}
}

func (m *MockEngine) EventLogStats() map[string]interface{} {
	return map[string]interface{}{"total": 0}
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func testRouterConfig(engine api.EngineInterface) api.RouterConfig {
	return api.RouterConfig{
		Engine: engine,
		Stats:  map[string]api.StatsProvider{"connections": staticStats{"connections": 5}},
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	}
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ============================================================================
// Route Tests
// ============================================================================

// TestGetState verifies /api/state returns the wire snapshot document
func TestGetState(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	resp := get(t, ts, "/api/state")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var state game.GameState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(state.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(state.Players))
	}
	if state.FlagOwnerID == nil || *state.FlagOwnerID != 2 {
		t.Errorf("Expected flag owner 2, got %v", state.FlagOwnerID)
	}
}

// TestGetStats verifies /api/stats merges all providers
func TestGetStats(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	var stats map[string]json.RawMessage
	if err := json.NewDecoder(get(t, ts, "/api/stats").Body).Decode(&stats); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	for _, key := range []string{"match", "event_log", "http_rate_limiter", "connections"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("Expected %q in stats", key)
		}
	}
	if !strings.Contains(string(stats["match"]), "test-match") {
		t.Errorf("Expected match id in stats, got %s", stats["match"])
	}
}

// TestGetLeaderboard verifies limit parsing
func TestGetLeaderboard(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	tests := []struct {
		query      string
		wantStatus int
		wantLen    int
	}{
		{"", http.StatusOK, 2},
		{"?limit=1", http.StatusOK, 1},
		{"?limit=1000", http.StatusOK, 2},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := get(t, ts, "/api/leaderboard"+tt.query)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var entries []ranking.Entry
			if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if len(entries) != tt.wantLen {
				t.Errorf("Expected %d entries, got %d", tt.wantLen, len(entries))
			}
		})
	}
}

// TestGetPlayer verifies lookup, not found and bad ids
func TestGetPlayer(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/players/2", http.StatusOK},
		{"/api/players/99", http.StatusNotFound},
		{"/api/players/-1", http.StatusBadRequest},
		{"/api/players/4294967296", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := get(t, ts, tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}

	var p game.Player
	json.NewDecoder(get(t, ts, "/api/players/2").Body).Decode(&p)
	if !p.HasFlag || p.Score != 7 {
		t.Errorf("Expected flag holder with score 7, got %+v", p)
	}
}

// TestGetMinimap verifies the minimap is served as PNG
func TestGetMinimap(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	resp := get(t, ts, "/api/minimap.png?scale=0.25")
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Expected image/png, got %s", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	if img.Bounds().Dx() != 200 {
		t.Errorf("Expected width 200, got %d", img.Bounds().Dx())
	}

	if resp := get(t, ts, "/api/minimap.png?scale=big"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad scale, got %d", resp.StatusCode)
	}
}

// TestHealth verifies the health route
func TestHealth(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	if resp := get(t, ts, "/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

// TestRateLimitRejects verifies clients past their burst get 429
func TestRateLimitRejects(t *testing.T) {
	cfg := testRouterConfig(NewMockEngine())
	cfg.RateLimitConfig = &api.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, CleanupInterval: time.Hour}
	ts := httptest.NewServer(api.NewRouter(cfg))
	defer ts.Close()

	got429 := false
	for i := 0; i < 5; i++ {
		if get(t, ts, "/health").StatusCode == http.StatusTooManyRequests {
			got429 = true
		}
	}
	if !got429 {
		t.Error("Expected a 429 after exceeding the burst")
	}
}

// TestGetClientIP verifies proxy header handling
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:1", "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := api.GetClientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestIsAllowedOrigin verifies origin matching
func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://arena.example.com", "https://preview-*"}
	tests := map[string]bool{
		"":                          false,
		"http://localhost:3000":     true,
		"http://127.0.0.1:8080":     true,
		"https://arena.example.com": true,
		"https://preview-42.dev":    true,
		"https://evil.example.com":  false,
	}
	for origin, want := range tests {
		if got := api.IsAllowedOrigin(origin, allowed); got != want {
			t.Errorf("%q: expected %v, got %v", origin, want, got)
		}
	}
}

// TestSpectatorLimiter verifies per-IP slots are reserved and released
func TestSpectatorLimiter(t *testing.T) {
	sl := api.NewSpectatorLimiter(2)

	if !sl.Allow("1.1.1.1") || !sl.Allow("1.1.1.1") {
		t.Fatal("Expected first two connections to be allowed")
	}
	if sl.Allow("1.1.1.1") {
		t.Error("Expected third connection to be rejected")
	}
	if !sl.Allow("2.2.2.2") {
		t.Error("Expected other IPs to be unaffected")
	}

	sl.Release("1.1.1.1")
	if sl.Count("1.1.1.1") != 1 {
		t.Errorf("Expected count 1 after release, got %d", sl.Count("1.1.1.1"))
	}
	if !sl.Allow("1.1.1.1") {
		t.Error("Expected a released slot to be reusable")
	}
}

// ============================================================================
// Spectator WebSocket Tests
// ============================================================================

func startSpectatorServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := api.NewServer(testRouterConfig(NewMockEngine()), 10*time.Millisecond)
	hub := srv.Hub()
	go hub.Run()
	hub.StartBroadcastLoop(NewMockEngine(), 10*time.Millisecond)
	t.Cleanup(hub.Stop)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// TestSpectatorJSON verifies spectators receive the snapshot as text frames
func TestSpectatorJSON(t *testing.T) {
	ts := startSpectatorServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("Expected text frame, got %d", msgType)
	}

	var ev struct {
		Event string         `json:"event"`
		Data  game.GameState `json:"data"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if ev.Event != "game:state" || len(ev.Data.Players) != 2 {
		t.Errorf("Unexpected event %+v", ev)
	}
}

// TestSpectatorMsgpack verifies ?format=msgpack yields binary frames with JSON field names
func TestSpectatorMsgpack(t *testing.T) {
	ts := startSpectatorServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?format=msgpack", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("Expected binary frame, got %d", msgType)
	}

	var ev map[string]interface{}
	if err := msgpack.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	data, ok := ev["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data map, got %T", ev["data"])
	}
	if _, ok := data["flag_owner_id"]; !ok {
		t.Errorf("Expected json field names in msgpack payload, got keys %v", data)
	}
}
