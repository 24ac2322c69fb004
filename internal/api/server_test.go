package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/entropy"
	"github.com/talgya/utility-sim/internal/persistence"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

const testKey = "test-admin-key"

// newTestServer builds a scenario with a walker heading for a well and a
// greeter that talks to the walker.
func newTestServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	s := engine.NewScenario("api", entropy.NewSeeded(1))

	walk := utility.NewBehavior("walk", utility.ActionMoveToTarget)
	walk.CanTargetOthers = true
	water := utility.NewConsideration("water")
	water.SetInput(utility.NewInputAxis("Water", utility.OriginPropertyOfTarget, &utility.Record{Name: "water"}))
	walk.Considerations = []*utility.Consideration{water}

	greet := utility.NewBehavior("greet", utility.ActionTalk)
	greet.Payload = "hi"
	greet.CanTargetOthers = true

	walker := agents.NewAgent("walker", world.Vec2{}, 0.5)
	walker.Behaviors = []*utility.Behavior{walk}
	greeter := agents.NewAgent("greeter", world.Vec2{Y: 3}, 0.5)
	greeter.Behaviors = []*utility.Behavior{greet}
	well := agents.NewLocation("well", world.Vec2{X: 10}, 1)
	well.SetProperty("water", 1)
	s.AddAgent(walker, greeter)
	s.AddLocation(well)

	eng := engine.NewEngine(s)

	var db *persistence.DB
	runID := ""
	if withDB {
		var err error
		db, err = persistence.Open(filepath.Join(t.TempDir(), "api.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		runID, err = db.StartRun(s.Name, 1)
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		eng.Subscribe(db.Recorder(runID))
	}

	srv := NewServer(eng, db, runID, 0, testKey)
	t.Cleanup(func() { srv.hub.Close() })
	return srv
}

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, false)
	srv.Eng.Step()

	var status map[string]any
	decode(t, do(t, srv.Handler(), http.MethodGet, "/api/v1/status", "", ""), &status)
	if status["name"] != "api" || status["tick"] != float64(1) {
		t.Fatalf("unexpected status %v", status)
	}
	if status["agents"] != float64(2) || status["active"] != float64(2) || status["custom_actions"] != float64(1) {
		t.Fatalf("unexpected status %v", status)
	}
}

func TestAgentsAndDetail(t *testing.T) {
	srv := newTestServer(t, false)
	srv.Eng.Step()
	h := srv.Handler()

	var list []agentSummary
	decode(t, do(t, h, http.MethodGet, "/api/v1/agents", "", ""), &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
	if list[0].Name != "walker" || list[0].Target != "well" || list[0].Position.X != 1 {
		t.Fatalf("unexpected walker summary %+v", list[0])
	}
	if list[1].Action != "talk" || list[1].Target != "walker" {
		t.Fatalf("unexpected greeter summary %+v", list[1])
	}

	var detail struct {
		Name       string            `json:"name"`
		Candidates []candidateDetail `json:"candidates"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/agent/walker", "", ""), &detail)
	if len(detail.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", detail.Candidates)
	}
	winners := 0
	for _, c := range detail.Candidates {
		if c.Winner {
			winners++
			if c.Target != "well" || len(c.Considerations) != 1 || c.Considerations[0].Input != "Water" {
				t.Fatalf("unexpected winner %+v", c)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/agent/nobody", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInspect(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	var info engine.Inspection
	decode(t, do(t, h, http.MethodGet, "/api/v1/inspect?x=10.5&y=0", "", ""), &info)
	if info.Kind != "location" || info.Name != "well" {
		t.Fatalf("unexpected inspection %+v", info)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/inspect?x=50&y=50", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/inspect?x=a", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 2}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 2}`, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": -1}`, testKey); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative speed, got %d", rec.Code)
	}

	var resp map[string]float64
	decode(t, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 2}`, testKey), &resp)
	if resp["speed"] != 2 || srv.Eng.Speed() != 2 {
		t.Fatalf("speed not applied: %v", resp)
	}

	// GET passes through without a token.
	decode(t, do(t, h, http.MethodGet, "/api/v1/speed", "", ""), &resp)

	srv.AdminKey = ""
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 1}`, testKey); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with admin disabled, got %d", rec.Code)
	}
}

func TestStep(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	var resp map[string]float64
	decode(t, do(t, h, http.MethodPost, "/api/v1/step", `{"ticks": 3}`, testKey), &resp)
	if resp["tick"] != 3 {
		t.Fatalf("expected tick 3, got %v", resp)
	}
	decode(t, do(t, h, http.MethodPost, "/api/v1/step", "", testKey), &resp)
	if resp["tick"] != 4 {
		t.Fatalf("expected tick 4, got %v", resp)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/step", `{"ticks": 0}`, testKey); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/step", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDecisionsAndStats(t *testing.T) {
	srv := newTestServer(t, true)
	h := srv.Handler()
	srv.Eng.Step()
	srv.Eng.Step()

	var rows []persistence.DecisionRow
	decode(t, do(t, h, http.MethodGet, "/api/v1/decisions?limit=10", "", ""), &rows)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/decisions?agent=greeter", "", ""), &rows)
	if len(rows) != 2 || rows[0].Behavior != "greet" {
		t.Fatalf("unexpected greeter rows %+v", rows)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/decisions?limit=0", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var stats struct {
		Wins []persistence.BehaviorCount `json:"wins"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/stats", "", ""), &stats)
	if len(stats.Wins) != 2 {
		t.Fatalf("unexpected wins %+v", stats.Wins)
	}
}

func TestDecisionsWithoutDB(t *testing.T) {
	srv := newTestServer(t, false)
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/decisions", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStreamDeliversTicks(t *testing.T) {
	srv := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Eng.Step()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg TickMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Tick != 1 || len(msg.Decisions) != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Decisions[0].Agent != "walker" || msg.Decisions[0].Target != "well" {
		t.Fatalf("unexpected decision %+v", msg.Decisions[0])
	}
	if len(msg.CustomActions) != 1 || msg.CustomActions[0].Payload != "hi" {
		t.Fatalf("unexpected custom actions %+v", msg.CustomActions)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other IPs have their own bucket")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("window reset should allow again")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := clientIP(r); got != "1.2.3.4" {
		t.Fatalf("clientIP = %q", got)
	}
}
