// Package api provides the HTTP API for observing a running scenario.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/persistence"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

const (
	maxSpeed     = 1000
	maxStepTicks = 1000
)

// Server serves scenario state over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; decision endpoints need it
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	hub         *Hub
	stepLimiter *RateLimiter
	httpServer  *http.Server
	unsubscribe func()
}

// NewServer creates a server and starts feeding tick reports to stream
// clients.
func NewServer(eng *engine.Engine, db *persistence.DB, runID string, port int, adminKey string) *Server {
	s := &Server{
		Eng:         eng,
		DB:          db,
		RunID:       runID,
		Port:        port,
		AdminKey:    adminKey,
		hub:         NewHub(),
		stepLimiter: NewRateLimiter(60, time.Minute),
	}
	s.unsubscribe = eng.Subscribe(s.hub.Observe)
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/locations", s.handleLocations)
	mux.HandleFunc("/api/v1/inspect", s.handleInspect)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Tick stream (GET, websocket upgrade).
	mux.HandleFunc("/api/v1/stream", s.hub.HandleWebSocket)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/step", s.adminOnly(RateLimitMiddleware(s.stepLimiter, s.handleStep)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server and disconnects stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// UTILSIM_CORS_ORIGINS adds a comma-separated list to the localhost defaults.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("UTILSIM_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no UTILSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
		"run_id":  s.RunID,
		"clients": s.hub.Len(),
	}
	s.Eng.View(func(sc *engine.Scenario) {
		stalled, active := 0, 0
		for _, a := range sc.Agents {
			if a.Stalled {
				stalled++
			}
			if sc.ActiveThisTick(a) {
				active++
			}
		}
		status["name"] = sc.Name
		status["tick"] = sc.Tick()
		status["agents"] = len(sc.Agents)
		status["locations"] = len(sc.Locations)
		status["stalled"] = stalled
		status["active"] = active
		status["custom_actions"] = len(sc.CustomActions())
	})
	writeJSON(w, status)
}

type agentSummary struct {
	Name     string     `json:"name"`
	Position world.Vec2 `json:"position"`
	Radius   float64    `json:"radius"`
	Stalled  bool       `json:"stalled"`
	Active   bool       `json:"active"`
	Behavior string     `json:"behavior,omitempty"`
	Action   string     `json:"action,omitempty"`
	Target   string     `json:"target,omitempty"`
	Score    float64    `json:"score"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	onlyStalled := r.URL.Query().Get("stalled") == "true"

	result := []agentSummary{}
	s.Eng.View(func(sc *engine.Scenario) {
		for _, a := range sc.Agents {
			if onlyStalled && !a.Stalled {
				continue
			}
			sum := agentSummary{
				Name:     a.Name(),
				Position: a.Pos,
				Radius:   a.Size,
				Stalled:  a.Stalled,
				Active:   sc.ActiveThisTick(a),
			}
			if h := sc.Decision(a); h != nil && h.Winner != nil {
				sum.Behavior = h.Winner.Behavior.Name
				sum.Action = h.Winner.Behavior.Action.String()
				if h.Winner.Target != nil {
					sum.Target = h.Winner.Target.Name()
				}
				sum.Score = h.Winner.FinalScore()
			}
			result = append(result, sum)
		}
	})
	writeJSON(w, result)
}

type considerationDetail struct {
	Name       string  `json:"name"`
	Input      string  `json:"input"`
	InputValue float64 `json:"input_value"`
	Score      float64 `json:"score"`
}

type candidateDetail struct {
	Behavior       string                `json:"behavior"`
	Action         string                `json:"action"`
	Target         string                `json:"target,omitempty"`
	Weight         float64               `json:"weight"`
	Momentum       float64               `json:"momentum"`
	Score          float64               `json:"score"`
	Winner         bool                  `json:"winner"`
	Considerations []considerationDetail `json:"considerations"`
}

func candidate(ctx *utility.Context, winner bool) candidateDetail {
	c := candidateDetail{
		Behavior: ctx.Behavior.Name,
		Action:   ctx.Behavior.Action.String(),
		Score:    ctx.FinalScore(),
		Winner:   winner,
	}
	if ctx.Target != nil {
		c.Target = ctx.Target.Name()
	}
	if ctx.Scores != nil {
		c.Weight = ctx.Scores.InitialWeight
		c.Momentum = ctx.Scores.Momentum
		for _, cons := range ctx.Scores.Order {
			sc := ctx.Scores.Considerations[cons]
			input := ""
			if cons.Input != nil {
				input = cons.Input.Name
			}
			c.Considerations = append(c.Considerations, considerationDetail{
				Name:       cons.Name,
				Input:      input,
				InputValue: sc.InputValue,
				Score:      sc.FinalScore,
			})
		}
	}
	return c
}

// handleAgentDetail serves GET /api/v1/agent/{name}: position, properties
// and every candidate scored in the latest tick.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	if name == "" {
		http.Error(w, "missing agent name", http.StatusBadRequest)
		return
	}

	var (
		found  bool
		detail map[string]any
	)
	s.Eng.View(func(sc *engine.Scenario) {
		a := sc.Agent(name)
		if a == nil {
			return
		}
		found = true

		candidates := []candidateDetail{}
		if h := sc.Decision(a); h != nil {
			for _, ctx := range h.Scored {
				candidates = append(candidates, candidate(ctx, ctx == h.Winner))
			}
		}
		behaviors := make([]string, 0, len(a.Behaviors))
		for _, b := range a.Behaviors {
			behaviors = append(behaviors, b.Name)
		}
		detail = map[string]any{
			"name":       a.Name(),
			"position":   a.Pos,
			"radius":     a.Size,
			"stalled":    a.Stalled,
			"active":     sc.ActiveThisTick(a),
			"properties": a.Props,
			"behaviors":  behaviors,
			"candidates": candidates,
			"tick":       sc.Tick(),
		}
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	type locationSummary struct {
		Name       string             `json:"name"`
		Position   world.Vec2         `json:"position"`
		Radius     float64            `json:"radius"`
		Properties map[string]float64 `json:"properties,omitempty"`
	}

	result := []locationSummary{}
	s.Eng.View(func(sc *engine.Scenario) {
		for _, l := range sc.Locations {
			result = append(result, locationSummary{
				Name:       l.Name(),
				Position:   l.Pos,
				Radius:     l.Size,
				Properties: l.Props,
			})
		}
	})
	writeJSON(w, result)
}

// handleInspect serves GET /api/v1/inspect?x=&y=: the member under the point
// and its latest decision.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		http.Error(w, "x and y must be numbers", http.StatusBadRequest)
		return
	}

	var (
		info engine.Inspection
		ok   bool
	)
	s.Eng.View(func(sc *engine.Scenario) {
		info, ok = sc.Inspect(world.Vec2{X: x, Y: y})
	})
	if !ok {
		http.Error(w, "nothing at that point", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

// handleDecisions serves the persisted decision log:
// GET /api/v1/decisions?agent=&limit=
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "decision log disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		rows []persistence.DecisionRow
		err  error
	)
	if agent := r.URL.Query().Get("agent"); agent != "" {
		rows, err = s.DB.AgentDecisions(s.RunID, agent, limit)
	} else {
		rows, err = s.DB.RecentDecisions(s.RunID, limit)
	}
	if err != nil {
		slog.Error("failed to read decisions", "error", err)
		http.Error(w, "failed to read decisions", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.DecisionRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "decision log disabled", http.StatusServiceUnavailable)
		return
	}
	counts, err := s.DB.WinCounts(s.RunID)
	if err != nil {
		slog.Error("failed to count wins", "error", err)
		http.Error(w, "failed to count wins", http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = []persistence.BehaviorCount{}
	}
	writeJSON(w, map[string]any{"run_id": s.RunID, "wins": counts})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > maxSpeed {
			http.Error(w, fmt.Sprintf("speed must be 0-%d", maxSpeed), http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleStep serves POST /api/v1/step {"ticks": n}: advance n ticks now,
// independent of the loop.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := struct {
		Ticks int `json:"ticks"`
	}{Ticks: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if req.Ticks < 1 || req.Ticks > maxStepTicks {
		http.Error(w, fmt.Sprintf("ticks must be 1-%d", maxStepTicks), http.StatusBadRequest)
		return
	}

	var last engine.TickReport
	for i := 0; i < req.Ticks; i++ {
		last = s.Eng.Step()
	}
	slog.Info("manual step", "ticks", req.Ticks, "tick", last.Tick)
	writeJSON(w, map[string]any{"tick": last.Tick, "stepped": req.Ticks})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
