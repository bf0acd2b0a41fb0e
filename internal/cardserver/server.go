// Package cardserver exposes an agent's public HTTP surface: its Agent
// Card at the well-known discovery path, and health/metrics endpoints for
// operators. It carries no task logic of its own - the a2a package owns
// the websocket side of the protocol.
package cardserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/basket/a2a-agent/internal/a2a"
)

// Server serves an agent's discovery and operational endpoints.
type Server struct {
	runtime   *a2a.Runtime
	cardFn    func() a2a.Card
	authToken string
	startedAt time.Time
}

// New builds a Server. cardFn is called fresh on every request so a
// skill registered after startup is reflected immediately.
func New(runtime *a2a.Runtime, authToken string, cardFn func() a2a.Card) *Server {
	return &Server{runtime: runtime, cardFn: cardFn, authToken: authToken, startedAt: time.Now()}
}

// Handler builds the routed mux for this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/tasks/", s.auth(http.HandlerFunc(s.handleTaskStatus)))
	return mux
}

// handleAgentCard serves this agent's Card, unauthenticated - discovery
// must work before a peer has a token for this agent.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	json.NewEncoder(w).Encode(s.cardFn())
}

// handleHealthz reports process liveness plus connection/registration
// state, useful for an operator dashboard or a readiness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             "ok",
		"uptime_seconds":     time.Since(s.startedAt).Seconds(),
		"registration_state": string(s.runtime.Manager.RegistrationState()),
		"connection_state":   string(s.runtime.Manager.ConnectionState()),
	})
}

// handleTaskStatus serves GET /tasks/{task_id}, the HTTP mirror of
// get_skill_status for callers that aren't holding the websocket open,
// and DELETE /tasks/{task_id} to cancel an in-flight task.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if taskID == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodDelete {
		if !s.runtime.Registry.CancelTask(taskID) {
			http.Error(w, "task not found or already finished", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"task_id": taskID, "status": string(a2a.TaskCancelled)})
		return
	}
	rec, ok := s.runtime.Registry.TaskStatus(taskID)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	out := map[string]interface{}{
		"task_id":        rec.TaskID,
		"skill":          rec.SkillName,
		"status":         string(rec.Status),
		"start_time":     rec.StartTime.UTC().Format(time.RFC3339),
		"execution_time": rec.ExecutionTime.Seconds(),
	}
	if !rec.EndTime.IsZero() {
		out["end_time"] = rec.EndTime.UTC().Format(time.RFC3339)
	}
	if rec.Result != nil {
		out["result"] = rec.Result
	}
	if rec.Err != nil {
		out["error"] = rec.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// auth enforces a constant-time bearer-token check on non-discovery
// endpoints.
func (s *Server) auth(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, `{"error":"invalid or missing token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
