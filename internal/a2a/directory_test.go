package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/basket/a2a-agent/internal/bus"
)

func TestDirectoryClientRegisterSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/register" {
			t.Errorf("request path = %q, want /agents/register", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode registration body: %v", err)
		}
		for _, key := range []string{"agent_id", "name", "capabilities", "endpoint", "skills", "auth"} {
			if _, ok := body[key]; !ok {
				t.Errorf("registration body missing flat field %q", key)
			}
		}
		if _, ok := body["identity"]; ok {
			t.Errorf("registration body should be flat, not nested under identity")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "secret", 0, bus.New())
	card := Card{Identity: Identity{AgentID: "a1"}, Endpoint: "http://localhost:9000", Auth: AuthSpec{Type: "bearer"}}
	status, err := c.Register(context.Background(), card)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
}

func TestDirectoryClientRegisterConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", 0, bus.New())
	status, err := c.Register(context.Background(), Card{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestDirectoryClientRequestTaskSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/request" {
			t.Errorf("request path = %q, want /agents/request", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["agent_id"] != "peer1" {
			t.Errorf("agent_id = %v, want peer1", body["agent_id"])
		}
		json.NewEncoder(w).Encode(TaskUpdateFrame{
			Type: FrameTypeTaskUpdate, TaskID: "t1", Status: string(TaskCompleted),
			Result: &ResultEnvelope{Response: "ok"},
		})
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", 0, bus.New())
	update, err := c.RequestTask(context.Background(), "peer1", "echo", map[string]interface{}{"text": "hi"})
	if err != nil {
		t.Fatalf("RequestTask: %v", err)
	}
	if update.Status != string(TaskCompleted) {
		t.Errorf("Status = %q, want completed", update.Status)
	}
}

func TestDirectoryClientRequestTaskUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", 0, bus.New())
	_, err := c.RequestTask(context.Background(), "peer1", "echo", nil)
	if err == nil {
		t.Fatal("RequestTask returned nil error for 401, want KindAuth error")
	}
	if KindOf(err) != KindAuth {
		t.Errorf("KindOf(err) = %q, want auth", KindOf(err))
	}
}

func TestDirectoryClientRequestTaskServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", 0, bus.New())
	_, err := c.RequestTask(context.Background(), "peer1", "echo", nil)
	if err == nil {
		t.Fatal("RequestTask returned nil error for 502, want KindTransient error")
	}
	if KindOf(err) != KindTransient {
		t.Errorf("KindOf(err) = %q, want transient (5xx is retryable, not a policy rejection)", KindOf(err))
	}
}
