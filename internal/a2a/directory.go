package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/basket/a2a-agent/internal/bus"
)

// DirectoryClient talks to the directory's HTTP surface: registering this
// agent's Card and requesting delegated task execution on another agent
// discovered through it.
type DirectoryClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	bus        publisher
}

// NewDirectoryClient builds a client against the directory's HTTP base URL.
func NewDirectoryClient(baseURL, authToken string, timeout time.Duration, b publisher) *DirectoryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DirectoryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		bus:        b,
	}
}

// Register publishes this agent's descriptor to the directory. Returns
// the HTTP status so Manager.Register can branch on 2xx vs 409 vs
// transient failure.
func (c *DirectoryClient) Register(ctx context.Context, card Card) (status int, err error) {
	body, err := json.Marshal(card.ToDescriptor())
	if err != nil {
		return 0, Wrap(KindValidation, "marshal agent descriptor", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/register", bytes.NewReader(body))
	if err != nil {
		return 0, Wrap(KindTransport, "build registration request", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, Wrap(KindTransient, "registration request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// RequestTask asks the directory to dispatch skill/input to the named
// peer agent, for cross-agent delegation. A directory rejection (4xx
// other than 429) is reported as KindAuth - these are policy decisions
// the caller should not blindly retry.
func (c *DirectoryClient) RequestTask(ctx context.Context, peerAgentID, skill string, input map[string]interface{}) (TaskUpdateFrame, error) {
	taskFrame := NewTaskFrame(skill, input)
	body, err := json.Marshal(struct {
		AgentID string    `json:"agent_id"`
		Task    TaskFrame `json:"task"`
	}{AgentID: peerAgentID, Task: taskFrame})
	if err != nil {
		return TaskUpdateFrame{}, Wrap(KindValidation, "marshal delegated task", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/request", bytes.NewReader(body))
	if err != nil {
		return TaskUpdateFrame{}, Wrap(KindTransport, "build delegated task request", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	c.bus.Publish(bus.TopicDirectoryRequestSent, bus.SkillExecutionEvent{
		TaskID: taskFrame.TaskID, SkillName: skill, Status: "running",
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TaskUpdateFrame{}, Wrap(KindTransient, "delegated task request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.bus.Publish(bus.TopicDirectoryRequestRejected, bus.SkillExecutionEvent{
			TaskID: taskFrame.TaskID, SkillName: skill, Status: "failed", Error: "unauthorized",
		})
		return TaskUpdateFrame{}, NewError(KindAuth, "directory rejected delegated task request")
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		data, _ := io.ReadAll(resp.Body)
		c.bus.Publish(bus.TopicDirectoryRequestRejected, bus.SkillExecutionEvent{
			TaskID: taskFrame.TaskID, SkillName: skill, Status: "failed", Error: string(data),
		})
		return TaskUpdateFrame{}, NewError(KindAuth, fmt.Sprintf("directory rejected delegated task: %d %s", resp.StatusCode, string(data)))
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return TaskUpdateFrame{}, NewError(KindTransient, fmt.Sprintf("directory temporarily unavailable: %d", resp.StatusCode))
	}

	var update TaskUpdateFrame
	if err := json.NewDecoder(resp.Body).Decode(&update); err != nil {
		return TaskUpdateFrame{}, Wrap(KindProtocol, "decode delegated task response", err)
	}
	return update, nil
}

func (c *DirectoryClient) setAuth(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.authToken))
	}
}
