package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flowhook/flowhook/pkg/protocol"
)

const githubAPIBaseURL = "https://api.github.com"

var (
	errMissingToken      = errors.New("github provider config is missing token")
	errMissingRepository = errors.New("github trigger input is missing repository")
)

// hookLifecycle manages per-repository webhooks through the GitHub REST
// API. Create registers a hook delivering to the trigger's webhook URL and
// stores the hook ID as trigger state for the later teardown.
type hookLifecycle struct {
	client  *http.Client
	baseURL string
}

type hookResponse struct {
	ID int64 `json:"id"`
}

func hookEvents(triggerType string) []string {
	switch triggerType {
	case TriggerTypeOnIssue:
		return []string{"issues"}
	case TriggerTypeOnPullRequest:
		return []string{"pull_request"}
	case TriggerTypeOnPush:
		return []string{"push"}
	default:
		return []string{"*"}
	}
}

func (l *hookLifecycle) Create(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	token := req.Secrets["token"]
	if token == "" {
		return nil, errMissingToken
	}

	repository, _ := req.Input["repository"].(string)
	if repository == "" {
		return nil, errMissingRepository
	}

	payload := map[string]any{
		"name":   "web",
		"active": true,
		"events": hookEvents(req.TriggerType),
		"config": map[string]any{
			"url":          req.WebhookURL,
			"content_type": "json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/hooks", l.baseURL, repository)

	resp, err := l.do(ctx, http.MethodPost, url, token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("github hook creation for %s returned status %d", repository, resp.StatusCode)
	}

	var hook hookResponse
	if err := json.NewDecoder(resp.Body).Decode(&hook); err != nil {
		return nil, fmt.Errorf("github hook creation returned invalid response: %w", err)
	}

	return map[string]any{
		"hook_id":    hook.ID,
		"repository": repository,
	}, nil
}

func (l *hookLifecycle) Destroy(ctx context.Context, req protocol.LifecycleRequest) error {
	token := req.Secrets["token"]
	if token == "" {
		return errMissingToken
	}

	repository, hookID, err := hookRef(req.State)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/repos/%s/hooks/%d", l.baseURL, repository, hookID)

	resp, err := l.do(ctx, http.MethodDelete, url, token, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A hook already deleted on the GitHub side is a successful teardown.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("github hook deletion for %s returned status %d", repository, resp.StatusCode)
	}

	return nil
}

func (l *hookLifecycle) Refresh(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	token := req.Secrets["token"]
	if token == "" {
		return nil, errMissingToken
	}

	repository, hookID, err := hookRef(req.State)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/hooks/%d", l.baseURL, repository, hookID)

	resp, err := l.do(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// The hook vanished externally; recreate it.
		return l.Create(ctx, req)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github hook lookup for %s returned status %d", repository, resp.StatusCode)
	}

	return req.State, nil
}

func (l *hookLifecycle) do(ctx context.Context, method, url, token string, body io.Reader) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/vnd.github+json")

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("github api request failed: %w", err)
	}

	return resp, nil
}

func hookRef(state map[string]any) (string, int64, error) {
	repository, _ := state["repository"].(string)
	if repository == "" {
		return "", 0, errors.New("trigger state is missing repository")
	}

	switch id := state["hook_id"].(type) {
	case int64:
		return repository, id, nil
	case float64:
		return repository, int64(id), nil
	default:
		return "", 0, errors.New("trigger state is missing hook_id")
	}
}
