package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/pkg/protocol"
)

const slackAPIBaseURL = "https://slack.com/api"

var errMissingBotToken = errors.New("slack provider config is missing bot_token")

// subscriptionLifecycle verifies workspace access for Slack-backed triggers.
// Slack event subscriptions are configured once at the app level, so Create
// does not register anything per trigger; it authenticates the configured
// bot token and records the workspace so a misconfigured provider fails at
// sync time instead of silently never firing.
type subscriptionLifecycle struct {
	client  *http.Client
	baseURL string
}

type authTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
	UserID string `json:"user_id"`
}

func (l *subscriptionLifecycle) Create(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	auth, err := l.authTest(ctx, req.Secrets["bot_token"])
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"team_id":       auth.TeamID,
		"team":          auth.Team,
		"bot_user_id":   auth.UserID,
		"registered_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (l *subscriptionLifecycle) Destroy(_ context.Context, _ protocol.LifecycleRequest) error {
	// Nothing to tear down: the app-level event subscription outlives any
	// single trigger.
	return nil
}

func (l *subscriptionLifecycle) Refresh(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	return l.Create(ctx, req)
}

func (l *subscriptionLifecycle) authTest(ctx context.Context, token string) (*authTestResponse, error) {
	if token == "" {
		return nil, errMissingBotToken
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/auth.test", nil)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("slack auth test request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var auth authTestResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("slack auth test returned invalid response: %w", err)
	}

	if !auth.OK {
		return nil, fmt.Errorf("slack auth test rejected token: %s", auth.Error)
	}

	return &auth, nil
}
