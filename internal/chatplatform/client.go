package chatplatform

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client is the REST client bound to one bot account on one chat
// platform deployment. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
}

// New builds a Client authenticating every request with a Bearer
// token, mirroring MattermostClient::new's default-header setup.
func New(baseURL, botToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: resty.New().
			SetAuthToken(botToken).
			SetHeader("Content-Type", "application/json"),
	}
}

// CreatePost sends a message to a channel, optionally threaded under
// RootID.
func (c *Client) CreatePost(ctx context.Context, post *Post) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(post).
		Post(c.baseURL + "/api/v4/posts")
	if err != nil {
		return fmt.Errorf("發送訊息失敗: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("發送訊息失敗: %s - %s", resp.Status(), resp.String())
	}
	return nil
}

// UpdatePost replaces the message body and props of an existing post.
func (c *Client) UpdatePost(ctx context.Context, postID string, post *Post) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(post).
		Put(c.baseURL + "/api/v4/posts/" + postID)
	if err != nil {
		return fmt.Errorf("更新訊息失敗: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("更新訊息失敗: %s - %s", resp.Status(), resp.String())
	}
	return nil
}

// User is the subset of a platform account the group-buy engine
// needs: the id it stores and the username it renders.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GetUser resolves a user id to its current username, used whenever a
// dialog submission only carries ids (the acting user, a selected
// buyer) and a display name is needed for an Order or AuditEntry.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		Get(c.baseURL + "/api/v4/users/" + userID)
	if err != nil {
		return nil, fmt.Errorf("取得用戶資訊失敗: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("取得用戶資訊失敗: %s - %s", resp.Status(), resp.String())
	}
	return &user, nil
}

// GetSelf resolves the bot's own account, used at startup to learn
// its user id so the WebSocket stream can filter out its own posts.
func (c *Client) GetSelf(ctx context.Context) (*User, error) {
	return c.GetUser(ctx, "me")
}

// OpenDialog triggers an interactive dialog client-side, in response
// to a slash command or button click carrying a trigger id.
func (c *Client) OpenDialog(ctx context.Context, dialog *Dialog) error {
	log.Info().Str("url", dialog.URL).Str("trigger_id", dialog.TriggerID).Msg("正在開啟對話框")

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(dialog).
		Post(c.baseURL + "/api/v4/actions/dialogs/open")
	if err != nil {
		return fmt.Errorf("開啟對話框失敗: %w", err)
	}
	if resp.IsError() {
		log.Error().Str("status", resp.Status()).Str("response", resp.String()).Msg("開啟對話框失敗")
		return fmt.Errorf("開啟對話框失敗: %s - %s", resp.Status(), resp.String())
	}
	return nil
}

// SlashCommandResponse is the JSON body posted back to a slash
// command's response_url (or returned inline from the command
// handler).
type SlashCommandResponse struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text,omitempty"`
	Username     string       `json:"username,omitempty"`
	IconURL      string       `json:"icon_url,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// PostToResponseURL delivers a deferred slash-command response. It
// carries no Bearer token: response_url is a one-shot, pre-signed
// callback the platform hands the command, not a platform API route.
var PostToResponseURL = func(ctx context.Context, responseURL string, body *SlashCommandResponse) error {
	resp, err := resty.New().R().
		SetContext(ctx).
		SetBody(body).
		Post(responseURL)
	if err != nil {
		return fmt.Errorf("發送延遲回應失敗: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("發送延遲回應失敗: %s - %s", resp.Status(), resp.String())
	}
	return nil
}

// SendEphemeralPost posts a message only the given user can see.
func (c *Client) SendEphemeralPost(ctx context.Context, channelID, userID, message string) error {
	payload := map[string]any{
		"user_id": userID,
		"post": map[string]any{
			"channel_id": channelID,
			"message":    message,
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.baseURL + "/api/v4/posts/ephemeral")
	if err != nil {
		return fmt.Errorf("發送臨時訊息失敗: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("發送臨時訊息失敗: %s - %s", resp.Status(), resp.String())
	}
	return nil
}
