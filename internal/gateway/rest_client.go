package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RESTClient is a minimal delivery-side client for the chat platform's HTTP
// API: enough to open a DM channel, post a message with components, and look
// up a user. The interaction-receiving side of the platform integration is
// not part of this repository.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type RESTClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewRESTClient(opts RESTClientOptions) *RESTClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{baseURL: baseURL, token: opts.Token, httpClient: httpClient}
}

type wireButton struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label,omitempty"`
	Emoji    any    `json:"emoji,omitempty"`
	CustomID string `json:"custom_id"`
	Disabled bool   `json:"disabled,omitempty"`
}

type wireEmbed struct {
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Author      *struct {
		Name    string `json:"name,omitempty"`
		IconURL string `json:"icon_url,omitempty"`
	} `json:"author,omitempty"`
	Footer *struct {
		Text    string `json:"text,omitempty"`
		IconURL string `json:"icon_url,omitempty"`
	} `json:"footer,omitempty"`
}

func encodeMessage(msg Message) map[string]any {
	payload := map[string]any{}
	if msg.Content != "" {
		payload["content"] = msg.Content
	}
	if msg.Embed != nil {
		embed := wireEmbed{Description: msg.Embed.Description, Color: msg.Embed.Color}
		if !msg.Embed.Timestamp.IsZero() {
			embed.Timestamp = msg.Embed.Timestamp.UTC().Format(time.RFC3339)
		}
		if msg.Embed.Author.Name != "" {
			embed.Author = &struct {
				Name    string `json:"name,omitempty"`
				IconURL string `json:"icon_url,omitempty"`
			}{msg.Embed.Author.Name, msg.Embed.Author.IconURL}
		}
		if msg.Embed.Footer.Text != "" {
			embed.Footer = &struct {
				Text    string `json:"text,omitempty"`
				IconURL string `json:"icon_url,omitempty"`
			}{msg.Embed.Footer.Text, msg.Embed.Footer.IconURL}
		}
		payload["embeds"] = []wireEmbed{embed}
	}
	if len(msg.Buttons) > 0 {
		buttons := make([]wireButton, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			wire := wireButton{Type: 2, Style: 2, Label: b.Label, CustomID: b.CustomID, Disabled: b.Disabled}
			if b.Emoji != "" {
				wire.Emoji = map[string]string{"name": b.Emoji}
			}
			buttons = append(buttons, wire)
		}
		payload["components"] = []map[string]any{{"type": 1, "components": buttons}}
	}
	return payload
}

// SendDirectMessage opens (or reuses) the recipient's DM channel and posts
// the message into it.
func (c *RESTClient) SendDirectMessage(ctx context.Context, userID int64, msg Message) error {
	var channel struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels", map[string]any{"recipient_id": strconv.FormatInt(userID, 10)}, &channel)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channel.ID+"/messages", encodeMessage(msg), nil); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (c *RESTClient) FetchUser(ctx context.Context, userID int64) (User, error) {
	var wire struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		GlobalName  string `json:"global_name"`
		Avatar      string `json:"avatar"`
		AccentColor int    `json:"accent_color"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(userID, 10), nil, &wire); err != nil {
		return User{}, fmt.Errorf("fetch user %d: %w", userID, err)
	}
	name := wire.GlobalName
	if name == "" {
		name = wire.Username
	}
	user := User{ID: userID, DisplayName: name, AccentColor: wire.AccentColor}
	if wire.Avatar != "" {
		user.AvatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", wire.ID, wire.Avatar)
	}
	return user, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
