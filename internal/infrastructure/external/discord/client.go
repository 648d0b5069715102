// Package discord implements the Discord REST client and the role/notification
// collaborators built on it. Calls go through a circuit breaker and bounded
// retries; rate-limit responses honor Discord's retry_after hint.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/pkg/circuitbreaker"
	"github.com/ctf-hub/ctf-community-hub/pkg/retry"
)

const defaultBaseURL = "https://discord.com/api/v10"

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Status     int
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error: status=%d code=%d: %s", e.Status, e.Code, e.Message)
}

// ClientConfig contains configuration for the Discord client.
type ClientConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger

	Retrier *retry.Retrier
	Breaker *circuitbreaker.CircuitBreaker
}

// NewClientConfig builds a client config from application configuration.
func NewClientConfig(cfg config.DiscordConfig, logger *slog.Logger) ClientConfig {
	breaker := circuitbreaker.New(
		"discord-api",
		circuitbreaker.WithFailureThreshold(cfg.CircuitBreakerThreshold),
		circuitbreaker.WithTimeout(cfg.CircuitBreakerTimeout),
		circuitbreaker.WithMaxHalfOpenRequests(cfg.CircuitBreakerHalfOpenMax),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
	)
	return ClientConfig{
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
		Retrier: retry.New(
			retry.WithMaxAttempts(cfg.MaxRetries),
			retry.WithInitialDelay(cfg.RetryBaseDelay),
			retry.WithMaxDelay(cfg.RetryMaxDelay),
			retry.WithJitter(0.2),
		),
		Breaker: breaker,
	}
}

// Client is the Discord REST API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Discord client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retry.DiscordRetrier()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger.With("component", "discord_client"),
	}
}

// Message is the subset of a Discord message the hub cares about.
type Message struct {
	ID string `json:"id"`
}

// Role is a guild role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessagePayload is an outgoing message.
type MessagePayload struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one embed field.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Component is an action row or button.
type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Component and button style constants per the Discord API.
const (
	ComponentActionRow = 1
	ComponentButton    = 2

	ButtonStyleSuccess = 3
	ButtonStyleDanger  = 4
)

// CreateMessage posts a message and returns it.
func (c *Client) CreateMessage(ctx context.Context, channelID int64, payload MessagePayload) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	if err := c.call(ctx, http.MethodPost, path, payload, &msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &msg, nil
}

// AddMemberRole grants a guild role to a member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID int64) error {
	path := fmt.Sprintf("/guilds/%d/members/%d/roles/%d", guildID, userID, roleID)
	if err := c.call(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("add member role: %w", err)
	}
	return nil
}

// RemoveMemberRole revokes a guild role from a member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID int64) error {
	path := fmt.Sprintf("/guilds/%d/members/%d/roles/%d", guildID, userID, roleID)
	if err := c.call(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove member role: %w", err)
	}
	return nil
}

// GuildRoles lists all roles in a guild.
func (c *Client) GuildRoles(ctx context.Context, guildID int64) ([]Role, error) {
	var roles []Role
	path := fmt.Sprintf("/guilds/%d/roles", guildID)
	if err := c.call(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return nil, fmt.Errorf("guild roles: %w", err)
	}
	return roles, nil
}

// call runs one API request through the breaker and retrier.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	op := func(ctx context.Context) error {
		err := c.doRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			// Honor the rate-limit hint before the retrier's own backoff.
			if apiErr.Status == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
				select {
				case <-ctx.Done():
					return retry.Permanent(ctx.Err())
				case <-time.After(time.Duration(apiErr.RetryAfter * float64(time.Second))):
				}
				return retry.Retryable(err)
			}
			if apiErr.Status >= 500 {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		// Transport-level failure.
		return retry.Retryable(err)
	}

	if c.config.Breaker != nil {
		return c.config.Retrier.Do(ctx, func(ctx context.Context) error {
			err := c.config.Breaker.Execute(ctx, op)
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				return retry.Permanent(err)
			}
			return err
		})
	}
	return c.config.Retrier.Do(ctx, op)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}
