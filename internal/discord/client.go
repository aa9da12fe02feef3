package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the versioned REST endpoint
const DefaultBaseURL = "https://discord.com/api/v10"

// archivedPageLimit caps archived-thread pagination
const archivedPageLimit = 10

// APIError is a non-success response from the Discord API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ErrNotReady is returned when the search index is still being built
var ErrNotReady = errors.New("discord: search index not ready")

// ErrPartialListing accompanies the pages fetched before a paginated listing failed
var ErrPartialListing = errors.New("discord: listing incomplete")

// ClientConfig configures a Client
type ClientConfig struct {
	Token   string
	GuildID string
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal Discord REST client covering the lookups the
// dashboard needs. Every call is attempted once.
type Client struct {
	baseURL    string
	guildID    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient creates a new Discord API client authenticated as a bot
func NewClient(cfg ClientConfig, log logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bot",
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		guildID: cfg.GuildID,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
}

// get performs an authenticated GET and decodes a 200 response into target
func (c *Client) get(ctx context.Context, path string, query url.Values, target interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/skridlevsky/commitboard, 1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return ErrNotReady
	case resp.StatusCode == http.StatusTooManyRequests:
		c.log.WithFields(logrus.Fields{
			"path":        path,
			"retry_after": resp.Header.Get("Retry-After"),
			"bucket":      resp.Header.Get("X-RateLimit-Bucket"),
		}).Warn("Discord rate limit hit")
		return readError(resp)
	case resp.StatusCode != http.StatusOK:
		return readError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

// GetUser fetches a user by id
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetChannel fetches a channel or thread by id
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	if err := c.get(ctx, "/channels/"+url.PathEscape(channelID), nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetRole fetches a role of the configured guild
func (c *Client) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	path := fmt.Sprintf("/guilds/%s/roles/%s", url.PathEscape(c.guildID), url.PathEscape(roleID))
	if err := c.get(ctx, path, nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetMessage fetches a single message
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	if err := c.get(ctx, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetActiveThreads lists every active thread in the guild
func (c *Client) GetActiveThreads(ctx context.Context) ([]Channel, error) {
	var list threadList
	path := fmt.Sprintf("/guilds/%s/threads/active", url.PathEscape(c.guildID))
	if err := c.get(ctx, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Threads, nil
}

// GetArchivedThreads lists public archived threads of a channel, following
// the before cursor until the API reports no more pages. A failure after the
// first page returns the threads fetched so far with ErrPartialListing.
func (c *Client) GetArchivedThreads(ctx context.Context, channelID string) ([]Channel, error) {
	var all []Channel
	path := fmt.Sprintf("/channels/%s/threads/archived/public", url.PathEscape(channelID))
	query := url.Values{"limit": {"100"}}

	for page := 0; page < archivedPageLimit; page++ {
		var list threadList
		if err := c.get(ctx, path, query, &list); err != nil {
			if len(all) > 0 {
				c.log.WithError(err).WithField("channel_id", channelID).Warn("Archived thread pagination stopped early")
				return all, errors.Join(ErrPartialListing, err)
			}
			return nil, err
		}
		all = append(all, list.Threads...)

		if !list.HasMore || len(list.Threads) == 0 {
			break
		}
		last := list.Threads[len(list.Threads)-1]
		if last.ThreadMetadata == nil {
			break
		}
		query.Set("before", last.ThreadMetadata.ArchiveTimestamp.Format(time.RFC3339))
	}

	return all, nil
}

// SearchMessageCount returns the number of guild messages the search index
// holds, optionally restricted to one channel.
func (c *Client) SearchMessageCount(ctx context.Context, channelID string) (int, error) {
	var result searchResult
	path := fmt.Sprintf("/guilds/%s/messages/search", url.PathEscape(c.guildID))
	query := url.Values{}
	if channelID != "" {
		query.Set("channel_id", channelID)
	}
	if err := c.get(ctx, path, query, &result); err != nil {
		return 0, err
	}
	return result.TotalResults, nil
}
