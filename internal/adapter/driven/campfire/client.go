// Package campfire implements the Notifier port by speaking into a Campfire
// chat room.
package campfire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Client)(nil)

var errIncompleteSettings = errors.New("campfire settings are incomplete")

// defaultURLTemplate is expanded with the account subdomain.
const defaultURLTemplate = "https://%s.campfirenow.com"

// Client posts text messages to Campfire rooms. It holds no per-room state;
// every call carries its own credentials.
type Client struct {
	http        *http.Client
	urlTemplate string
}

// NewClient creates a Campfire client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:        &http.Client{Timeout: timeout},
		urlTemplate: defaultURLTemplate,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and an
// account URL template containing one %s for the subdomain. Tests pass a
// template that ignores the subdomain and targets an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, urlTemplate string) *Client {
	return &Client{
		http:        httpClient,
		urlTemplate: urlTemplate,
	}
}

type speakRequest struct {
	Message speakMessage `json:"message"`
}

type speakMessage struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

// Notify posts message to the configured room as a TextMessage.
func (c *Client) Notify(ctx context.Context, chat model.ChatSettings, message string) error {
	if !chat.Complete() {
		return errIncompleteSettings
	}

	endpoint := c.roomURL(chat) + "/speak.json"

	body, err := json.Marshal(speakRequest{Message: speakMessage{Type: "TextMessage", Body: message}})
	if err != nil {
		return fmt.Errorf("marshal speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create speak request: %w", err)
	}
	req.SetBasicAuth(chat.Token, "X")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("speak in room %s: %w", chat.RoomID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("speak in room %s: status %d", chat.RoomID, resp.StatusCode)
	}

	return nil
}

func (c *Client) roomURL(chat model.ChatSettings) string {
	base := fmt.Sprintf(c.urlTemplate, url.PathEscape(chat.Subdomain))
	return strings.TrimRight(base, "/") + "/room/" + url.PathEscape(chat.RoomID)
}
