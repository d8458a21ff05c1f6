package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

// Client talks to the backend's /auth/v1 routes. It shares its Transport
// with the gateway client so a sign-in authorizes data requests too.
type Client struct {
	t      *gateway.Transport
	file   string
	logger *slog.Logger
	hub    hub

	mu      sync.Mutex
	current *model.Session
	loaded  bool
}

var _ Provider = (*Client)(nil)

// NewClient creates a client. sessionFile may be empty to keep the session
// in memory only.
func NewClient(t *gateway.Transport, sessionFile string, logger *slog.Logger) *Client {
	return &Client{t: t, file: sessionFile, logger: logger}
}

// CurrentSession restores a persisted session on first call and checks it
// with the backend. A rejected session is discarded.
func (c *Client) CurrentSession(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.loaded = true
		sess, err := c.readFile()
		if err != nil {
			c.logger.Warn("ignoring unreadable session file", "path", c.file, "error", err)
		}
		c.current = sess
	}
	if c.current == nil {
		return nil, nil
	}

	c.t.SetToken(c.current.ID)
	var sess model.Session
	err := c.t.Do(ctx, http.MethodGet, "/auth/v1/session", nil, nil, &sess)
	if errors.Is(err, gateway.ErrUnauthorized) || errors.Is(err, gateway.ErrNotFound) {
		c.logger.Info("stored session rejected by backend", "email", c.current.Email)
		c.clearLocked()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	c.current = &sess
	return &sess, nil
}

func (c *Client) SendLink(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if err := c.t.Do(ctx, http.MethodPost, "/auth/v1/otp", nil, body, nil); err != nil {
		return fmt.Errorf("send link: %w", err)
	}
	return nil
}

// Verify redeems a link token and emits SignedIn.
func (c *Client) Verify(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	body := map[string]string{"token": token}
	if err := c.t.Do(ctx, http.MethodPost, "/auth/v1/verify", nil, body, &sess); err != nil {
		return nil, fmt.Errorf("verify link: %w", err)
	}

	c.mu.Lock()
	c.loaded = true
	c.current = &sess
	c.t.SetToken(sess.ID)
	if err := c.writeFile(&sess); err != nil {
		c.logger.Warn("could not persist session", "path", c.file, "error", err)
	}
	c.mu.Unlock()

	c.hub.publish(Event{Kind: SignedIn, Session: &sess})
	return &sess, nil
}

// SignOut revokes the session on the backend when possible and always
// clears it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	had := c.current != nil
	var err error
	if had {
		if rerr := c.t.Do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil); rerr != nil {
			c.logger.Warn("backend logout failed", "error", rerr)
			err = fmt.Errorf("sign out: %w", rerr)
		}
	}
	c.clearLocked()
	c.mu.Unlock()

	if had {
		c.hub.publish(Event{Kind: SignedOut})
	}
	return err
}

func (c *Client) Subscribe() (<-chan Event, func()) {
	return c.hub.subscribe()
}

func (c *Client) clearLocked() {
	c.current = nil
	c.t.SetToken("")
	if c.file != "" {
		if err := os.Remove(c.file); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("could not remove session file", "path", c.file, "error", err)
		}
	}
}

func (c *Client) readFile() (*model.Session, error) {
	if c.file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.file)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, nil
	}
	return &sess, nil
}

func (c *Client) writeFile(sess *model.Session) error {
	if c.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return os.WriteFile(c.file, data, 0o600)
}
