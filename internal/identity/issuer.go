package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

const (
	DefaultLinkTTL    = 15 * time.Minute
	DefaultSessionTTL = 30 * 24 * time.Hour
)

var (
	// ErrInvalidToken is returned by Redeem for unknown, used or expired tokens.
	ErrInvalidToken = errors.New("sign-in link is invalid or expired")
	// ErrNotAllowed is returned by SendLink for addresses missing from the
	// allow-list.
	ErrNotAllowed = errors.New("email is not on the allow-list")
)

// TokenStore persists link tokens and sessions and answers allow-list
// lookups. *store.Store implements it.
type TokenStore interface {
	GetAuthorizedEmail(ctx context.Context, email string) (*model.AuthorizedEmail, error)
	CreateLinkToken(ctx context.Context, token, email string, ttl time.Duration) error
	ConsumeLinkToken(ctx context.Context, token string) (string, error)
	CreateSession(ctx context.Context, email string, ttl time.Duration) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Mailer delivers a sign-in link to an address.
type Mailer interface {
	SendLink(ctx context.Context, email, link string) error
}

// LogMailer writes links to the log instead of sending mail. It is the only
// delivery the backend ships with.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendLink(_ context.Context, email, link string) error {
	m.Logger.Info("sign-in link issued", "email", email, "link", link)
	return nil
}

// Issuer is the backend half of passwordless sign-in.
type Issuer struct {
	tokens   TokenStore
	mailer   Mailer
	linkBase string
	logger   *slog.Logger

	LinkTTL    time.Duration
	SessionTTL time.Duration
}

func NewIssuer(tokens TokenStore, mailer Mailer, linkBase string, logger *slog.Logger) *Issuer {
	return &Issuer{
		tokens:     tokens,
		mailer:     mailer,
		linkBase:   linkBase,
		logger:     logger,
		LinkTTL:    DefaultLinkTTL,
		SessionTTL: DefaultSessionTTL,
	}
}

// SendLink issues a single-use token for an allow-listed email and hands
// the link to the mailer.
func (i *Issuer) SendLink(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("send link: invalid email %q", email)
	}
	if _, err := i.tokens.GetAuthorizedEmail(ctx, email); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			i.logger.Warn("sign-in link refused", "email", email)
			return ErrNotAllowed
		}
		return fmt.Errorf("send link: %w", err)
	}
	token := uuid.NewString()
	if err := i.tokens.CreateLinkToken(ctx, token, email, i.LinkTTL); err != nil {
		return fmt.Errorf("send link: %w", err)
	}
	if err := i.mailer.SendLink(ctx, email, i.link(token)); err != nil {
		return fmt.Errorf("send link: %w", err)
	}
	return nil
}

func (i *Issuer) link(token string) string {
	sep := "?"
	if strings.Contains(i.linkBase, "?") {
		sep = "&"
	}
	return i.linkBase + sep + "token=" + url.QueryEscape(token)
}

// Redeem exchanges a link token for a new session.
func (i *Issuer) Redeem(ctx context.Context, token string) (*model.Session, error) {
	email, err := i.tokens.ConsumeLinkToken(ctx, token)
	if err != nil {
		i.logger.Warn("link token rejected", "error", err)
		return nil, ErrInvalidToken
	}
	sess, err := i.tokens.CreateSession(ctx, email, i.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	i.logger.Info("session started", "email", email)
	return sess, nil
}

func (i *Issuer) Lookup(ctx context.Context, sessionID string) (*model.Session, error) {
	return i.tokens.GetSession(ctx, sessionID)
}

func (i *Issuer) Revoke(ctx context.Context, sessionID string) error {
	return i.tokens.DeleteSession(ctx, sessionID)
}
