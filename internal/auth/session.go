package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/model"
)

// Session binds the signed-in user for the life of the process. It is
// created once at startup, kept current from the identity event stream and
// passed explicitly to whatever needs the user.
type Session struct {
	provider identity.Provider
	gw       gateway.Gateway
	logger   *slog.Logger

	mu   sync.RWMutex
	user *model.User
	err  error

	changes chan struct{}
	cancel  func()
	done    chan struct{}
}

func NewSession(provider identity.Provider, gw gateway.Gateway, logger *slog.Logger) *Session {
	return &Session{
		provider: provider,
		gw:       gw,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}
}

// Start resolves any existing session and then follows the provider's
// events until ctx ends or Close is called. A failure to resolve the
// existing session leaves the user signed out; it is reported through Err.
func (s *Session) Start(ctx context.Context) error {
	events, cancel := s.provider.Subscribe()
	s.cancel = cancel
	s.done = make(chan struct{})

	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.setErr(&apperr.FetchFailed{Resource: "session", Err: err})
		s.logger.Warn("could not restore session", "error", err)
	} else if sess != nil {
		if err := s.resolve(ctx, sess.Email); err != nil {
			s.logger.Warn("stored session not usable", "email", sess.Email, "error", err)
		}
	}

	go s.run(ctx, events)
	return nil
}

func (s *Session) run(ctx context.Context, events <-chan identity.Event) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev identity.Event) {
	s.logger.Debug("identity event", "kind", ev.Kind.String())
	switch ev.Kind {
	case identity.SignedIn:
		if ev.Session == nil {
			return
		}
		if u, ok := s.Current(); ok && u.Email == model.NormalizeEmail(ev.Session.Email) {
			return
		}
		if err := s.resolve(ctx, ev.Session.Email); err != nil {
			s.logger.Warn("sign-in rejected", "email", ev.Session.Email, "error", err)
		}
	case identity.SignedOut:
		s.clearUser()
	}
}

// Close stops following identity events.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
}

// SignIn checks the allow-list and asks the provider for a sign-in link.
// An unlisted email gets apperr.ErrNotAuthorized and nothing is sent.
func (s *Session) SignIn(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return apperr.Invalid("enter a valid email address", "email")
	}
	if _, err := s.lookupAllowed(ctx, email); err != nil {
		s.setErr(err)
		return err
	}
	if err := s.provider.SendLink(ctx, email); err != nil {
		s.logger.Error("send sign-in link failed", "email", email, "error", err)
		return &apperr.WriteFailed{Op: apperr.OpCreate, Entity: "sign-in link", Err: err}
	}
	s.logger.Info("sign-in link requested", "email", email)
	return nil
}

// Verify completes a sign-in link and binds the user.
func (s *Session) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Invalid("paste the token from your sign-in link", "token")
	}
	sess, err := s.provider.Verify(ctx, token)
	if err != nil {
		s.logger.Warn("verify sign-in link failed", "error", err)
		return &apperr.WriteFailed{Op: apperr.OpCreate, Entity: "session", Err: err}
	}
	return s.resolve(ctx, sess.Email)
}

func (s *Session) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.setUser(nil, nil)
	if err != nil {
		s.logger.Warn("sign out failed", "error", err)
	}
	return err
}

// resolve maps an authenticated email to a User: the allow-list entry must
// exist, and the user row is upserted with the allow-listed role.
func (s *Session) resolve(ctx context.Context, email string) error {
	allowed, err := s.lookupAllowed(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotAuthorized) {
			if serr := s.provider.SignOut(ctx); serr != nil {
				s.logger.Warn("sign out of unauthorized session failed", "error", serr)
			}
		}
		s.setUser(nil, err)
		return err
	}

	profile := model.User{Email: allowed.Email, Role: allowed.Role, DisplayName: defaultDisplayName(allowed.Email)}
	existing, err := s.gw.GetUserByEmail(ctx, allowed.Email)
	switch {
	case err == nil:
		profile.ID = existing.ID
		if existing.DisplayName != "" {
			profile.DisplayName = existing.DisplayName
		}
	case !errors.Is(err, gateway.ErrNotFound):
		ferr := &apperr.FetchFailed{Resource: "user", Err: err}
		s.setUser(nil, ferr)
		return ferr
	}

	u, err := s.gw.UpsertUser(ctx, profile)
	if err != nil {
		werr := &apperr.WriteFailed{Op: apperr.OpUpdate, Entity: "user", Err: err}
		s.setUser(nil, werr)
		return werr
	}
	s.logger.Info("signed in", "email", u.Email, "role", string(u.Role))
	s.setUser(u, nil)
	return nil
}

func (s *Session) lookupAllowed(ctx context.Context, email string) (*model.AuthorizedEmail, error) {
	a, err := s.gw.GetAuthorizedEmail(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		s.logger.Info("email not on allow-list", "email", email)
		return nil, apperr.ErrNotAuthorized
	}
	if err != nil {
		return nil, &apperr.FetchFailed{Resource: "authorization", Err: err}
	}
	return a, nil
}

// UpdateProfile changes the signed-in user's display name.
func (s *Session) UpdateProfile(ctx context.Context, displayName string) (model.User, error) {
	u, ok := s.Current()
	if !ok {
		return model.User{}, apperr.ErrNotAuthorized
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return u, apperr.Invalid("", "display_name")
	}
	u.DisplayName = displayName
	out, err := s.gw.UpsertUser(ctx, u)
	if err != nil {
		return u, &apperr.WriteFailed{Op: apperr.OpUpdate, Entity: "profile", Err: err}
	}
	s.setUser(out, nil)
	return *out, nil
}

// Current returns the signed-in user, or false when signed out.
func (s *Session) Current() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Capabilities is nil when signed out.
func (s *Session) Capabilities() []Capability {
	u, ok := s.Current()
	if !ok {
		return nil
	}
	return Capabilities(u.Role)
}

// Err is the last sign-in resolution error, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Changes fires (coalesced) whenever the bound user changes.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

func (s *Session) setUser(u *model.User, err error) {
	s.mu.Lock()
	s.user = u
	s.err = err
	s.mu.Unlock()
	s.notify()
}

// clearUser drops the binding but keeps the last error so a rejected
// sign-in still explains itself after the provider signs out.
func (s *Session) clearUser() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func defaultDisplayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func (s *Session) String() string {
	if u, ok := s.Current(); ok {
		return fmt.Sprintf("%s (%s)", u.Email, u.Role)
	}
	return "signed out"
}
