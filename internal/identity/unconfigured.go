package identity

import (
	"context"

	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

// Unconfigured pairs with gateway.Unconfigured: there is never a session and
// sign-in attempts fail with gateway.ErrNotConfigured.
type Unconfigured struct {
	hub hub
}

var _ Provider = (*Unconfigured)(nil)

func (*Unconfigured) CurrentSession(context.Context) (*model.Session, error) { return nil, nil }

func (*Unconfigured) SendLink(context.Context, string) error { return gateway.ErrNotConfigured }

func (*Unconfigured) Verify(context.Context, string) (*model.Session, error) {
	return nil, gateway.ErrNotConfigured
}

func (*Unconfigured) SignOut(context.Context) error { return nil }

func (u *Unconfigured) Subscribe() (<-chan Event, func()) { return u.hub.subscribe() }
