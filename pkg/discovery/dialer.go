package discovery

import (
	"context"
	"log/slog"

	"github.com/zanderp25/DeskThing-Client/pkg/transport"
)

// ServiceResolver looks up one server by instance name.
type ServiceResolver interface {
	Resolve(ctx context.Context, instance string) (*Service, error)
}

// Dialer resolves mdns://<instance> addresses before every dial and hands
// everything else to the next dialer unchanged.
type Dialer struct {
	next     transport.Dialer
	resolver ServiceResolver
	scheme   string
	logger   *slog.Logger
}

// NewDialer wraps next. scheme is the transport scheme used when a server
// does not advertise one; empty means ws.
func NewDialer(next transport.Dialer, resolver ServiceResolver, scheme string, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Dialer{
		next:     next,
		resolver: resolver,
		scheme:   scheme,
		logger:   logger.With("component", "discovery"),
	}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, address string) (transport.Conn, error) {
	instance, ok, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return d.next.Dial(ctx, address)
	}

	svc, err := d.resolver.Resolve(ctx, instance)
	if err != nil {
		return nil, err
	}
	target, err := svc.URL(d.scheme)
	if err != nil {
		return nil, err
	}
	d.logger.Info("dialing discovered server", "instance", svc.Instance, "target", target)
	return d.next.Dial(ctx, target)
}

var _ transport.Dialer = (*Dialer)(nil)
