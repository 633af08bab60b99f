package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Service is the DNS-SD service type. Default: _deskthing._tcp.
	Service string

	// Timeout bounds a single Resolve. Default: 5 seconds.
	Timeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.Service == "" {
		c.Service = ServiceType
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

type browseFunc func(ctx context.Context, service, domain string,
	entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

func zeroconfBrowse(ctx context.Context, service, domain string,
	entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
}

// Resolver finds DeskThing servers by browsing mDNS.
type Resolver struct {
	config ResolverConfig
	logger *slog.Logger
	browse browseFunc
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		config: config.withDefaults(),
		logger: logger.With("component", "discovery"),
		browse: zeroconfBrowse,
	}
}

// Resolve browses until a server with the given instance name answers with
// at least one usable address. An empty instance matches any server.
func (r *Resolver) Resolve(parent context.Context, instance string) (*Service, error) {
	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	removed := make(chan *zeroconf.ServiceEntry, 8)
	browseErr := make(chan error, 1)

	go func(entries, removed chan *zeroconf.ServiceEntry) {
		browseErr <- r.browse(ctx, r.config.Service, Domain, entries, removed, r.options()...)
	}(entries, removed)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, r.notFound(instance)
			}
			svc := fromEntry(entry)
			if svc == nil || !matchInstance(svc.Instance, instance) {
				continue
			}
			if len(svc.Addresses) == 0 {
				r.logger.Debug("skipping service without address", "instance", svc.Instance)
				continue
			}
			r.logger.Debug("resolved service",
				"instance", svc.Instance,
				"addr", svc.Addresses[0],
				"port", svc.Port)
			return svc, nil

		case _, ok := <-removed:
			if !ok {
				removed = nil
			}

		case err := <-browseErr:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("browse %s: %w", r.config.Service, err)
			}
			browseErr = nil

		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			return nil, r.notFound(instance)
		}
	}
}

// Browse reports every server that answers until ctx is cancelled.
// Addresses from multiple interfaces are combined into a single entry, and
// a server is reported again whenever it gains an address.
func (r *Resolver) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func(entries, removed <-chan *zeroconf.ServiceEntry) {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := fromEntry(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[svc.Instance]; found {
					before := len(existing.Addresses)
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					if len(existing.Addresses) == before {
						continue
					}
					svc = existing
				} else {
					services[svc.Instance] = svc
				}
				snapshot := *svc
				snapshot.Addresses = append([]string(nil), svc.Addresses...)
				select {
				case out <- &snapshot:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if entry != nil {
					delete(services, entry.Instance)
				}

			case <-ctx.Done():
				return
			}
		}
	}(entries, removed)

	go func() {
		if err := r.browse(ctx, r.config.Service, Domain, entries, removed, r.options()...); err != nil {
			r.logger.Warn("browse failed", "service", r.config.Service, "error", err)
		}
	}()

	return out, nil
}

func (r *Resolver) notFound(instance string) error {
	if instance == "" {
		return fmt.Errorf("%w: no %s server answered within %s", ErrNotFound, r.config.Service, r.config.Timeout)
	}
	return fmt.Errorf("%w: %q did not answer within %s", ErrNotFound, instance, r.config.Timeout)
}

// options returns zeroconf client options based on config.
func (r *Resolver) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if r.config.Interface != "" {
		iface, err := net.InterfaceByName(r.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

func matchInstance(got, want string) bool {
	if want == "" {
		return true
	}
	// DNS-SD escapes spaces and dots in instance names.
	got = strings.NewReplacer(`\ `, " ", `\.`, ".").Replace(got)
	return strings.EqualFold(got, want)
}
