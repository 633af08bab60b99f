package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zanderp25/DeskThing-Client/pkg/transport"
	"github.com/zanderp25/DeskThing-Client/pkg/transport/mocks"
)

func newEntry(instance string, port int, ips []string, text ...string) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  ServiceType,
			Domain:   Domain,
		},
		HostName: "deskthing.local.",
		Port:     port,
		Text:     text,
	}
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}

// fakeBrowse emits the given entries and then blocks until ctx ends, the
// way a live browse does.
func fakeBrowse(found ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, service, domain string,
		entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
		go func() {
			for _, e := range found {
				select {
				case entries <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func testResolver(browse browseFunc) *Resolver {
	r := NewResolver(ResolverConfig{Timeout: 200 * time.Millisecond}, nil)
	r.browse = browse
	return r
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"scheme=wss", "path=/ws", "flag", "", "kv=a=b"})
	assert.Equal(t, TXTRecordMap{"scheme": "wss", "path": "/ws", "flag": "", "kv": "a=b"}, txt)
}

func TestServiceURL(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		fallback string
		want     string
		wantErr  error
	}{
		{
			name:  "DefaultScheme",
			entry: newEntry("DeskThing", 8891, []string{"192.168.1.20"}),
			want:  "ws://192.168.1.20:8891",
		},
		{
			name:     "FallbackScheme",
			entry:    newEntry("DeskThing", 8891, []string{"192.168.1.20"}),
			fallback: "tcp",
			want:     "tcp://192.168.1.20:8891",
		},
		{
			name:     "AdvertisedSchemeAndPath",
			entry:    newEntry("DeskThing", 443, []string{"10.0.0.5"}, "scheme=WSS", "path=ws"),
			fallback: "tcp",
			want:     "wss://10.0.0.5:443/ws",
		},
		{
			name:  "PathIgnoredForStream",
			entry: newEntry("DeskThing", 9000, []string{"10.0.0.5"}, "scheme=tls", "path=/ws"),
			want:  "tls://10.0.0.5:9000",
		},
		{
			name:  "IPv4Preferred",
			entry: newEntry("DeskThing", 8891, []string{"2001:db8::1", "10.0.0.5"}),
			want:  "ws://10.0.0.5:8891",
		},
		{
			name:  "IPv6Bracketed",
			entry: newEntry("DeskThing", 8891, []string{"2001:db8::1"}),
			want:  "ws://[2001:db8::1]:8891",
		},
		{
			name:    "LinkLocalOnly",
			entry:   newEntry("DeskThing", 8891, []string{"fe80::1"}),
			wantErr: ErrNoAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := fromEntry(tt.entry)
			require.NotNil(t, svc)
			got, err := svc.URL(tt.fallback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEntryRejectsMissingPort(t *testing.T) {
	assert.Nil(t, fromEntry(newEntry("DeskThing", 0, []string{"10.0.0.5"})))
	assert.Nil(t, fromEntry(nil))
}

func TestParseAddress(t *testing.T) {
	instance, ok, err := ParseAddress("mdns://Living Room")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Living Room", instance)

	instance, ok, err = ParseAddress("MDNS://")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, instance)

	_, ok, err = ParseAddress("ws://localhost:8891")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseAddress("mdns://desk/ws")
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestResolve(t *testing.T) {
	t.Run("MatchesInstance", func(t *testing.T) {
		r := testResolver(fakeBrowse(
			newEntry("Office", 8891, []string{"10.0.0.1"}),
			newEntry(`Living\ Room`, 8892, []string{"10.0.0.2"}),
		))

		svc, err := r.Resolve(context.Background(), "living room")
		require.NoError(t, err)
		assert.Equal(t, uint16(8892), svc.Port)
		assert.Equal(t, []string{"10.0.0.2"}, svc.Addresses)
	})

	t.Run("EmptyInstanceTakesFirst", func(t *testing.T) {
		r := testResolver(fakeBrowse(newEntry("Office", 8891, []string{"10.0.0.1"})))

		svc, err := r.Resolve(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "Office", svc.Instance)
	})

	t.Run("SkipsEntriesWithoutAddress", func(t *testing.T) {
		r := testResolver(fakeBrowse(
			newEntry("Office", 8891, nil),
			newEntry("Office", 8891, []string{"10.0.0.9"}),
		))

		svc, err := r.Resolve(context.Background(), "Office")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.9"}, svc.Addresses)
	})

	t.Run("Timeout", func(t *testing.T) {
		r := testResolver(fakeBrowse(newEntry("Office", 8891, []string{"10.0.0.1"})))

		_, err := r.Resolve(context.Background(), "Garage")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ParentCancelled", func(t *testing.T) {
		r := testResolver(fakeBrowse())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Resolve(ctx, "Office")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("BrowseError", func(t *testing.T) {
		boom := errors.New("no multicast interface")
		r := testResolver(func(ctx context.Context, service, domain string,
			entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return boom
		})

		_, err := r.Resolve(context.Background(), "Office")
		assert.ErrorIs(t, err, boom)
	})
}

func TestBrowseMergesAddresses(t *testing.T) {
	r := testResolver(fakeBrowse(
		newEntry("Office", 8891, []string{"10.0.0.1"}),
		newEntry("Office", 8891, []string{"10.0.0.1"}),
		newEntry("Office", 8891, []string{"10.0.1.1"}),
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := r.Browse(ctx)
	require.NoError(t, err)

	first := <-out
	assert.Equal(t, []string{"10.0.0.1"}, first.Addresses)
	second := <-out
	assert.Equal(t, []string{"10.0.0.1", "10.0.1.1"}, second.Addresses)
	assert.Equal(t, []string{"10.0.0.1"}, first.Addresses, "earlier snapshot must not change")
}

type staticResolver struct {
	svc      *Service
	err      error
	requests []string
}

func (s *staticResolver) Resolve(_ context.Context, instance string) (*Service, error) {
	s.requests = append(s.requests, instance)
	return s.svc, s.err
}

func TestDialer(t *testing.T) {
	t.Run("ResolvesMDNSAddress", func(t *testing.T) {
		next := mocks.NewMockDialer(t)
		conn := mocks.NewMockConn(t)
		next.EXPECT().Dial(mock.Anything, "tcp://10.0.0.7:9000").Return(conn, nil).Once()

		res := &staticResolver{svc: &Service{Instance: "Office", Port: 9000, Addresses: []string{"10.0.0.7"}}}
		d := NewDialer(next, res, "tcp", nil)

		got, err := d.Dial(context.Background(), "mdns://Office")
		require.NoError(t, err)
		assert.Same(t, conn, got)
		assert.Equal(t, []string{"Office"}, res.requests)
	})

	t.Run("PassesThroughOtherSchemes", func(t *testing.T) {
		next := mocks.NewMockDialer(t)
		next.EXPECT().Dial(mock.Anything, "ws://localhost:8891").Return(nil, transport.ErrConnectionClosed).Once()

		res := &staticResolver{}
		d := NewDialer(next, res, "", nil)

		_, err := d.Dial(context.Background(), "ws://localhost:8891")
		assert.ErrorIs(t, err, transport.ErrConnectionClosed)
		assert.Empty(t, res.requests)
	})

	t.Run("ResolveFailureSkipsDial", func(t *testing.T) {
		next := mocks.NewMockDialer(t)
		res := &staticResolver{err: ErrNotFound}
		d := NewDialer(next, res, "", nil)

		_, err := d.Dial(context.Background(), "mdns://Office")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ResolvesOnEveryDial", func(t *testing.T) {
		next := mocks.NewMockDialer(t)
		next.EXPECT().Dial(mock.Anything, "ws://10.0.0.7:8891").Return(nil, errors.New("refused")).Once()
		next.EXPECT().Dial(mock.Anything, "ws://10.0.0.8:8891").Return(nil, errors.New("refused")).Once()

		res := &staticResolver{svc: &Service{Instance: "Office", Port: 8891, Addresses: []string{"10.0.0.7"}}}
		d := NewDialer(next, res, "", nil)

		_, _ = d.Dial(context.Background(), "mdns://Office")
		res.svc = &Service{Instance: "Office", Port: 8891, Addresses: []string{"10.0.0.8"}}
		_, _ = d.Dial(context.Background(), "mdns://Office")
		assert.Len(t, res.requests, 2)
	})
}
