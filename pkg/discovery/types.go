package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Discovery constants.
const (
	// ServiceType is the DNS-SD service DeskThing servers advertise.
	ServiceType = "_deskthing._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// AddressScheme prefixes addresses that are resolved by discovery.
	AddressScheme = "mdns"

	// DefaultScheme is the transport scheme used when the server's TXT
	// records do not name one.
	DefaultScheme = "ws"

	// DefaultTimeout bounds a single resolution.
	DefaultTimeout = 5 * time.Second
)

// TXT record keys.
const (
	TXTKeyScheme  = "scheme"
	TXTKeyPath    = "path"
	TXTKeyVersion = "version"
)

// Discovery errors.
var (
	ErrNotFound       = errors.New("service not found")
	ErrNoAddress      = errors.New("service has no usable address")
	ErrInvalidAddress = errors.New("invalid mdns address")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// Service is one resolved DeskThing server.
type Service struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
	Scheme    string
	Path      string
	Version   string
}

// fromEntry converts a zeroconf entry. It returns nil for entries without
// a port.
func fromEntry(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil || entry.Port <= 0 || entry.Port > 65535 {
		return nil
	}
	txt := StringsToTXTRecords(entry.Text)

	// IPv4 first; link-local IPv6 needs a zone the URL cannot carry.
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		if ip.IsLinkLocalUnicast() {
			continue
		}
		addrs = append(addrs, ip.String())
	}

	return &Service{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      uint16(entry.Port),
		Addresses: addrs,
		Scheme:    strings.ToLower(txt[TXTKeyScheme]),
		Path:      txt[TXTKeyPath],
		Version:   txt[TXTKeyVersion],
	}
}

// URL builds the transport address of the service. The scheme from the TXT
// records wins over fallback.
func (s *Service) URL(fallback string) (string, error) {
	if len(s.Addresses) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAddress, s.Instance)
	}
	scheme := s.Scheme
	if scheme == "" {
		scheme = fallback
	}
	if scheme == "" {
		scheme = DefaultScheme
	}
	host := net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port)))

	path := ""
	if scheme == "ws" || scheme == "wss" {
		path = s.Path
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	return scheme + "://" + host + path, nil
}

// ParseAddress extracts the instance name from an mdns://<instance>
// address. ok is false for any other scheme.
func ParseAddress(address string) (instance string, ok bool, err error) {
	scheme, rest, found := strings.Cut(address, "://")
	if !found || !strings.EqualFold(scheme, AddressScheme) {
		return "", false, nil
	}
	if strings.ContainsAny(rest, "/?#") {
		return "", true, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return rest, true, nil
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}
