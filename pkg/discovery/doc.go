// Package discovery resolves DeskThing servers advertised over mDNS/DNS-SD.
//
// Servers advertise the _deskthing._tcp service. A client that does not
// know the server's address is configured with mdns://<instance> instead,
// and Dialer resolves that instance on every dial, so a server that moves to
// a new IP or port is found again on the next reconnect.
//
// # TXT Records
//
// Optional keys recognized in the service's TXT records:
//   - scheme: transport scheme (ws, wss, tcp, tls). Overrides the default.
//   - path: WebSocket request path, e.g. /ws.
//   - version: server version string, informational only.
//
// An empty instance name matches the first server that answers.
package discovery
