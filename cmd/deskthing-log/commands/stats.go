package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[protolog.Layer]int
	EventsByCategory  map[protolog.Category]int
	EventsByDirection map[protolog.Direction]int
	MessagesByApp     map[string]int
	Connections       map[string]*ConnectionStats
	Transitions       map[string]int
	Probes            int
	ProbeResponses    int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single session.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
	Epoch      uint64
}

// Collect reads path and aggregates its events.
func Collect(path string) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[protolog.Layer]int),
		EventsByCategory:  make(map[protolog.Category]int),
		EventsByDirection: make(map[protolog.Direction]int),
		MessagesByApp:     make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
		Transitions:       make(map[string]int),
	}

	err := forEach(path, protolog.Filter{}, func(event protolog.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event protolog.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch {
	case event.Message != nil:
		s.MessagesByApp[event.Message.App]++
	case event.StateChange != nil && event.StateChange.Entity == protolog.StateEntityConnection:
		s.Transitions[event.StateChange.OldState+" -> "+event.StateChange.NewState]++
	case event.ControlMsg != nil:
		switch event.ControlMsg.Type {
		case protolog.ControlMsgProbe:
			s.Probes++
		case protolog.ControlMsgProbeResponse:
			s.ProbeResponses++
		}
	case event.Error != nil:
		s.Errors++
	}

	// Track connection stats
	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, Epoch: event.Epoch}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	// Time range
	if !stats.TimeRange.Start.IsZero() {
		fmt.Fprintf(w, "Time Range: %s - %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by layer
	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []protolog.Layer{protolog.LayerTransport, protolog.LayerWire, protolog.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []protolog.Category{protolog.CategoryMessage, protolog.CategoryControl, protolog.CategoryState, protolog.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by direction
	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []protolog.Direction{protolog.DirectionIn, protolog.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByApp) > 0 {
		fmt.Fprintln(w, "Messages by App:")
		for _, app := range sortedKeys(stats.MessagesByApp) {
			fmt.Fprintf(w, "  %-12s %d\n", app+":", stats.MessagesByApp[app])
		}
		fmt.Fprintln(w)
	}

	if stats.Probes > 0 || stats.ProbeResponses > 0 {
		fmt.Fprintf(w, "Heartbeat: %d probes, %d responses\n", stats.Probes, stats.ProbeResponses)
		fmt.Fprintln(w)
	}

	if len(stats.Transitions) > 0 {
		fmt.Fprintln(w, "State Transitions:")
		for _, t := range sortedKeys(stats.Transitions) {
			fmt.Fprintf(w, "  %-36s %d\n", t, stats.Transitions[t])
		}
		fmt.Fprintln(w)
	}

	// Connections
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		// Sort by first seen time
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s (epoch %d)\n", c.stats.RemoteAddr, c.stats.Epoch)
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
