package httpserver

import (
	"context"
	"net"
	"sync"
)

// trackedListener counts the connections it accepts, per remote host. A connection
// counts as active until its first Close.
type trackedListener struct {
	net.Listener
	name string

	mu       sync.RWMutex
	accepted int
	active   int
	byHost   map[string]int
}

func (l *trackedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return conn, err
	}
	host := remoteHost(conn)
	l.opened(host)
	return &trackedConnection{Conn: conn, closed: func() { l.closed(host) }}, nil
}

func remoteHost(conn net.Conn) string {
	remote := conn.RemoteAddr()
	if remote == nil {
		return ""
	}
	addr := remote.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// unix sockets have no port
		return addr
	}
	return host
}

func (l *trackedListener) opened(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.byHost == nil {
		l.byHost = map[string]int{}
	}
	l.accepted++
	l.active++
	l.byHost[host]++
}

func (l *trackedListener) closed(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
	if l.byHost[host]--; l.byHost[host] <= 0 {
		delete(l.byHost, host)
	}
}

func (l *trackedListener) MetricName() string {
	return l.name + "-listener"
}

func (l *trackedListener) Gauges(context.Context) map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	most, least := 0, 0
	for _, n := range l.byHost {
		if n > most {
			most = n
		}
		if least == 0 || n < least {
			least = n
		}
	}
	return map[string]float64{
		"number_of_remotes":          float64(len(l.byHost)),
		"total_connections":          float64(l.accepted),
		"active_connections":         float64(l.active),
		"max_connections_per_remote": float64(most),
		"min_connections_per_remote": float64(least),
	}
}

type trackedConnection struct {
	net.Conn
	once   sync.Once
	closed func()
}

// Close may be called more than once by net/http.
func (c *trackedConnection) Close() error {
	c.once.Do(c.closed)
	return c.Conn.Close()
}
