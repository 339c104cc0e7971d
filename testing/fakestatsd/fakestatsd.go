// Package fakestatsd is a UDP listener that records the dogstatsd metrics sent to it.
package fakestatsd

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type FakeStatsd struct {
	conn *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "localhost:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{conn: conn}
	go s.listen()
	t.Cleanup(func() {
		_ = s.conn.Close()
	})

	return s
}

func (s *FakeStatsd) Addr() string {
	return s.conn.LocalAddr().String()
}

type Metric struct {
	Name  string
	Value string
	Tags  []string
}

func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

func (s *FakeStatsd) listen() {
	buffer := make([]byte, 10000)

	for {
		n, err := s.conn.Read(buffer)
		if errors.Is(err, net.ErrClosed) {
			return
		}
		for _, raw := range bytes.Split(buffer[:n], []byte("\n")) {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			m := parse(string(raw))
			s.mu.Lock()
			s.metrics = append(s.metrics, m)
			s.mu.Unlock()
		}
	}
}

// parse splits name:value|type|#tag1,tag2
func parse(raw string) Metric {
	name, rest, _ := strings.Cut(raw, ":")
	value, tags, found := strings.Cut(rest, "#")

	m := Metric{Name: name, Value: value}
	if found {
		m.Tags = strings.Split(tags, ",")
	}
	return m
}
