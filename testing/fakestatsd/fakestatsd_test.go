package fakestatsd

import (
	"net"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"
)

func TestFakeStatsd(t *testing.T) {
	s := New(t)

	conn, err := net.Dial("udp", s.Addr())
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, conn.Close())
	})

	_, err = conn.Write([]byte("todo.created:1|c|#service:todo,kind:test\ntodo.db.query:12|ms\n"))
	assert.Assert(t, err)

	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		if len(s.Metrics()) < 2 {
			return poll.Continue("waiting for metrics")
		}
		return poll.Success()
	})
	assert.Check(t, cmp.DeepEqual(s.Metrics(), []Metric{
		{Name: "todo.created", Value: "1|c|", Tags: []string{"service:todo", "kind:test"}},
		{Name: "todo.db.query", Value: "12|ms"},
	}))
}

func TestParse(t *testing.T) {
	assert.Check(t, cmp.DeepEqual(parse("gauge.db.in_use:3|g"), Metric{Name: "gauge.db.in_use", Value: "3|g"}))
}
