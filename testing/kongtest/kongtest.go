// Package kongtest renders the help of a kong CLI definition for tests.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type exit int

// Help parses "--help" against cli and returns what kong printed. Kong's exit is trapped
// so the test process keeps running, and the requested exit code must be zero.
func Help(t testing.TB, cli interface{}, options ...kong.Option) string {
	t.Helper()

	w := bytes.NewBuffer(nil)
	options = append([]kong.Option{
		kong.Name("test-app"),
		kong.Writers(w, w),
		kong.Exit(func(code int) {
			panic(exit(code))
		}),
	}, options...)

	app, err := kong.New(cli, options...)
	assert.Assert(t, err)

	func() {
		defer func() {
			assert.Check(t, cmp.Equal(recover(), exit(0)))
		}()
		_, _ = app.Parse([]string{"--help"})
	}()

	return w.String()
}
