// Package rundef sizes the Go runtime to the container the service runs in.
package rundef

import (
	"context"
	"runtime"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/circleci/todo/o11y"
)

// memRatio is the share of the available memory given to GOMEMLIMIT.
const memRatio = 0.9

// Defaults sets GOMEMLIMIT from the cgroup limit, falling back to system memory, and records
// the GOMAXPROCS the runtime derived from the CPU quota.
func Defaults(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "rundef: defaults")
	defer o11y.End(span, &err)

	span.AddField("max_procs", runtime.GOMAXPROCS(0))
	return MemLimit(ctx)
}

func MemLimit(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "rundef: mem limit")
	defer o11y.End(span, &err)

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(memRatio),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			)))
	if err != nil {
		return err
	}
	span.AddField("limit", limit)
	return nil
}
