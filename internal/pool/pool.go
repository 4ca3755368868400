// Package pool implements the generic bounded-parallel dispatcher used
// by every fetch/scan/apply stage: a shared Control value cloned per worker, a
// sequence of Request values dispatched across a tier's semaphore, and a
// PoolResult collecting successes and failures without letting either
// abort the other.
package pool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Tier names the two parallelism classes a pool can belong to. Each pool
// picks one.
type Tier int

const (
	// Network is for HTTP-bound work (fetch). Default weight 4.
	Network Tier = iota
	// CPU is for hashing/compression/patch-apply work. Default weight
	// min(NumCPU, 6).
	CPU
)

// Limits holds the two tier sizes, set once at process startup and
// threaded through explicitly rather than
// read from a package-level global, so tests can vary them freely.
type Limits struct {
	Network int
	CPU     int
}

// DefaultLimits returns the default tier sizes.
func DefaultLimits() Limits {
	cpu := runtime.NumCPU()
	if cpu > 6 {
		cpu = 6
	}
	if cpu < 1 {
		cpu = 1
	}
	return Limits{Network: 4, CPU: cpu}
}

func (l Limits) weight(t Tier) int64 {
	switch t {
	case Network:
		if l.Network > 0 {
			return int64(l.Network)
		}
		return int64(DefaultLimits().Network)
	default:
		if l.CPU > 0 {
			return int64(l.CPU)
		}
		return int64(DefaultLimits().CPU)
	}
}

// Failure pairs a request with the error encountered processing it.
// Failures never abort sibling requests.
type Failure[Req any] struct {
	Request Req
	Err     error
}

// Result is an ordered/unordered collection of successes and failures
// from a single pool run. Callers must not assume any ordering between
// Successes and the order Requests were submitted.
type Result[Req, Res any] struct {
	Successes []Res
	Failures  []Failure[Req]
}

// OK reports whether every request succeeded.
func (r Result[Req, Res]) OK() bool {
	return len(r.Failures) == 0
}

// Progress is called after each request completes, successful or not, so
// callers can drive a progress indicator. It may be nil.
type Progress func(done, total int)

// Do processes one Request using a per-worker clone of control,
// returning a Result value and any error. A non-nil error is treated as
// this request's failure and does not abort other workers.
type Do[Control, Req, Res any] func(ctx context.Context, control Control, req Req) (Res, error)

// Run dispatches each element of reqs across a bounded set of goroutines
// gated by the semaphore for tier, invoking do with a clone of control
// (cloneControl may be nil if Control is already safe to share, e.g. a
// value type or a type whose shared fields are themselves thread-safe —
// the HTTP client and base paths fall in that category).
// Run always drains every request; failed requests, including ones that
// could not start because ctx was cancelled, show up in Result.Failures.
// The returned error is the errgroup's Wait result, which workers never
// set.
func Run[Control, Req, Res any](
	ctx context.Context,
	limits Limits,
	tier Tier,
	control Control,
	cloneControl func(Control) Control,
	reqs []Req,
	do Do[Control, Req, Res],
	onProgress Progress,
) (Result[Req, Res], error) {
	var result Result[Req, Res]
	if len(reqs) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(limits.weight(tier))
	g, gctx := errgroup.WithContext(ctx)

	type slot struct {
		res Res
		err error
		req Req
	}
	slots := make([]slot, len(reqs))

	var mu sync.Mutex
	done := 0
	reportDone := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		done++
		d := done
		mu.Unlock()
		onProgress(d, len(reqs))
	}

	for i, req := range reqs {
		i, req := i, req
		if err := sem.Acquire(gctx, 1); err != nil {
			// Dispatch itself failed (context cancelled before this
			// request could start); every request from here on is
			// recorded as a failure rather than aborting ones already
			// running.
			slots[i] = slot{req: req, err: err}
			reportDone()
			continue
		}

		worker := control
		if cloneControl != nil {
			worker = cloneControl(control)
		}

		g.Go(func() error {
			defer sem.Release(1)
			res, err := do(gctx, worker, req)
			slots[i] = slot{res: res, err: err, req: req}
			reportDone()
			return nil
		})
	}

	// errgroup's Go function above never returns a non-nil error itself
	// (failures are captured per-slot), so Wait only reports problems in
	// the dispatcher plumbing.
	dispatchErr := g.Wait()

	for _, s := range slots {
		if s.err != nil {
			result.Failures = append(result.Failures, Failure[Req]{Request: s.req, Err: s.err})
			continue
		}
		result.Successes = append(result.Successes, s.res)
	}

	return result, dispatchErr
}
