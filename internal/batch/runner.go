package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aws-samples/genai-data-governance-assistant/internal/app"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
)

// Options configures the batch driver.
type Options struct {
	Workers    int
	MaxRetries int

	// TableTimeout bounds one table's full pipeline run.
	TableTimeout time.Duration

	// RateLimitRPS is a global limit on table starts across all workers.
	// Set to <=0 to disable.
	RateLimitRPS float64

	// FailFast aborts the whole batch on the first table failure instead of
	// recording it and continuing.
	FailFast bool

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.TableTimeout <= 0 {
		o.TableTimeout = 5 * time.Minute
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// Result is the outcome of one table's run. Err is set when the table's
// pipeline failed after exhausting its retry budget.
type Result struct {
	Table  TableSpec
	Report app.Report
	Err    error
}

// RunFunc executes the pipeline for one table.
type RunFunc func(ctx context.Context, t TableSpec) (app.Report, error)

// Run processes all tables with a bounded worker pool. Table runs are
// independent: one table's failure never corrupts another's, and under the
// default policy failures are recorded per table rather than aborting the
// batch. Transient failures (rate limiting, 5xx, net timeouts) are retried
// with exponential backoff and jitter.
func Run(ctx context.Context, tables []TableSpec, fn RunFunc, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result, len(tables))

	type job struct {
		idx int
		t   TableSpec
	}
	jobs := make(chan job)

	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	workerFn := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				return
			}
			report, err := runWithRetry(runCtx, j.t, fn, limiter, opts)
			out[j.idx] = Result{Table: j.t, Report: report, Err: err}
			if err != nil && opts.FailFast {
				fail(err)
				return
			}
		}
	}

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobs)
		for i, t := range tables {
			select {
			case jobs <- job{idx: i, t: t}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func runWithRetry(ctx context.Context, t TableSpec, fn RunFunc, limiter *rate.Limiter, opts Options) (app.Report, error) {
	var lastReport app.Report
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastReport, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return lastReport, err
			}
		}

		tableCtx, cancel := context.WithTimeout(ctx, opts.TableTimeout)
		report, err := fn(tableCtx, t)
		cancel()
		lastReport = report
		if err == nil {
			return report, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return lastReport, ctx.Err()
		}
		maxRetries := maxExtraRetries(opts.MaxRetries, err)
		if !isTransient(err) || attempt >= maxRetries {
			return lastReport, err
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastReport, ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *llm.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *llm.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
