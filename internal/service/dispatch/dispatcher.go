package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/analysis/intent"
)

const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 2000 * time.Millisecond
)

var (
	// ErrBusy is returned synchronously while a previous dispatch is unresolved.
	ErrBusy = errors.New("dispatch already in flight")
	// ErrDispatchFailed marks a simulated backend failure.
	ErrDispatchFailed = errors.New("dispatch failed")
)

// Matcher classifies user text.
type Matcher interface {
	Match(input string) intent.ID
}

// Selector produces reply text for an intent.
type Selector interface {
	Select(id intent.ID) string
}

// Config tunes the simulated backend call.
type Config struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	Rand        *rand.Rand
	Logger      *zap.Logger
}

// DefaultConfig mirrors the production widget: 1-2s latency, never failing.
func DefaultConfig() Config {
	return Config{MinDelay: DefaultMinDelay, MaxDelay: DefaultMaxDelay}
}

// Result is delivered exactly once per accepted dispatch.
type Result struct {
	Text string
	Err  error
}

// Dispatcher wraps reply selection in an asynchronous call with simulated
// latency. At most one call is in flight; extra calls are rejected, not queued.
type Dispatcher struct {
	pipeline compose.Runnable[string, *schema.Message]

	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	inFlight atomic.Bool
}

// New compiles the match -> select pipeline and validates cfg.
func New(ctx context.Context, matcher Matcher, selector Selector, cfg Config) (*Dispatcher, error) {
	if matcher == nil || selector == nil {
		return nil, errors.New("dispatch: matcher and selector are required")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("dispatch: invalid delay range [%s, %s]", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("dispatch: failure rate %v outside [0, 1]", cfg.FailureRate)
	}

	rng := cfg.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipeline, err := buildPipeline(ctx, matcher, selector)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		pipeline:    pipeline,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		failureRate: cfg.FailureRate,
		logger:      logger,
		rng:         rng,
	}, nil
}

func buildPipeline(ctx context.Context, matcher Matcher, selector Selector) (compose.Runnable[string, *schema.Message], error) {
	classify := compose.InvokableLambda(func(_ context.Context, text string) (intent.ID, error) {
		return matcher.Match(text), nil
	})
	respond := compose.InvokableLambda(func(_ context.Context, id intent.ID) (*schema.Message, error) {
		return schema.AssistantMessage(selector.Select(id), nil), nil
	})

	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(classify)
	chain.AppendLambda(respond)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}
	return runnable, nil
}

// InFlight reports whether a dispatch is pending.
func (d *Dispatcher) InFlight() bool {
	return d.inFlight.Load()
}

// Dispatch starts a reply computation for userText and returns a channel that
// receives exactly one Result. It fails fast with ErrBusy while another call
// is pending. The call cannot be cancelled once accepted: ctx only carries
// values into the pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, userText string) (<-chan Result, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	delay, fail := d.draw()
	out := make(chan Result, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		timer := time.NewTimer(delay)
		<-timer.C

		res := d.resolve(ctx, userText, fail)
		d.logger.Debug("dispatch settled",
			zap.Duration("delay", delay),
			zap.Bool("failed", res.Err != nil))

		d.inFlight.Store(false)
		out <- res
		close(out)
	}()

	return out, nil
}

func (d *Dispatcher) resolve(ctx context.Context, userText string, fail bool) Result {
	if fail {
		return Result{Err: ErrDispatchFailed}
	}

	msg, err := d.pipeline.Invoke(ctx, userText)
	if err != nil {
		d.logger.Warn("reply chain failed", zap.Error(err))
		return Result{Err: fmt.Errorf("%w: %v", ErrDispatchFailed, err)}
	}
	if msg == nil {
		return Result{Err: fmt.Errorf("%w: empty reply", ErrDispatchFailed)}
	}
	return Result{Text: msg.Content}
}

// draw picks the latency uniformly from [minDelay, maxDelay] and decides
// whether this call fails.
func (d *Dispatcher) draw() (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delay := d.minDelay
	if span := d.maxDelay - d.minDelay; span > 0 {
		delay += time.Duration(d.rng.Int64N(int64(span) + 1))
	}
	fail := d.failureRate > 0 && d.rng.Float64() < d.failureRate
	return delay, fail
}
