package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
)

// TokenSource lists the device tokens a broadcast goes to.
type TokenSource interface {
	ListDeviceTokens(ctx context.Context) ([]string, error)
}

// Result is the outcome of one delivery.
type Result struct {
	Token string
	Err   error
}

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	// Timeout bounds a whole background batch.
	Timeout time.Duration
	// Concurrency caps in-flight deliveries per batch.
	Concurrency int
}

// Dispatcher fans messages out to device tokens.
type Dispatcher struct {
	sender  Sender
	tokens  TokenSource
	logger  *slog.Logger
	timeout time.Duration
	limit   int

	// base is cancelled by Close so in-flight batches stop promptly.
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, tokens TokenSource, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		tokens:  tokens,
		logger:  logger,
		timeout: opts.Timeout,
		limit:   opts.Concurrency,
		base:    base,
		cancel:  cancel,
	}
}

// Dispatch delivers message to every token and reports per-token results
// in input order. Empty and duplicate tokens are skipped. It never fails
// as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, tokens []string) []Result {
	tokens = uniqueTokens(tokens)
	results := make([]Result, len(tokens))

	sem := make(chan struct{}, d.limit)
	var wg sync.WaitGroup

	for i, token := range tokens {
		results[i].Token = token

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Err = d.send(ctx, token, message)
		}()
	}

	wg.Wait()
	return results
}

// send isolates a single delivery so a panicking sender cannot take down the batch.
func (d *Dispatcher) send(ctx context.Context, token, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("push sender panic recovered", "panic", r)
			err = ErrDeliveryFailed
		}
	}()
	return d.sender.Send(ctx, token, message)
}

// Go broadcasts message to all registered devices in the background.
// It returns immediately; failures are logged. After Close it is a no-op.
func (d *Dispatcher) Go(message string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("notification dropped, dispatcher closed")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.base, d.timeout)
		defer cancel()

		d.broadcast(ctx, message)
	}()
}

func (d *Dispatcher) broadcast(ctx context.Context, message string) {
	tokens, err := d.tokens.ListDeviceTokens(ctx)
	if err != nil {
		d.logger.Error("loading device tokens failed", "error", err)
		return
	}
	if len(tokens) == 0 {
		d.logger.Debug("no registered devices, notification skipped")
		return
	}

	results := d.Dispatch(ctx, message, tokens)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			d.logger.Warn("push notification failed",
				"device", redactToken(res.Token),
				"error", res.Err,
			)
		}
	}

	d.logger.Info("push notifications dispatched",
		"devices", len(results),
		"failed", failed,
	)
}

// Wait blocks until all background batches have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight batches and waits for them to return.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
