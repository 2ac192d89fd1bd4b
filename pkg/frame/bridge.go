package frame

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

const (
	DefaultInterval    = 200 * time.Millisecond
	DefaultMaxAttempts = 30
)

var (
	ErrNoFrameContext = goerr.New("no frame context detected")
)

// Host is the embedding runtime that may inject the user's FID
type Host interface {
	// UserFID returns the injected FID if it is already available
	UserFID() (model.FID, bool)

	// OpenURL asks the host to open url, e.g. a compose intent
	OpenURL(ctx context.Context, url string) error
}

// Identity is the result of an identity acquisition. It resolves exactly once.
type Identity struct {
	done chan struct{}
	once sync.Once
	fid  model.FID
	err  error
}

func newIdentity() *Identity {
	return &Identity{done: make(chan struct{})}
}

func (x *Identity) resolve(fid model.FID, err error) {
	x.once.Do(func() {
		x.fid = fid
		x.err = err
		close(x.done)
	})
}

// Done is closed when the identity is resolved
func (x *Identity) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the identity is resolved or ctx is done
func (x *Identity) Wait(ctx context.Context) (model.FID, error) {
	select {
	case <-x.done:
		return x.fid, x.err
	case <-ctx.Done():
		return 0, goerr.Wrap(ctx.Err(), "interrupted while waiting frame context")
	}
}

// FID returns the resolved FID without blocking. ok is false until the
// identity resolved successfully.
func (x *Identity) FID() (fid model.FID, ok bool) {
	select {
	case <-x.done:
		return x.fid, x.err == nil
	default:
		return 0, false
	}
}

// Bridge acquires the FID from a Host by bounded polling
type Bridge struct {
	host        Host
	interval    time.Duration
	maxAttempts int
}

type Option func(*Bridge)

// WithInterval sets the polling interval
func WithInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.interval = d
	}
}

// WithMaxAttempts sets how many polls happen before giving up
func WithMaxAttempts(n int) Option {
	return func(b *Bridge) {
		b.maxAttempts = n
	}
}

func NewBridge(host Host, opts ...Option) *Bridge {
	b := &Bridge{
		host:        host,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start checks the host once synchronously and, if the FID is not there yet,
// polls in background. Cancelling ctx stops polling and resolves the identity
// with the context error.
func (b *Bridge) Start(ctx context.Context) *Identity {
	logger := logging.From(ctx)
	id := newIdentity()

	if fid, ok := b.host.UserFID(); ok {
		logger.Debug("found frame context immediately", "fid", fid)
		id.resolve(fid, nil)
		return id
	}

	logger.Debug("start polling frame context", "interval", b.interval, "max_attempts", b.maxAttempts)

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for attempt := 1; ; attempt++ {
			select {
			case <-ctx.Done():
				logger.Debug("stop polling frame context", "reason", ctx.Err())
				id.resolve(0, goerr.Wrap(ctx.Err(), "frame context polling cancelled"))
				return

			case <-ticker.C:
				if fid, ok := b.host.UserFID(); ok {
					logger.Debug("found frame context", "fid", fid, "attempts", attempt)
					id.resolve(fid, nil)
					return
				}
				if attempt >= b.maxAttempts {
					logger.Warn("frame context not detected", "attempts", attempt)
					id.resolve(0, goerr.Wrap(ErrNoFrameContext, "polling timed out",
						goerr.V("attempts", attempt)))
					return
				}
			}
		}
	}()

	return id
}
