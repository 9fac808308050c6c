package async

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

// Group runs handlers in the background and lets the owner wait for all of
// them. Errors and panics are logged, never returned.
type Group struct {
	wg sync.WaitGroup
}

// Go starts handler in a new goroutine tracked by the group
func (g *Group) Go(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := detach(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(bgCtx, handler)
	}()
}

// Wait blocks until every started handler has returned
func (g *Group) Wait() {
	g.wg.Wait()
}

func detach(ctx context.Context) context.Context {
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}
	return bgCtx
}

func run(ctx context.Context, handler func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic in async handler", "panic", r)
		}
	}()

	if err := handler(ctx); err != nil {
		logging.From(ctx).Error("async handler failed", "error", goerr.Unwrap(err))
	}
}
