package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/config"
)

var ErrInitFailed = errors.New("initialization failed")

// InitPolicy decides what happens when a subsystem fails to start.
type InitPolicy struct {
	Retry    bool
	Attempts int // used when Retry is set
	Delay    time.Duration
}

func InitPolicyFromConfig(cfg *config.Config) InitPolicy {
	return InitPolicy{
		Retry:    cfg.InitPolicy == config.InitRetry,
		Attempts: cfg.InitRetries,
		Delay:    cfg.InitRetryDelay(),
	}
}

// initializer runs startup steps under a policy and reports failures on the
// debug channel.
type initializer struct {
	policy InitPolicy
	debug  channel.Channel
	clock  clock.Clock
	logger *zap.Logger
}

// step runs fn until it succeeds or the policy gives up. The returned error
// wraps ErrInitFailed and the last error from fn.
func (in *initializer) step(ctx context.Context, name string, fn func() error) error {
	attempts := 1
	if in.policy.Retry && in.policy.Attempts > 1 {
		attempts = in.policy.Attempts
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			channel.Debugf(in.debug, "%s initialized", name)
			in.flush(ctx)
			return nil
		}
		channel.Errorf(in.debug, "%s init failed (attempt %d/%d): %v", name, i, attempts, err)
		in.flush(ctx)
		in.logger.Error("init failed", zap.String("subsystem", name), zap.Int("attempt", i), zap.Error(err))

		if i < attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %v", ErrInitFailed, name, ctx.Err())
			case <-in.clock.After(in.policy.Delay):
			}
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrInitFailed, name, err)
}

func (in *initializer) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = in.debug.Flush(fctx)
}
