package media

import (
	"context"
	"log/slog"
)

// Chain tries the strategies resolved for a request strictly in
// priority order. The first success short-circuits; every failure is
// recorded and the next candidate runs. Sequential trial keeps at most
// one in-flight download per request and avoids burning remote quota on
// strategies that would not have been needed.
type Chain struct {
	registry *Registry
	logger   *slog.Logger
}

// NewChain creates a chain over the given read-only registry.
func NewChain(log *slog.Logger, registry *Registry) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{
		registry: registry,
		logger:   log.With(slog.String("service", "chain")),
	}
}

// Run executes the resolved strategies for req one at a time. An empty
// candidate list returns KindUnsupported without any network call; if
// every candidate fails the ordered attempt errors come back as
// KindAllFailed so the caller can pick a retry prompt or a definitive
// "unavailable" message.
func (c *Chain) Run(ctx context.Context, req Request) (Artifact, error) {
	candidates := c.registry.Resolve(req.Platform, req.ContentType)
	if len(candidates) == 0 {
		return Artifact{}, Unsupported("no strategy supports " + string(req.Platform) + "/" + string(req.ContentType))
	}

	attempts := make([]*Error, 0, len(candidates))
	for _, strategy := range candidates {
		name := strategy.Descriptor().Name
		if err := ctx.Err(); err != nil {
			// Overall fetch budget exhausted; abandon the rest.
			timeout := Normalize(err)
			timeout.Strategy = name
			attempts = append(attempts, timeout)
			break
		}

		artifact, err := strategy.Attempt(ctx, req)
		if err == nil {
			c.logger.Info("strategy succeeded",
				slog.String("strategy", name),
				slog.String("platform", string(req.Platform)),
				slog.String("content_type", string(req.ContentType)),
				slog.String("path", artifact.LocalPath),
			)
			artifact.Strategy = name
			artifact.Platform = req.Platform
			artifact.ContentType = req.ContentType
			return artifact, nil
		}

		failure := Normalize(err)
		failure.Strategy = name
		c.logger.Warn("strategy failed",
			slog.String("strategy", name),
			slog.String("kind", string(failure.Kind)),
			slog.Any("error", err),
		)
		attempts = append(attempts, failure)
	}

	return Artifact{}, AllFailed(attempts)
}
