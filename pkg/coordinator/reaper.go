package coordinator

import (
	"context"
	"errors"
	"time"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Reap expires uploads which have not received a chunk for maxAge, deleting
// their chunks, and forgets failed uploads older than maxAge. Returns the
// number of uploads expired.
func (c *Coordinator) Reap(ctx context.Context, maxAge time.Duration) (_ int, result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanCoordinatorName("Reap"))
	defer func() { endFunc(result) }()

	cutoff := time.Now().Add(-maxAge)
	expired := 0
	for _, session := range c.sessions.List() {
		if session.Modified().After(cutoff) {
			continue
		}

		// The session may have completed or been replaced since listing
		if !c.sessions.CompareAndRemove(session.Id(), session) {
			continue
		}
		c.log.Info().Str("chunkId", session.Id()).Time("modified", session.Modified()).Msg("upload expired")
		if err := c.teardown(child, session, schema.StatusExpired); err != nil {
			result = errors.Join(result, err)
		}
		expired++
	}

	c.mu.Lock()
	for id, session := range c.failed {
		if !session.Modified().After(cutoff) {
			delete(c.failed, id)
		}
	}
	c.mu.Unlock()

	return expired, result
}

// Run expires idle uploads periodically until ctx is done. Without an
// expiry configured it only waits for ctx.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.maxAge <= 0 || c.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := c.Reap(ctx, c.maxAge); err != nil {
				c.log.Error().Err(err).Msg("reap failed")
			} else if n > 0 {
				c.log.Debug().Int("expired", n).Msg("reaped idle uploads")
			}
		}
	}
}
