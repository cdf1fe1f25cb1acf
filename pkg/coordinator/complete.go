package coordinator

import (
	"context"
	"errors"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	registry "github.com/mutablelogic/go-chunker/pkg/registry"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// complete assembles the artifact for a session which has received all of
// its chunks. Only the caller which removes the session from the registry
// assembles; every other caller waits for the outcome.
func (c *Coordinator) complete(ctx context.Context, session *registry.Session) (_ *schema.Artifact, result error) {
	if !c.sessions.CompareAndRemove(session.Id(), session) {
		return c.outcome(ctx, session)
	}
	defer c.sessions.Release(session)

	child, endFunc := otel.StartSpan(c.tracer, ctx, spanCoordinatorName("Complete"))
	defer func() { endFunc(result) }()

	// Reassembly continues when the uploader goes away
	child = context.WithoutCancel(child)

	// Wait for other writers of this upload, then assemble
	session.Close()
	session.SetStatus(schema.StatusCompleting, nil)
	artifact, err := c.assembler.Combine(child, session, c.newId())
	if err != nil {
		c.fail(child, session, err)
		return nil, err
	}

	// Chunks are no longer needed once the artifact is published
	if err := c.chunks.DeleteAll(child, session.Id()); err != nil {
		c.log.Warn().Err(err).Str("chunkId", session.Id()).Msg("chunks not deleted")
	}
	session.SetArtifact(artifact)
	c.metrics.upload(child, schema.StatusCompleted)
	c.log.Info().
		Str("chunkId", session.Id()).
		Str("fileName", artifact.FileName).
		Str("path", artifact.Path).
		Int64("size", artifact.Size).
		Msg("upload complete")

	// External record for the artifact
	if c.onComplete != nil {
		if err := c.onComplete(child, *artifact); err != nil {
			c.log.Error().Err(err).Str("chunkId", session.Id()).Str("path", artifact.Path).Msg("completion hook failed")
			return nil, httpresponse.ErrInternalError.Withf("upload %q assembled as %q: %v", session.Id(), artifact.Path, err)
		}
	}

	// Return success
	return artifact, nil
}

// outcome waits for a session removed by another caller to be released and
// reports how it ended
func (c *Coordinator) outcome(ctx context.Context, session *registry.Session) (*schema.Artifact, error) {
	select {
	case <-session.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch session.Status() {
	case schema.StatusCompleted:
		if artifact := session.Artifact(); artifact != nil {
			return artifact, nil
		}
	case schema.StatusFailed:
		if err := session.Err(); err != nil {
			return nil, err
		}
	}
	return nil, httpresponse.ErrNotFound.Withf("upload %q was %s", session.Id(), session.Status())
}

// fail records a session whose reassembly failed and deletes its chunks,
// which cannot be used again
func (c *Coordinator) fail(ctx context.Context, session *registry.Session, err error) {
	session.SetStatus(schema.StatusFailed, err)
	if purgeErr := c.chunks.DeleteAll(ctx, session.Id()); purgeErr != nil {
		err = errors.Join(err, purgeErr)
	}
	c.setFailed(session)
	c.metrics.upload(ctx, schema.StatusFailed)
	c.log.Error().Err(err).Str("chunkId", session.Id()).Msg("upload failed")
}

// teardown ends a session removed from the registry without assembling it,
// deleting its chunks. The session is released on return.
func (c *Coordinator) teardown(ctx context.Context, session *registry.Session, status schema.Status) error {
	defer c.sessions.Release(session)

	session.Close()
	session.SetStatus(status, nil)
	c.metrics.upload(ctx, status)
	return c.chunks.DeleteAll(context.WithoutCancel(ctx), session.Id())
}
