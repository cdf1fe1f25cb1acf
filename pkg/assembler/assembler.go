package assembler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	chunker "github.com/mutablelogic/go-chunker"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	chunkstore "github.com/mutablelogic/go-chunker/pkg/chunkstore"
	registry "github.com/mutablelogic/go-chunker/pkg/registry"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Assembler concatenates the chunks of a finished upload into an artifact
type Assembler struct {
	opts
	chunks    *chunkstore.Store
	artifacts backend.Backend
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New(chunks *chunkstore.Store, artifacts backend.Backend, opts ...Opt) (*Assembler, error) {
	self := new(Assembler)
	if chunks == nil || artifacts == nil {
		return nil, httpresponse.ErrBadRequest.With("missing chunk store or artifact backend")
	}
	self.chunks = chunks
	self.artifacts = artifacts

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}
	if self.prefix == "" {
		self.prefix = schema.ArtifactPrefix
	} else if strings.ContainsAny(self.prefix, "/\\") {
		return nil, httpresponse.ErrBadRequest.Withf("invalid artifact prefix %q", self.prefix)
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Path returns the artifact path for an upload:
// /{folderId}/{referenceId}/{prefix}{artifactId}{ext}
func (a *Assembler) Path(meta schema.ChunkMeta, artifactId string) string {
	return path.Join("/", meta.FolderId, meta.ReferenceId, a.prefix+artifactId+meta.Ext())
}

// Combine writes the chunks of a session in ascending index order to a new
// artifact. Every chunk must be present. The artifact is only published
// when all chunks have been copied; on error nothing is left behind.
func (a *Assembler) Combine(ctx context.Context, session *registry.Session, artifactId string) (_ *schema.Artifact, result error) {
	child, endFunc := otel.StartSpan(a.tracer, ctx, spanAssemblerName("Combine"))
	defer func() { endFunc(result) }()

	meta := session.Meta()
	if artifactId == "" {
		return nil, httpresponse.ErrBadRequest.With("missing artifact id")
	}

	// Fail before writing anything if a chunk is absent
	missing, err := a.chunks.Missing(child, meta.ChunkId, meta.TotalChunks)
	if err != nil {
		return nil, reassemblyErr(err)
	} else if len(missing) > 0 {
		return nil, chunker.ReassemblyError("upload %q is missing chunks %v", meta.ChunkId, missing)
	}

	// Stream the chunks into the artifact
	r, err := a.chunks.Open(child, meta.ChunkId, meta.TotalChunks)
	if err != nil {
		return nil, reassemblyErr(err)
	}
	defer r.Close()

	body := &errReader{r: r}
	artifactPath := a.Path(meta, artifactId)
	contentType := contentTypeOf(meta.Ext())
	obj, err := a.artifacts.CreateObject(child, schema.CreateObjectRequest{
		Path:        artifactPath,
		Body:        body,
		ContentType: contentType,
		ModTime:     time.Now(),
		Meta: schema.ObjectMeta{
			"chunkid":  meta.ChunkId,
			"filename": meta.FileName,
		},
	})
	if err != nil {
		if body.err != nil {
			err = body.err
		}
		return nil, reassemblyErr(err)
	}

	// Report the artifact as published
	if stat, err := a.artifacts.GetObject(child, schema.ObjectRequest{Path: obj.Path}); err != nil {
		a.log.Warn().Err(err).Str("path", obj.Path).Msg("artifact not found after write")
	} else {
		obj = stat
	}

	a.log.Debug().
		Str("chunkId", meta.ChunkId).
		Str("path", obj.Path).
		Int64("size", obj.Size).
		Msg("artifact written")

	// Return success
	return &schema.Artifact{
		FileId:      artifactId,
		Path:        obj.Path,
		Size:        obj.Size,
		ContentType: contentType,
		ChunkId:     meta.ChunkId,
		FileName:    meta.FileName,
		ReferenceId: meta.ReferenceId,
		FolderId:    meta.FolderId,
		CreatedAt:   time.Now(),
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanAssemblerName(op string) string {
	return schema.SchemaName + ".assembler." + op
}

func contentTypeOf(ext string) string {
	if ext == "" {
		return types.ContentTypeBinary
	} else if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
		return t
	}
	return types.ContentTypeBinary
}

// reassemblyErr marks err as a reassembly failure, keeping its cause
func reassemblyErr(err error) error {
	if errors.Is(err, chunker.ErrReassembly) {
		return err
	}
	return fmt.Errorf("%w: %w: %w", httpresponse.ErrInternalError, chunker.ErrReassembly, err)
}
