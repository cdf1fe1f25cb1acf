package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	// Packages
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	assembler "github.com/mutablelogic/go-chunker/pkg/assembler"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	chunkstore "github.com/mutablelogic/go-chunker/pkg/chunkstore"
	coordinator "github.com/mutablelogic/go-chunker/pkg/coordinator"
	httphandler "github.com/mutablelogic/go-chunker/pkg/httphandler"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	version "github.com/mutablelogic/go-chunker/pkg/version"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	otel "go.opentelemetry.io/otel"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server RunServerCommand `cmd:"" name:"server" help:"Run HTTP server." group:"SERVER"`
}

type RunServerCommand struct {
	Temp   string        `name:"temp" env:"CHUNKER_TEMP" default:"file://chunks${TMP}/chunker/chunks" help:"Backend URL for chunks in transit (e.g. mem://chunks, file://chunks/var/tmp, s3://bucket/prefix)"`
	Files  string        `name:"files" env:"CHUNKER_FILES" default:"file://files${TMP}/chunker/files" help:"Backend URL for assembled files (e.g. file://files/var/lib/chunker, s3://bucket/prefix)"`
	Prefix string        `name:"artifact-prefix" default:"Attachment_" help:"File name prefix of assembled files"`
	Expiry time.Duration `name:"expiry" default:"24h" help:"Cancel uploads with no activity for this long (0 disables)"`
	S3     struct {
		Endpoint  string `name:"endpoint" env:"CHUNKER_S3_ENDPOINT" help:"Endpoint of an S3-compatible service"`
		Region    string `name:"region" env:"AWS_REGION" help:"S3 region"`
		AccessKey string `name:"access-key" env:"AWS_ACCESS_KEY_ID" help:"S3 access key"`
		SecretKey string `name:"secret-key" env:"AWS_SECRET_ACCESS_KEY" help:"S3 secret key"`
		Anonymous bool   `name:"anonymous" help:"Use anonymous S3 credentials"`
	} `embed:"" prefix:"s3."`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServerCommand) Run(ctx *Globals) error {
	tracer := otel.Tracer(schema.SchemaName)
	log := ctx.Logger().With().Str("service", schema.SchemaName).Logger()

	// Open the backends
	opts, err := cmd.backendOpts(ctx.ctx)
	if err != nil {
		return err
	}
	opts = append(opts, backend.WithTracer(tracer))
	tmp, err := backend.NewBlobBackend(ctx.ctx, cmd.Temp, append(opts, backend.WithCreateDir())...)
	if err != nil {
		return fmt.Errorf("temp backend: %w", err)
	}
	defer tmp.Close()
	files, err := backend.NewBlobBackend(ctx.ctx, cmd.Files, append(opts, backend.WithCreateDir())...)
	if err != nil {
		return fmt.Errorf("files backend: %w", err)
	}
	defer files.Close()

	// Create the coordinator
	chunks, err := chunkstore.New(tmp, chunkstore.WithTracer(tracer), chunkstore.WithLogger(log))
	if err != nil {
		return err
	}
	asm, err := assembler.New(chunks, files,
		assembler.WithTracer(tracer),
		assembler.WithLogger(log),
		assembler.WithArtifactPrefix(cmd.Prefix),
	)
	if err != nil {
		return err
	}
	coord, err := coordinator.New(chunks, asm,
		coordinator.WithTracer(tracer),
		coordinator.WithMeter(otel.Meter(schema.SchemaName)),
		coordinator.WithLogger(log),
		coordinator.WithExpiry(cmd.Expiry, 0),
	)
	if err != nil {
		return err
	}

	return serve(ctx, coord)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// backendOpts returns the options for s3:// backends
func (cmd *RunServerCommand) backendOpts(ctx context.Context) ([]backend.Opt, error) {
	if !strings.HasPrefix(cmd.Temp, "s3:") && !strings.HasPrefix(cmd.Files, "s3:") {
		return nil, nil
	}

	var opts []backend.Opt
	if cmd.S3.Endpoint != "" {
		opts = append(opts, backend.WithEndpoint(cmd.S3.Endpoint))
	}
	if cmd.S3.Anonymous {
		opts = append(opts, backend.WithAnonymous())
	}

	// Static credentials override the default credential chain
	var loadOpts []func(*config.LoadOptions) error
	if cmd.S3.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cmd.S3.Region))
	}
	if cmd.S3.AccessKey != "" || cmd.S3.SecretKey != "" {
		if cmd.S3.AccessKey == "" || cmd.S3.SecretKey == "" {
			return nil, errors.New("both --s3.access-key and --s3.secret-key are required")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cmd.S3.AccessKey, cmd.S3.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return append(opts, backend.WithAWSConfig(cfg)), nil
}

// serve registers HTTP handlers and runs the server and the expiry reaper
// until the context is done.
func serve(ctx *Globals, coord *coordinator.Coordinator) error {
	// Create the router
	router, err := httprouter.NewRouter(ctx.ctx, ctx.HTTP.Prefix, ctx.HTTP.Origin, schema.SchemaName, version.Version())
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// Register HTTP handlers
	if err := httphandler.RegisterHandlers(coord, router); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	// Create the HTTP server
	srv, err := httpserver.New(ctx.HTTP.Addr, http.Handler(router), nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx.log.Info().Str("version", version.Version()).Str("addr", ctx.HTTP.Addr).Str("prefix", ctx.HTTP.Prefix).Msg("chunker started")
	g, gctx := errgroup.WithContext(ctx.ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return coord.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	ctx.log.Info().Msg("chunker stopped")
	return nil
}
