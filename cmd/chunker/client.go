package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	// Packages
	humanize "github.com/dustin/go-humanize"
	client "github.com/mutablelogic/go-client"
	httpclient "github.com/mutablelogic/go-chunker/pkg/httpclient"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ClientCommands struct {
	Upload UploadCommand `cmd:"" group:"CLIENT" help:"Upload a file in chunks"`
	Cancel CancelCommand `cmd:"" group:"CLIENT" help:"Cancel an upload in progress"`
	Status StatusCommand `cmd:"" group:"CLIENT" help:"Show the state of an upload"`
	List   ListCommand   `cmd:"" group:"CLIENT" help:"List uploads in progress and failed uploads"`
}

type UploadCommand struct {
	Path        string `arg:"" type:"existingfile" help:"Local file to upload"`
	ChunkId     string `name:"id" help:"Upload identifier (default: random UUID)"`
	ChunkSize   string `name:"chunk-size" default:"5MiB" help:"Size of each chunk"`
	Concurrency int    `name:"concurrency" short:"c" default:"4" help:"Number of chunks sent at the same time"`
	Retries     int    `name:"retries" default:"2" help:"Number of times a failed chunk is sent again"`
	FolderId    string `name:"folder" help:"Folder identifier of the assembled file"`
	ReferenceId string `name:"reference" help:"Reference identifier of the assembled file"`
}

type CancelCommand struct {
	ChunkId string `arg:"" name:"id" help:"Upload identifier"`
}

type StatusCommand struct {
	ChunkId string `arg:"" name:"id" help:"Upload identifier"`
}

type ListCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *UploadCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	size, err := humanize.ParseBytes(cmd.ChunkSize)
	if err != nil {
		return fmt.Errorf("invalid chunk size %q: %w", cmd.ChunkSize, err)
	}

	opts := []httpclient.UploadOpt{
		httpclient.WithChunkSize(int64(size)),
		httpclient.WithConcurrency(cmd.Concurrency),
		httpclient.WithRetry(cmd.Retries, time.Second),
		httpclient.WithReference(cmd.FolderId, cmd.ReferenceId),
		httpclient.WithProgress(func(chunks, total int, written, size int64) {
			fmt.Fprintf(os.Stderr, "\r%d/%d chunks  %s of %s", chunks, total, humanize.IBytes(uint64(written)), humanize.IBytes(uint64(size)))
		}),
	}
	if cmd.ChunkId != "" {
		opts = append(opts, httpclient.WithChunkId(cmd.ChunkId))
	}

	start := time.Now()
	response, err := c.UploadFile(ctx.ctx, cmd.Path, opts...)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	ctx.log.Info().
		Str("chunkId", response.ChunkId).
		Str("fileId", response.FileId).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg(response.Message)
	return prettyJSON(response)
}

func (cmd *CancelCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	response, err := c.CancelUpload(ctx.ctx, cmd.ChunkId)
	if err != nil {
		return err
	}
	return prettyJSON(response)
}

func (cmd *StatusCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	session, err := c.GetSession(ctx.ctx, cmd.ChunkId)
	if err != nil {
		return err
	}
	return prettyJSON(session)
}

func (cmd *ListCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	sessions, err := c.ListSessions(ctx.ctx)
	if err != nil {
		return err
	}
	if ctx.Debug {
		return prettyJSON(sessions)
	}
	return printSessions(sessions)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Client builds an HTTP client from the global HTTP flags.
func (g *Globals) Client() (*httpclient.Client, error) {
	endpoint, err := g.clientEndpoint()
	if err != nil {
		return nil, err
	}
	opts := []client.ClientOpt{}
	if g.Debug {
		opts = append(opts, client.OptTrace(os.Stderr, false))
	}
	if g.HTTP.Timeout > 0 {
		opts = append(opts, client.OptTimeout(g.HTTP.Timeout))
	}
	return httpclient.New(endpoint, opts...)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (g *Globals) clientEndpoint() (string, error) {
	scheme := "http"
	host, port, err := net.SplitHostPort(g.HTTP.Addr)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	portn, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return "", err
	}
	if portn == 443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%v%s", scheme, host, portn, types.NormalisePath(g.HTTP.Prefix)), nil
}

func printSessions(sessions *schema.SessionList) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSIZE\tCHUNKS\tSTATUS\tUPDATED")
	for _, s := range sessions.Body {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			s.ChunkId, s.FileName, humanize.IBytes(uint64(s.FileSize)),
			s.ChunksReceived, s.TotalChunks, s.Status, humanize.Time(s.ModifiedAt),
		)
	}
	return w.Flush()
}

func prettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
