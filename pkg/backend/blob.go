package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"syscall"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	config "github.com/aws/aws-sdk-go-v2/config"
	s3 "github.com/aws/aws-sdk-go-v2/service/s3"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type blobbackend struct {
	*opt
	bucket       *blob.Bucket
	bucketPrefix string // key prefix for bucket operations (empty for file://)
}

var _ Backend = (*blobbackend)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBlobBackend creates a new blob backend using Go CDK.
// Supported URL schemes: s3://, file://, mem://
// Examples:
//   - "s3://my-bucket/prefix?region=us-east-1"
//   - "file://name/path/to/directory"
//   - "mem://name"
//
// For S3 URLs, you can optionally provide an aws.Config via WithAWSConfig()
// for full control over AWS SDK configuration.
func NewBlobBackend(ctx context.Context, u string, opts ...Opt) (*blobbackend, error) {
	self := new(blobbackend)

	// Set the options
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else if opt, err := apply(url, opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Validate the backend name (URL host) is a valid identifier
	if !types.IsIdentifier(self.url.Host) {
		return nil, fmt.Errorf("backend name %q must be a valid identifier (letter, digits, underscores, hyphens; max 64 chars)", self.url.Host)
	}

	// For s3/mem the path is a key prefix within the bucket.
	// For file:// the path is the bucket root directory.
	if self.url.Scheme != "file" {
		self.bucketPrefix = strings.Trim(self.url.Path, "/")
	}

	// Open the bucket
	var bucket *blob.Bucket
	var err error
	switch self.url.Scheme {
	case "s3":
		bucket, err = self.openS3(ctx)
	case "file":
		if !path.IsAbs(self.url.Path) {
			return nil, fmt.Errorf("backend dir %q must be an absolute path", self.url.Path)
		}
		openURL := &url.URL{Scheme: "file", Path: self.url.Path}
		if self.createDir {
			openURL.RawQuery = "create_dir=true"
		}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	case "mem":
		bucket, err = blob.OpenBucket(ctx, "mem://")
	default:
		return nil, fmt.Errorf("unsupported backend scheme %q", self.url.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	return self, nil
}

// NewFileBackend creates a file-based backend with a logical name.
// name must be a valid identifier (see types.IsIdentifier): starts with a
// letter, contains only letters, digits, underscores, or hyphens, max 64 chars.
// dir must be an absolute path; if it doesn't start with "/" an error is returned.
func NewFileBackend(ctx context.Context, name, dir string, opts ...Opt) (*blobbackend, error) {
	if !path.IsAbs(dir) {
		return nil, fmt.Errorf("backend dir %q must be an absolute path", dir)
	}
	return NewBlobBackend(ctx, "file://"+name+path.Clean(dir), opts...)
}

// Close the backend
func (b *blobbackend) Close() error {
	var result error
	if b.bucket != nil {
		result = errors.Join(result, b.bucket.Close())
		b.bucket = nil
	}

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the name of the backend (the host component of the URL)
func (b *blobbackend) Name() string {
	return b.url.Host
}

// URL returns the backend URL, without the host for file:// backends
func (b *blobbackend) URL() *url.URL {
	u := *b.url
	return &u
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// openS3 opens an S3 bucket named by the URL host. The AWS configuration is
// either the one provided with WithAWSConfig or loaded from the environment.
func (b *blobbackend) openS3(ctx context.Context) (*blob.Bucket, error) {
	var cfg aws.Config
	if b.awsConfig != nil {
		cfg = b.awsConfig.Copy()
	} else if loaded, err := config.LoadDefaultConfig(ctx, config.WithRegion(b.url.Query().Get("region"))); err != nil {
		return nil, err
	} else {
		cfg = loaded
	}

	// Each S3 API call produces a child span when tracing
	if b.tracer != nil {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.endpoint != "" {
			o.BaseEndpoint = aws.String(b.endpoint)
			o.UsePathStyle = true
		}
		if b.anonymous {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})
	return s3blob.OpenBucket(ctx, client, b.url.Host, nil)
}

// storageKey returns the blob storage key for a logical path, prepending
// the bucket prefix for s3/mem backends.
func (b *blobbackend) storageKey(p string) string {
	sk := strings.TrimPrefix(cleanPath(p), "/")
	if b.bucketPrefix != "" {
		if sk == "" {
			return b.bucketPrefix + "/"
		}
		return b.bucketPrefix + "/" + sk
	}
	return sk
}

// pathFromStorageKey converts a blob storage key back to a logical path
// by stripping the bucket prefix (for s3/mem with bucket prefix).
func (b *blobbackend) pathFromStorageKey(sk string) string {
	if b.bucketPrefix != "" {
		sk = strings.TrimPrefix(sk, b.bucketPrefix+"/")
	}
	return cleanPath(sk)
}

func (b *blobbackend) attrsToObject(objPath string, attrs *blob.Attributes) *schema.Object {
	obj := &schema.Object{
		Name:        b.Name(),
		Path:        objPath,
		Size:        attrs.Size,
		ModTime:     attrs.ModTime,
		ContentType: attrs.ContentType,
	}
	if len(attrs.Metadata) > 0 {
		obj.Meta = attrs.Metadata
	}
	return obj
}

// cleanPath returns an absolute, cleaned path. Traversal outside the root is
// not possible ("/../../etc/passwd" becomes "/etc/passwd").
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// blobErr wraps a go-cloud blob error with the appropriate httpresponse error
func blobErr(err error, url string) error {
	if err == nil {
		return nil
	}
	// Check for OS-level errors before go-cloud classification, since the
	// gcerrors default path wraps with %v and breaks the chain.
	if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.EEXIST) {
		return httpresponse.ErrBadRequest.Withf("cannot overwrite directory with file: %q", url)
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("object %q not found", url)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", url)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", url, err)
	case gcerrors.FailedPrecondition:
		return httpresponse.ErrConflict.Withf("precondition failed for %q: %v", url, err)
	case gcerrors.Canceled:
		return err
	default:
		return httpresponse.ErrInternalError.Withf("blob operation failed: %v", err)
	}
}

// isBlobNotFound reports whether err is a not-found error from the bucket
func isBlobNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
