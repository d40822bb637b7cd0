// Package storage defines the thin object-storage adaptor contract the
// backup engine is built against (§6) and a concrete HTTP-based
// implementation of it. No object-storage SDK appears anywhere in the
// retrieved reference pack, so the concrete client is built directly on
// net/http, following the resilient-client construction pattern the nasbox
// API gateway uses for its own outbound HTTP calls (see DESIGN.md).
package storage

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Bucket is one remote bucket's identity.
type Bucket struct {
	ID   string
	Name string
}

// ObjectInfo is the subset of remote object metadata the backup engine
// consumes.
type ObjectInfo struct {
	FileID         string
	Name           string
	ModifiedMillis int64
	Size           int64
}

// UploadRequest describes one object upload, including the parameters the
// wire contract requires alongside the byte stream (§6).
type UploadRequest struct {
	// Reader must emit exactly FileSize bytes followed by a 40-hex-character
	// SHA-1 digest of those bytes. Callers wrap their plaintext/ciphertext
	// reader with NewSHA1SuffixReader to satisfy this.
	Reader         io.Reader
	FilePath       string
	FileSize       int64
	LastModMillis  int64
}

// UploadAuth is a per-worker upload endpoint/credential pair, obtained once
// and reused across that worker's uploads (§4.6 step 5).
type UploadAuth struct {
	UploadURL   string
	UploadToken string
}

// Client is the contract the upload, download and clean pipelines program
// against. A concrete implementation must be safe for concurrent use by
// every worker in the pool.
type Client interface {
	// Authorize exchanges "<id>:<key>" for a session auth token.
	Authorize(ctx context.Context, keyID, key string) error

	// ListBuckets resolves bucket names to ids. name filters to a single
	// bucket when non-empty.
	ListBuckets(ctx context.Context, name string) ([]Bucket, error)

	// GetUploadURL obtains a per-worker upload endpoint, bound to the
	// storage API's notion of an upload credential.
	GetUploadURL(ctx context.Context, bucketID string) (UploadAuth, error)

	// Upload streams req.Reader to the given upload endpoint.
	Upload(ctx context.Context, auth UploadAuth, req UploadRequest) (fileID string, err error)

	// DownloadByName fetches an object's full contents by its remote name.
	DownloadByName(ctx context.Context, bucketName, name string) (io.ReadCloser, error)

	// Hide soft-deletes an object by name; a subsequent upload of the same
	// name creates a new, visible version.
	Hide(ctx context.Context, bucketID, name string) error

	// DeleteFileVersion hard-deletes one specific object version.
	DeleteFileVersion(ctx context.Context, name, fileID string) error

	// ListAll lists every object in a bucket, paginated at pageSize per
	// request.
	ListAll(ctx context.Context, bucketID string, pageSize int) ([]ObjectInfo, error)

	// GetFileInfo fetches metadata for one object by id.
	GetFileInfo(ctx context.Context, fileID string) (ObjectInfo, error)
}

// NewHTTPClient builds a Client backed by net/http, pointed at baseURL (the
// storage provider's API root).
func NewHTTPClient(baseURL string) Client {
	return &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}
