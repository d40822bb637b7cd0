package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/coldvault/coldvault-agent/internal/storage"
)

// fakeClient is an in-memory storage.Client double for exercising the
// upload/download/clean pipelines without a network round trip.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	hidden  map[string]bool
	nextID   int
	fileIDs  map[string]string // name -> fileId of the current version
	modMilli map[string]int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string][]byte),
		hidden:  make(map[string]bool),
		fileIDs:  make(map[string]string),
		modMilli: make(map[string]int64),
	}
}

func (c *fakeClient) Authorize(ctx context.Context, keyID, key string) error { return nil }

func (c *fakeClient) ListBuckets(ctx context.Context, name string) ([]storage.Bucket, error) {
	return []storage.Bucket{{ID: "bucket-1", Name: name}}, nil
}

func (c *fakeClient) GetUploadURL(ctx context.Context, bucketID string) (storage.UploadAuth, error) {
	return storage.UploadAuth{UploadURL: "fake://upload", UploadToken: "tok"}, nil
}

func (c *fakeClient) Upload(ctx context.Context, auth storage.UploadAuth, req storage.UploadRequest) (string, error) {
	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := fmt.Sprintf("file-%d", c.nextID)
	c.objects[req.FilePath] = data
	c.hidden[req.FilePath] = false
	c.fileIDs[req.FilePath] = id
	c.modMilli[req.FilePath] = req.LastModMillis
	return id, nil
}

func (c *fakeClient) DownloadByName(ctx context.Context, bucketName, name string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[name]
	if !ok {
		return nil, fmt.Errorf("fake storage: object %s not found", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeClient) Hide(ctx context.Context, bucketID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden[name] = true
	return nil
}

func (c *fakeClient) DeleteFileVersion(ctx context.Context, name, fileID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, name)
	delete(c.fileIDs, name)
	return nil
}

func (c *fakeClient) ListAll(ctx context.Context, bucketID string, pageSize int) ([]storage.ObjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []storage.ObjectInfo
	for name, data := range c.objects {
		if c.hidden[name] {
			continue
		}
		out = append(out, storage.ObjectInfo{FileID: c.fileIDs[name], Name: name, Size: int64(len(data))})
	}
	return out, nil
}

func (c *fakeClient) GetFileInfo(ctx context.Context, fileID string) (storage.ObjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, id := range c.fileIDs {
		if id == fileID {
			return storage.ObjectInfo{FileID: id, Name: name, Size: int64(len(c.objects[name])), ModifiedMillis: c.modMilli[name]}, nil
		}
	}
	return storage.ObjectInfo{}, fmt.Errorf("fake storage: file id %s not found", fileID)
}
