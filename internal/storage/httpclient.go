package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// httpClient is the concrete, B2-shaped implementation of Client. Every
// call is a single JSON (or raw-body) HTTP round trip; retry policy lives
// one layer up, in the worker pool (§4.6/§4.7), not here.
type httpClient struct {
	baseURL string
	http    *http.Client

	mu        sync.RWMutex
	authToken string
}

func (c *httpClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

func (c *httpClient) Authorize(ctx context.Context, keyID, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return fmt.Errorf("storage: build authorize request: %w", err)
	}
	req.SetBasicAuth(keyID, key)

	var out struct {
		AuthorizationToken string `json:"authorizationToken"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return fmt.Errorf("storage: authorize: %w", err)
	}

	c.mu.Lock()
	c.authToken = out.AuthorizationToken
	c.mu.Unlock()
	return nil
}

func (c *httpClient) ListBuckets(ctx context.Context, name string) ([]Bucket, error) {
	body := map[string]string{}
	if name != "" {
		body["bucketName"] = name
	}
	var out struct {
		Buckets []struct {
			BucketID   string `json:"bucketId"`
			BucketName string `json:"bucketName"`
		} `json:"buckets"`
	}
	if err := c.postJSON(ctx, "/b2api/v2/b2_list_buckets", body, &out); err != nil {
		return nil, fmt.Errorf("storage: list buckets: %w", err)
	}
	buckets := make([]Bucket, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = Bucket{ID: b.BucketID, Name: b.BucketName}
	}
	return buckets, nil
}

func (c *httpClient) GetUploadURL(ctx context.Context, bucketID string) (UploadAuth, error) {
	var out struct {
		UploadURL          string `json:"uploadUrl"`
		AuthorizationToken string `json:"authorizationToken"`
	}
	body := map[string]string{"bucketId": bucketID}
	if err := c.postJSON(ctx, "/b2api/v2/b2_get_upload_url", body, &out); err != nil {
		return UploadAuth{}, fmt.Errorf("storage: get upload url: %w", err)
	}
	return UploadAuth{UploadURL: out.UploadURL, UploadToken: out.AuthorizationToken}, nil
}

func (c *httpClient) Upload(ctx context.Context, auth UploadAuth, req UploadRequest) (string, error) {
	// The SHA-1 trailer is not counted in req.FileSize (§6): the reader
	// itself emits file bytes then the hex digest, so the HTTP body length
	// is FileSize + 40.
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.UploadURL, req.Reader)
	if err != nil {
		return "", fmt.Errorf("storage: build upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", auth.UploadToken)
	httpReq.Header.Set("X-Bz-File-Name", url.PathEscape(req.FilePath))
	httpReq.Header.Set("Content-Type", "b2/x-auto")
	httpReq.Header.Set("X-Bz-Content-Sha1", "hex_digits_at_end")
	httpReq.Header.Set("X-Bz-Info-src_last_modified_millis", strconv.FormatInt(req.LastModMillis, 10))
	httpReq.ContentLength = req.FileSize + 40

	var out struct {
		FileID string `json:"fileId"`
	}
	if err := c.doJSON(httpReq, &out); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", req.FilePath, err)
	}
	return out.FileID, nil
}

func (c *httpClient) DownloadByName(ctx context.Context, bucketName, name string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/file/%s/%s", c.baseURL, url.PathEscape(bucketName), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build download request: %w", err)
	}
	req.Header.Set("Authorization", c.token())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: download %s: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("storage: download %s: %s", name, resp.Status)
	}
	return resp.Body, nil
}

func (c *httpClient) Hide(ctx context.Context, bucketID, name string) error {
	body := map[string]string{"bucketId": bucketID, "fileName": name}
	var out struct{}
	if err := c.postJSON(ctx, "/b2api/v2/b2_hide_file", body, &out); err != nil {
		return fmt.Errorf("storage: hide %s: %w", name, err)
	}
	return nil
}

func (c *httpClient) DeleteFileVersion(ctx context.Context, name, fileID string) error {
	body := map[string]string{"fileName": name, "fileId": fileID}
	var out struct{}
	if err := c.postJSON(ctx, "/b2api/v2/b2_delete_file_version", body, &out); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

func (c *httpClient) ListAll(ctx context.Context, bucketID string, pageSize int) ([]ObjectInfo, error) {
	var all []ObjectInfo
	startFileName := ""
	for {
		body := map[string]interface{}{
			"bucketId":     bucketID,
			"maxFileCount": pageSize,
		}
		if startFileName != "" {
			body["startFileName"] = startFileName
		}
		var out struct {
			Files []struct {
				FileID          string `json:"fileId"`
				FileName        string `json:"fileName"`
				UploadTimestamp int64  `json:"uploadTimestamp"`
				Size            int64  `json:"size"`
			} `json:"files"`
			NextFileName string `json:"nextFileName"`
		}
		if err := c.postJSON(ctx, "/b2api/v2/b2_list_file_names", body, &out); err != nil {
			return nil, fmt.Errorf("storage: list all: %w", err)
		}
		for _, f := range out.Files {
			all = append(all, ObjectInfo{
				FileID:         f.FileID,
				Name:           f.FileName,
				ModifiedMillis: f.UploadTimestamp,
				Size:           f.Size,
			})
		}
		if out.NextFileName == "" {
			break
		}
		startFileName = out.NextFileName
	}
	return all, nil
}

func (c *httpClient) GetFileInfo(ctx context.Context, fileID string) (ObjectInfo, error) {
	body := map[string]string{"fileId": fileID}
	var out struct {
		FileID          string `json:"fileId"`
		FileName        string `json:"fileName"`
		UploadTimestamp int64  `json:"uploadTimestamp"`
		Size            int64  `json:"size"`
	}
	if err := c.postJSON(ctx, "/b2api/v2/b2_get_file_info", body, &out); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: get file info: %w", err)
	}
	return ObjectInfo{FileID: out.FileID, Name: out.FileName, ModifiedMillis: out.UploadTimestamp, Size: out.Size}, nil
}

func (c *httpClient) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.token())
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *httpClient) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
