package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/b2api/v2/b2_authorize_account", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "keyid", user)
		require.Equal(t, "appkey", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{"authorizationToken": "tok-123"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	require.NoError(t, c.Authorize(context.Background(), "keyid", "appkey"))
	require.Equal(t, "tok-123", c.(*httpClient).token())
}

func TestListBucketsFiltersByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "my-bucket", body["bucketName"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"buckets": []map[string]string{{"bucketId": "b1", "bucketName": "my-bucket"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	buckets, err := c.ListBuckets(context.Background(), "my-bucket")
	require.NoError(t, err)
	require.Equal(t, []Bucket{{ID: "b1", Name: "my-bucket"}}, buckets)
}

func TestUploadSetsShaTrailerHeaderAndContentLength(t *testing.T) {
	payload := "hello world"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "hex_digits_at_end", r.Header.Get("X-Bz-Content-Sha1"))
		require.Equal(t, int64(len(payload)+40), r.ContentLength)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Len(t, body, len(payload)+40)
		_ = json.NewEncoder(w).Encode(map[string]string{"fileId": "f1"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	fileID, err := c.Upload(context.Background(), UploadAuth{UploadURL: srv.URL, UploadToken: "tok"}, UploadRequest{
		Reader:   NewSHA1SuffixReader(&stringReader{s: payload}),
		FilePath: "a/b.txt",
		FileSize: int64(len(payload)),
	})
	require.NoError(t, err)
	require.Equal(t, "f1", fileID)
}

func TestListAllPaginates(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"files":        []map[string]interface{}{{"fileId": "1", "fileName": "a", "uploadTimestamp": 100, "size": 5}},
				"nextFileName": "b",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]interface{}{{"fileId": "2", "fileName": "b", "uploadTimestamp": 200, "size": 6}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	objects, err := c.ListAll(context.Background(), "bucket1", 1)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "a", objects[0].Name)
	require.Equal(t, "b", objects[1].Name)
	require.Equal(t, 2, page)
}

func TestDoJSONSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad bucket"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.ListBuckets(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad bucket")
}

type stringReader struct {
	s   string
	pos int
}

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
