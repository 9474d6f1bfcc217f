package s3_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/s3"
	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "finance-bucket"

type mockObject struct {
	body []byte
	etag string
}

// mockS3 is an in-memory fake of the path-style S3 endpoints used by the store.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject
	puts    []*http.Request
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string]mockObject{}}
}

func (m *mockS3) set(key string, body []byte) {
	sum := md5.Sum(body)
	m.objects[key] = mockObject{body: body, etag: hex.EncodeToString(sum[:])}
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if parts[0] != bucket {
		return xmlResponse(http.StatusNotFound, "<Error><Code>NoSuchBucket</Code></Error>"), nil
	}
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if key == "" && req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			obj := m.objects[k]
			fmt.Fprintf(&b, `<Contents><Key>%s</Key><Size>%d</Size><ETag>"%s"</ETag><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>`,
				k, len(obj.body), obj.etag)
		}
		b.WriteString("</ListBucketResult>")
		return xmlResponse(http.StatusOK, b.String()), nil
	}

	if key == "" && req.Method == http.MethodHead {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}

	obj, exists := m.objects[key]
	switch req.Method {
	case http.MethodHead:
		if !exists {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{
			"Etag":           {`"` + obj.etag + `"`},
			"Content-Length": {fmt.Sprint(len(obj.body))},
		}}, nil
	case http.MethodGet:
		if !exists {
			return xmlResponse(http.StatusNotFound, "<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>"), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(obj.body)), Header: http.Header{
			"Etag":           {`"` + obj.etag + `"`},
			"Content-Length": {fmt.Sprint(len(obj.body))},
		}}, nil
	case http.MethodPut:
		m.puts = append(m.puts, req)
		ifMatch, ifNoneMatch := req.Header.Get("If-Match"), req.Header.Get("If-None-Match")
		if (ifMatch != "" && (!exists || ifMatch != `"`+obj.etag+`"`)) || (ifNoneMatch == "*" && exists) {
			return xmlResponse(http.StatusPreconditionFailed,
				"<Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>"), nil
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		m.set(key, body)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{
			"Etag": {`"` + m.objects[key].etag + `"`},
		}}, nil
	}
	return xmlResponse(http.StatusMethodNotAllowed, "<Error><Code>MethodNotAllowed</Code></Error>"), nil
}

func newStore(t *testing.T, m *mockS3) *s3.Store {
	store, err := s3.New(context.Background(), s3.Config{
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		Prefix:          "data",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: m},
	})
	require.NoError(t, err)
	return store
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := s3.New(context.Background(), s3.Config{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStore_ListAndFetch(t *testing.T) {
	m := newMockS3()
	m.set("data/KIOSC_Finance_Data.xlsx", []byte("workbook"))
	m.set("data/notes.txt", []byte("ignored"))
	m.set("data/archive/old.xlsx", []byte("nested"))
	store := newStore(t, m)
	ctx := context.Background()

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "KIOSC_Finance_Data.xlsx", files[0].Name)
	assert.Equal(t, m.objects["data/KIOSC_Finance_Data.xlsx"].etag, files[0].Revision)

	data, err := store.FetchFile(ctx, "kiosc_finance_data.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook"), data)

	_, err = store.FetchFile(ctx, "missing.xlsx")
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)

	exists, err := store.FileExists(ctx, "KIOSC_FINANCE_DATA.xlsx")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_PutCreatesWithIfNoneMatch(t *testing.T) {
	m := newMockS3()
	store := newStore(t, m)

	rev, err := store.PutFile(context.Background(), "New.xlsx", []byte("v1"), "")
	require.NoError(t, err)
	assert.Equal(t, m.objects["data/New.xlsx"].etag, rev)
	require.Len(t, m.puts, 1)
	assert.Equal(t, "*", m.puts[0].Header.Get("If-None-Match"))

	rev2, err := store.PutFile(context.Background(), "New.xlsx", []byte("v2"), "")
	require.NoError(t, err)
	assert.NotEqual(t, rev, rev2)
	assert.Equal(t, `"`+rev+`"`, m.puts[1].Header.Get("If-Match"))
}

func TestStore_PutConflictsOnStaleETag(t *testing.T) {
	m := newMockS3()
	m.set("data/KIOSC_Finance_Data.xlsx", []byte("v1"))
	store := newStore(t, m)
	ctx := context.Background()

	_, err := store.FetchFile(ctx, "KIOSC_Finance_Data.xlsx")
	require.NoError(t, err)

	m.mu.Lock()
	m.set("data/KIOSC_Finance_Data.xlsx", []byte("changed elsewhere"))
	m.mu.Unlock()

	_, err = store.PutFile(ctx, "KIOSC_Finance_Data.xlsx", []byte("v2"), "Update data file: KIOSC_Finance_Data.xlsx")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, []byte("changed elsewhere"), m.objects["data/KIOSC_Finance_Data.xlsx"].body)
}

func TestStore_PutWritesBackToMatchedObject(t *testing.T) {
	m := newMockS3()
	m.set("data/KIOSC_Finance_Data.xlsx", []byte("v1"))
	store := newStore(t, m)
	ctx := context.Background()

	_, err := store.FetchFile(ctx, "kiosc_finance_data.xlsx")
	require.NoError(t, err)

	_, err = store.PutFile(ctx, "kiosc_finance_data.xlsx", []byte("v2"), "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), m.objects["data/KIOSC_Finance_Data.xlsx"].body)
	_, stray := m.objects["data/kiosc_finance_data.xlsx"]
	assert.False(t, stray)
}

func TestStore_PutWithoutFetchFindsExistingObject(t *testing.T) {
	m := newMockS3()
	m.set("data/KIOSC_Finance_Data.xlsx", []byte("v1"))
	store := newStore(t, m)

	_, err := store.PutFile(context.Background(), "kiosc_finance_data.xlsx", []byte("v2"), "")
	require.NoError(t, err)
	require.Len(t, m.puts, 1)
	assert.NotEmpty(t, m.puts[0].Header.Get("If-Match"))
	assert.Equal(t, []byte("v2"), m.objects["data/KIOSC_Finance_Data.xlsx"].body)
}

func TestStore_Ping(t *testing.T) {
	m := newMockS3()
	store := newStore(t, m)
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, s3.DriverName, store.Driver())
}
