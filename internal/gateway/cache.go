package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HeaderCache is set on responses the gateway served from a cache.
const HeaderCache = "X-Narod-Gateway-Cache"

// Entry is a stored response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Response rebuilds an http.Response for req. Every call yields an
// independent body.
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(HeaderCache, "hit")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Cache is one named response cache.
type Cache interface {
	Put(ctx context.Context, key string, entry Entry) error
	Match(ctx context.Context, key string) (Entry, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// CacheStorage is the set of named caches owned by the gateway.
type CacheStorage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	Has(ctx context.Context, name string) (bool, error)
	// Keys lists cache names in creation order.
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	// Match searches every cache in creation order.
	Match(ctx context.Context, key string) (Entry, bool, error)
}

// RequestKey identifies a request in a cache: its absolute URL without fragment.
func RequestKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// bufferResponse drains resp.Body into an Entry and replaces the body with a
// readable copy, so the caller still gets the live response.
func bufferResponse(resp *http.Response, now time.Time) (Entry, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Entry{}, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	return Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: now,
	}, nil
}
