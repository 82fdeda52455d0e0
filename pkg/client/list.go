package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/metrics"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

// MaxListPages bounds the number of pages one listing may fetch. A hub that
// keeps returning a page token past this is treated as misbehaving.
const MaxListPages = 65536

const opList = "listFiles"

// FileIterator walks the names in the bucket, fetching pages on demand.
//
//	it := c.Files(ctx)
//	for it.Next() {
//		fmt.Println(it.Name())
//	}
//	if err := it.Err(); err != nil { ... }
type FileIterator struct {
	c   *Client
	ctx context.Context

	session *models.Session
	page    *string
	last    bool
	fetches int

	entries []string
	pos     int
	name    string
	count   int
	err     error
}

// Files returns a lazy iterator over the bucket's file names. No request is
// made until the first call to Next.
func (c *Client) Files(ctx context.Context) *FileIterator {
	return &FileIterator{c: c, ctx: ctx}
}

// Next advances to the next name. It returns false when the listing is
// exhausted or an error occurred.
func (it *FileIterator) Next() bool {
	for {
		if it.err != nil {
			return false
		}
		if it.pos < len(it.entries) {
			it.name = it.entries[it.pos]
			it.pos++
			it.count++
			return true
		}
		if it.last {
			return false
		}
		it.fetch()
	}
}

// Name is the current entry.
func (it *FileIterator) Name() string { return it.name }

// Count is the number of entries delivered so far.
func (it *FileIterator) Count() int { return it.count }

// Err returns the error that stopped iteration, if any.
func (it *FileIterator) Err() error { return it.err }

func (it *FileIterator) fetch() {
	if it.session == nil {
		s, err := it.c.Session(it.ctx)
		if err != nil {
			it.err = err
			return
		}
		it.session = s
	}

	body, err := json.Marshal(protocol.ListFilesRequest{Page: it.page})
	if err != nil {
		it.err = gaiaerr.Wrap(gaiaerr.KindConfiguration, opList, err)
		return
	}
	resp, err := it.c.do(it.ctx, request{
		op:          opList,
		method:      http.MethodPost,
		url:         listURL(it.session),
		body:        body,
		contentType: protocol.ContentTypeJSON,
		token:       it.session.AuthToken,
		endpoint:    gaiaerr.EndpointList,
	})
	if err != nil {
		it.err = err
		return
	}
	it.fetches++
	metrics.RecordListPage()

	entries, next, err := parseListPage(resp.body)
	if err != nil {
		it.err = err
		return
	}
	if next != nil && it.fetches >= MaxListPages {
		it.err = gaiaerr.New(gaiaerr.KindInvalidResponse, opList,
			fmt.Sprintf("hub returned more than %d pages", MaxListPages))
		return
	}
	it.entries, it.pos = entries, 0
	it.page = next
	it.last = next == nil
}

// parseListPage requires both keys to be present; page may be null.
func parseListPage(body []byte) ([]string, *string, error) {
	var raw protocol.ListFilesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opList, err)
	}
	if raw.Entries == nil || bytes.Equal(raw.Entries, []byte("null")) {
		return nil, nil, gaiaerr.New(gaiaerr.KindInvalidResponse, opList, "response has no entries")
	}
	if raw.Page == nil {
		return nil, nil, gaiaerr.New(gaiaerr.KindInvalidResponse, opList, "response has no page key")
	}

	var entries []string
	if err := json.Unmarshal(raw.Entries, &entries); err != nil {
		return nil, nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opList, fmt.Errorf("entries: %w", err))
	}
	var page *string
	if err := json.Unmarshal(raw.Page, &page); err != nil {
		return nil, nil, gaiaerr.Wrap(gaiaerr.KindInvalidResponse, opList, fmt.Errorf("page: %w", err))
	}
	return entries, page, nil
}

// ListFiles calls fn for each file name until fn returns false or the
// listing ends, and returns the number of names delivered. On error the
// count is -1.
func (c *Client) ListFiles(ctx context.Context, fn func(name string) bool) (int, error) {
	it := c.Files(ctx)
	for it.Next() {
		if !fn(it.Name()) {
			break
		}
	}
	if err := it.Err(); err != nil {
		return -1, err
	}
	return it.Count(), nil
}
