package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/models"
)

const (
	testKey  = "0000000000000000000000000000000000000000000000000000000000000001"
	otherKey = "0000000000000000000000000000000000000000000000000000000000000002"
	testAddr = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
)

type object struct {
	body        []byte
	contentType string
}

// fakeHub is an in-memory hub serving store, read, delete, list and perform.
type fakeHub struct {
	t  *testing.T
	ts *httptest.Server

	mu       sync.Mutex
	objects  map[string]object // "<address>/<path>"
	requests []string          // "METHOD path"
	status   int               // forced status for every request when non-zero
	pageSize int
	batches  [][]byte
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{t: t, objects: make(map[string]object), pageSize: 2}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /store/{addr}/{path...}", h.store)
	mux.HandleFunc("GET /hub/{addr}/{path...}", h.read)
	mux.HandleFunc("DELETE /delete/{addr}/{path...}", h.delete)
	mux.HandleFunc("POST /list-files/{addr}", h.list)
	mux.HandleFunc("POST /perform-files/{addr}", h.perform)

	h.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.requests = append(h.requests, r.Method+" "+r.URL.Path)
		status := h.status
		h.mu.Unlock()
		if status != 0 {
			http.Error(w, "forced", status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(h.ts.Close)
	return h
}

func (h *fakeHub) session(addr string) *models.Session {
	return &models.Session{
		ReadURLPrefix:  h.ts.URL + "/hub/",
		StorageAddress: addr,
		AuthToken:      "v1:test-token",
		HubBaseURL:     h.ts.URL,
	}
}

func (h *fakeHub) client(key, addr string) *Client {
	return New(Config{
		Sessions:   StaticSession{Session: h.session(addr)},
		PrivateKey: key,
	})
}

func (h *fakeHub) store(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "bearer v1:test-token" {
		h.t.Errorf("unexpected authorization header %q", got)
	}
	body, _ := io.ReadAll(r.Body)
	key := r.PathValue("addr") + "/" + r.PathValue("path")
	h.mu.Lock()
	h.objects[key] = object{body: body, contentType: r.Header.Get("Content-Type")}
	h.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"publicURL": h.ts.URL + "/hub/" + key})
}

func (h *fakeHub) read(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	obj, ok := h.objects[r.PathValue("addr")+"/"+r.PathValue("path")]
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	w.Write(obj.body)
}

func (h *fakeHub) delete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("addr") + "/" + r.PathValue("path")
	h.mu.Lock()
	_, ok := h.objects[key]
	delete(h.objects, key)
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *fakeHub) list(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page *string `json:"page"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	prefix := r.PathValue("addr") + "/"
	h.mu.Lock()
	names := []string{}
	for k := range h.objects {
		if strings.HasPrefix(k, prefix) {
			names = append(names, strings.TrimPrefix(k, prefix))
		}
	}
	h.mu.Unlock()
	sort.Strings(names)

	start := 0
	if req.Page != nil {
		for i, n := range names {
			if n == *req.Page {
				start = i
				break
			}
		}
	}
	end := min(start+h.pageSize, len(names))
	resp := map[string]any{"entries": names[start:end], "page": nil}
	if end < len(names) {
		resp["page"] = names[end]
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *fakeHub) perform(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.batches = append(h.batches, body)
	h.mu.Unlock()
	io.WriteString(w, `{"status":"ok"}`)
}

func (h *fakeHub) put(addr, path string, obj object) {
	h.mu.Lock()
	h.objects[addr+"/"+path] = obj
	h.mu.Unlock()
}

func (h *fakeHub) get(addr, path string) (object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, ok := h.objects[addr+"/"+path]
	return obj, ok
}

func (h *fakeHub) requestLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

func (h *fakeHub) countRequests(prefix string) int {
	n := 0
	for _, r := range h.requestLog() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func addressOf(t *testing.T, key string) string {
	t.Helper()
	addr, err := crypto.AddressFromPrivateKey(crypto.Secp256k1{}, key)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	return addr
}
