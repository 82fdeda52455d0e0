package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stxapps/gaia-go/pkg/client"
	"github.com/stxapps/gaia-go/pkg/crypto"
	"github.com/stxapps/gaia-go/pkg/gaiaerr"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/protocol"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000001"

func mustDecode(t *testing.T, s string) Node {
	t.Helper()
	n, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return n
}

func testPublicKey(t *testing.T) string {
	t.Helper()
	pub, err := crypto.Secp256k1{}.PublicKey(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return pub
}

func decryptLeaf(t *testing.T, l *Leaf) ([]byte, bool) {
	t.Helper()
	var obj protocol.CipherObject
	if err := json.Unmarshal(l.Content, &obj); err != nil {
		t.Fatalf("leaf %s content is not a cipher object: %v", l.ID, err)
	}
	plain, err := crypto.Secp256k1{}.Decrypt(testKey, &obj)
	if err != nil {
		t.Fatalf("decrypt leaf %s: %v", l.ID, err)
	}
	return plain, obj.WasString
}

func TestTransform_PreservesShape(t *testing.T) {
	tree := mustDecode(t, `{
		"values": [{
			"values": [
				{"id": "1", "type": "putFile", "path": "notes/a.txt", "content": "hello"}
			],
			"isSequential": false
		}],
		"isSequential": true,
		"nItemsForEachCall": 5
	}`)

	out, err := New(Config{}).Transform(tree, testPublicKey(t))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	g1, ok := out.(*Group)
	if !ok || !g1.IsSequential || g1.ItemsPerBatch != 5 || len(g1.Values) != 1 {
		t.Fatalf("outer group changed: %#v", out)
	}
	g2, ok := g1.Values[0].(*Group)
	if !ok || g2.IsSequential || len(g2.Values) != 1 {
		t.Fatalf("inner group changed: %#v", g1.Values[0])
	}
	leaf, ok := g2.Values[0].(*Leaf)
	if !ok || leaf.ID != "1" || leaf.Type != TypePutFile || leaf.Path != "notes/a.txt" {
		t.Fatalf("leaf changed: %#v", g2.Values[0])
	}
	plain, wasString := decryptLeaf(t, leaf)
	if string(plain) != "hello" || !wasString {
		t.Errorf("expected text hello, got %q wasString=%v", plain, wasString)
	}

	// Input is not modified.
	orig := FindByID(tree, "1")
	if s, ok := orig.TextContent(); !ok || s != "hello" {
		t.Errorf("input leaf was modified: %s", orig.Content)
	}
}

func TestTransform_FailingLeafKeepsSiblings(t *testing.T) {
	tree := mustDecode(t, `{"values": [
		{"id": "good-1", "type": "putFile", "path": "a", "content": "one"},
		{"id": "bad", "type": "putFile", "path": "b"},
		{"id": "good-2", "type": "putFile", "path": "c", "content": "two"}
	]}`)

	out, err := New(Config{}).Transform(tree, testPublicKey(t))
	if !errors.Is(err, gaiaerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("error should name the failing leaf: %v", err)
	}
	if n := CountLeaves(out); n != 3 {
		t.Fatalf("expected 3 leaves, got %d", n)
	}
	for id, want := range map[string]string{"good-1": "one", "good-2": "two"} {
		plain, _ := decryptLeaf(t, FindByID(out, id))
		if string(plain) != want {
			t.Errorf("%s: expected %q, got %q", id, want, plain)
		}
	}
	if bad := FindByID(out, "bad"); bad.Content != nil {
		t.Errorf("failing leaf should be unchanged, got content %s", bad.Content)
	}
}

func TestTransform_LocalFile(t *testing.T) {
	root := t.TempDir()
	local := filepath.Join(root, "img", "cat.png")
	os.MkdirAll(filepath.Dir(local), 0o755)
	if err := os.WriteFile(local, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}

	tree := &Group{Values: []Node{
		&Leaf{ID: "1", Type: TypePutFile, Path: client.FileScheme + filepath.ToSlash(local)},
	}}
	p := New(Config{LocalFiles: client.FileRefs{Root: root}})
	out, err := p.Transform(tree, testPublicKey(t))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	leaf := FindByID(out, "1")
	if leaf.Path != "img/cat.png" {
		t.Errorf("expected storage path img/cat.png, got %s", leaf.Path)
	}
	plain, wasString := decryptLeaf(t, leaf)
	if string(plain) != "\x89PNG" || wasString {
		t.Errorf("expected binary png bytes, got %q wasString=%v", plain, wasString)
	}
}

func TestTransform_PassThrough(t *testing.T) {
	tree := mustDecode(t, `{"values": [
		{"id": "d", "type": "deleteFile", "path": "old.txt", "doIgnoreDoesNotExistError": true},
		{"id": "x", "type": "renameFile", "path": "a", "content": "keep"},
		{"type": "deleteFile"}
	]}`)

	out, err := New(Config{}).Transform(tree, testPublicKey(t))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	leaves := Leaves(out)
	wantKinds := []LeafKind{LeafDeleteFile, LeafPassThrough, LeafMalformed}
	for i, l := range leaves {
		if got := Classify(l); got != wantKinds[i] {
			t.Errorf("leaf %d: expected kind %d, got %d", i, wantKinds[i], got)
		}
	}
	if s, _ := leaves[1].TextContent(); s != "keep" {
		t.Errorf("pass-through content changed: %s", leaves[1].Content)
	}

	b, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"doIgnoreDoesNotExistError":true`) {
		t.Errorf("extra leaf fields lost: %s", b)
	}
}

func TestTransform_PassThroughKeepsRawFields(t *testing.T) {
	tree := mustDecode(t, `{"values": [
		{"id": 7, "type": "deleteFile", "path": "a"},
		{"id": "x", "type": "deleteFile", "path": ""},
		{"values": [], "isSequential": false, "nItemsForEachCall": 0}
	]}`)

	out, err := New(Config{}).Transform(tree, testPublicKey(t))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for _, l := range Leaves(out) {
		if Classify(l) != LeafMalformed {
			t.Errorf("leaf %#v should be malformed", l)
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	var got, want any
	json.Unmarshal(b, &got)
	json.Unmarshal([]byte(`{"values": [
		{"id": 7, "type": "deleteFile", "path": "a"},
		{"id": "x", "type": "deleteFile", "path": ""},
		{"values": [], "isSequential": false, "nItemsForEachCall": 0}
	]}`), &want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tree changed in transit:\n got %s", b)
	}
}

func TestTransform_OutputSharesNoMaps(t *testing.T) {
	tree := mustDecode(t, `{"values": [
		{"id": "d", "type": "deleteFile", "path": "old.txt", "flag": true}
	], "label": "g"}`)

	out, err := New(Config{}).Transform(tree, testPublicKey(t))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	out.(*Group).Extra["label"] = json.RawMessage(`"changed"`)
	Leaves(out)[0].Extra["flag"] = json.RawMessage(`false`)

	in := tree.(*Group)
	if string(in.Extra["label"]) != `"g"` {
		t.Errorf("input group extra changed: %s", in.Extra["label"])
	}
	if string(Leaves(in)[0].Extra["flag"]) != "true" {
		t.Errorf("input leaf extra changed: %s", Leaves(in)[0].Extra["flag"])
	}
}

func TestDecode(t *testing.T) {
	if _, err := Decode([]byte(`null`)); err == nil {
		t.Error("expected error for null tree")
	}
	if _, err := Decode([]byte(`{"values": 3}`)); err == nil {
		t.Error("expected error for non-array values")
	}
	n := mustDecode(t, `{"values": [], "isSequential": true, "label": "x"}`)
	g := n.(*Group)
	if !g.IsSequential || string(g.Extra["label"]) != `"x"` {
		t.Errorf("unexpected group %#v", g)
	}
}

func TestPerform(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"results":[]}`)
	}))
	defer ts.Close()

	c := client.New(client.Config{
		Sessions: client.StaticSession{Session: &models.Session{
			ReadURLPrefix: ts.URL + "/hub/", StorageAddress: "1Addr", AuthToken: "v1:tok", HubBaseURL: ts.URL,
		}},
		PrivateKey: testKey,
	})
	tree := mustDecode(t, `{"values": [{"id": "1", "type": "putFile", "path": "a", "content": "secret"}]}`)

	resp, err := ForClient(c).Perform(context.Background(), tree)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if resp != `{"results":[]}` {
		t.Errorf("unexpected response %s", resp)
	}
	if gotPath != "/perform-files/1Addr" || gotAuth != "bearer v1:tok" {
		t.Errorf("unexpected request %s auth=%q", gotPath, gotAuth)
	}
	if strings.Contains(string(gotBody), "secret") {
		t.Error("plaintext leaked into submitted tree")
	}
	sent := mustDecode(t, string(gotBody))
	plain, _ := decryptLeaf(t, FindByID(sent, "1"))
	if string(plain) != "secret" {
		t.Errorf("expected secret, got %q", plain)
	}
}

func TestPerform_TransformErrorNotSubmitted(t *testing.T) {
	hub := &recordingHub{}
	tree := mustDecode(t, `{"values": [{"id": "bad", "type": "putFile", "path": "a"}]}`)

	_, err := New(Config{Hub: hub}).Perform(context.Background(), tree)
	if !errors.Is(err, gaiaerr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if hub.calls != 0 {
		t.Errorf("expected no submission, got %d", hub.calls)
	}
}

func TestPerform_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, gaiaerr.ErrAccessVerification},
		{http.StatusNotFound, gaiaerr.ErrItemNotFound},
		{http.StatusRequestEntityTooLarge, gaiaerr.ErrPayloadTooLarge},
		{http.StatusBadGateway, gaiaerr.ErrServer},
		{http.StatusBadRequest, gaiaerr.ErrRequest},
	}
	for _, tt := range tests {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := client.New(client.Config{
			Sessions: client.StaticSession{Session: &models.Session{
				ReadURLPrefix: ts.URL + "/hub/", StorageAddress: "1Addr", AuthToken: "t", HubBaseURL: ts.URL,
			}},
			PrivateKey: testKey,
		})
		_, err := ForClient(c).Perform(context.Background(), &Group{})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		ts.Close()
	}
}

type recordingHub struct {
	calls int
}

func (h *recordingHub) PublicKey() (string, error) {
	return crypto.Secp256k1{}.PublicKey(testKey)
}

func (h *recordingHub) PerformFiles(context.Context, []byte) (string, error) {
	h.calls++
	return "", nil
}
