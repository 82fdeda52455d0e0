package client

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/stxapps/gaia-go/pkg/models"
)

// EscapePath percent-encodes each segment of a storage path, keeping "/".
func EscapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func storeURL(s *models.Session, path string) string {
	return strings.TrimRight(s.HubBaseURL, "/") + "/store/" + s.StorageAddress + "/" + EscapePath(path)
}

func deleteURL(s *models.Session, path string) string {
	return strings.TrimRight(s.HubBaseURL, "/") + "/delete/" + s.StorageAddress + "/" + EscapePath(path)
}

func listURL(s *models.Session) string {
	return strings.TrimRight(s.HubBaseURL, "/") + "/list-files/" + s.StorageAddress
}

func performURL(s *models.Session) string {
	return strings.TrimRight(s.HubBaseURL, "/") + "/perform-files/" + s.StorageAddress
}

// LocalFiles recognises paths that refer to files on the local machine.
type LocalFiles interface {
	// Resolve reports whether path is a local reference. If so it returns the
	// filesystem location and the storage-relative path to use remotely.
	Resolve(path string) (localPath, storagePath string, ok bool)
}

// FileScheme prefixes local file references.
const FileScheme = "file://"

// FileRefs treats "file://" paths as local references. Storage paths are
// relative to Root when the file lies under it, else the file's base name.
type FileRefs struct {
	Root string
}

// Resolve implements LocalFiles.
func (f FileRefs) Resolve(path string) (string, string, bool) {
	if !strings.HasPrefix(path, FileScheme) {
		return "", "", false
	}
	local := filepath.FromSlash(strings.TrimPrefix(path, FileScheme))
	if f.Root != "" {
		if rel, err := filepath.Rel(f.Root, local); err == nil && !escapes(rel) {
			return local, filepath.ToSlash(rel), true
		}
	}
	return local, filepath.Base(local), true
}

// escapes reports whether a Rel result points outside its base.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// readLocal returns the bytes of a local reference, or ok=false if the file
// does not exist or cannot be read.
func readLocal(local string) ([]byte, bool) {
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, false
	}
	return data, true
}
