package simplemanga

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// HandleScheme prefixes every display handle URL.
const HandleScheme = "blob:"

type handleEntry struct {
	data        []byte
	contentType string
}

// HandleRegistry owns the process-local display handles of loaded images.
//
// A handle is acquired on upload or resolve and must be released when the
// page holding it is dropped. Handles are never persisted.
type HandleRegistry struct {
	mu      sync.RWMutex
	handles map[string]handleEntry
}

// NewHandleRegistry creates an empty registry
func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{handles: make(map[string]handleEntry)}
}

// Acquire registers data and returns its handle URL.
func (r *HandleRegistry) Acquire(data []byte) string {
	id := uuid.NewString()
	entry := handleEntry{data: data, contentType: http.DetectContentType(data)}

	r.mu.Lock()
	r.handles[id] = entry
	r.mu.Unlock()

	return HandleScheme + id
}

// Open returns the bytes and sniffed content type behind a handle.
func (r *HandleRegistry) Open(url string) ([]byte, string, bool) {
	id, ok := HandleID(url)
	if !ok {
		return nil, "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.handles[id]
	if !ok {
		return nil, "", false
	}
	return entry.data, entry.contentType, true
}

// Owns reports whether url is a live handle of this registry.
func (r *HandleRegistry) Owns(url string) bool {
	id, ok := HandleID(url)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok = r.handles[id]
	return ok
}

// Release drops the given handles. Unknown handles and external URLs are
// ignored.
func (r *HandleRegistry) Release(urls ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, url := range urls {
		if id, ok := HandleID(url); ok {
			delete(r.handles, id)
		}
	}
}

// Len returns the number of live handles.
func (r *HandleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Close releases every handle.
func (r *HandleRegistry) Close() error {
	r.mu.Lock()
	r.handles = make(map[string]handleEntry)
	r.mu.Unlock()
	return nil
}

// HandleID extracts the registry key from a handle URL.
func HandleID(url string) (string, bool) {
	if !IsHandle(url) {
		return "", false
	}
	id := strings.TrimPrefix(url, HandleScheme)
	if id == "" {
		return "", false
	}
	return id, true
}

// IsHandle reports whether url has the display handle scheme.
func IsHandle(url string) bool {
	return strings.HasPrefix(url, HandleScheme)
}
