package media

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Memory keeps objects in process. URLs are rooted at BaseURL.
type Memory struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a stored upload.
type Object struct {
	ContentType string
	Data        []byte
}

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (m *Memory) Put(ctx context.Context, folder, contentType string, r io.Reader) (string, error) {
	name, err := ObjectName(folder, contentType, time.Now())
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[name] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()
	return m.BaseURL + "/" + name, nil
}

// Get returns the object stored under name.
func (m *Memory) Get(name string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[name]
	return o, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
