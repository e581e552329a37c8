// Package artifacttest provides an in-memory [artifact.Publisher] for tests
// of code that publishes workbooks.
package artifacttest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Sumatoshi-tech/freelaudit/pkg/artifact"
)

// ErrNotFound is returned by [Publisher.Get] for an unknown key.
var ErrNotFound = errors.New("artifact not found")

// Publisher records published files in memory under the same object keys
// the bucket publisher would use.
type Publisher struct {
	Prefix string

	mu    sync.Mutex
	files map[string][]byte
}

// NewPublisher creates an empty publisher.
func NewPublisher(prefix string) *Publisher {
	return &Publisher{Prefix: prefix, files: map[string][]byte{}}
}

// Publish implements [artifact.Publisher].
func (p *Publisher) Publish(_ context.Context, handle, localPath string) (string, error) {
	key, err := artifact.ObjectKey(p.Prefix, handle, localPath)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.files[key] = content

	return key, nil
}

// Get returns a published file.
func (p *Publisher) Get(key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, ok := p.files[key]
	if !ok {
		return nil, ErrNotFound
	}

	return content, nil
}

// Keys lists the published object keys in order.
func (p *Publisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.files))
	for k := range p.files {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
