package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docpilot"
)

// Ensure Reader implements docpilot.FileReader at compile time.
var _ docpilot.FileReader = (*Reader)(nil)

// Reader loads document content and records its content hash.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Load reads the file and sets file.Hash.
func (r *Reader) Load(ctx context.Context, file *docpilot.DocumentFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Path, err)
	}
	file.Hash = HashContent(data)
	return data, nil
}

// HashContent computes the xxHash of content as a 16-digit hex string.
func HashContent(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
