package port

import "context"

// FileStorage keeps uploaded invoice files. Keys are opaque names generated at
// submission; implementations reject keys that could escape their root.
type FileStorage interface {
	Save(ctx context.Context, key string, content []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	// Delete succeeds when the key is already gone
	Delete(ctx context.Context, key string) error
}
