package domain

import (
	"context"
	"os"
	"time"
)

// Image references a file in the media store by its generated name
type Image struct {
	ID           int64
	FileName     string
	DisplayOrder *int
	ProductID    int64
	CreatedAt    time.Time
}

// Upload is a file payload handed to the catalog with its original name.
// The name is only used to derive an extension.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type MediaStore interface {
	// Store writes data under a newly generated name and returns that name.
	Store(data []byte, nameHint string) (string, error)

	// Load returns the bytes stored under name.
	Load(name string) ([]byte, error)

	// Open returns a read handle for streaming the file stored under name.
	Open(name string) (*os.File, os.FileInfo, error)

	// Delete removes the file and reports whether it existed.
	Delete(name string) (bool, error)
}

type RemoteFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}
