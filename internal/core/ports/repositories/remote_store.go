package repositories

import (
	"context"
	"time"
)

// RemoteFile describes a workbook file held by a remote store.
type RemoteFile struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Revision    string    `json:"revision"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt,omitempty"`
}

// RemoteFileReader defines read operations against the hosted data directory.
type RemoteFileReader interface {
	// FetchFile returns the bytes of the file whose name matches case-insensitively.
	FetchFile(ctx context.Context, filename string) ([]byte, error)

	// ListFiles lists the spreadsheet files of the data directory.
	ListFiles(ctx context.Context) ([]RemoteFile, error)

	// FileExists reports whether a case-insensitive match exists.
	FileExists(ctx context.Context, filename string) (bool, error)
}

// RemoteFileWriter defines write operations against the hosted data directory.
type RemoteFileWriter interface {
	// PutFile creates or updates a file and returns the committed revision id.
	// Updates are conditional on the revision last observed by this client.
	PutFile(ctx context.Context, filename string, content []byte, commitMessage string) (string, error)
}

// RemoteStore is the byte-level transport to the system-of-record workbook.
type RemoteStore interface {
	RemoteFileReader
	RemoteFileWriter

	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error

	// Driver names the backing implementation (github, s3, fs, memory).
	Driver() string
}
