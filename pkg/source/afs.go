package source

import (
	"context"
	"path/filepath"

	"github.com/viant/afs"
)

// AFS fetches local files and any URL scheme registered with afs.
type AFS struct {
	fs afs.Service
}

var _ Fetcher = &AFS{}

// NewAFS returns an AFS fetcher.
func NewAFS() *AFS {
	return &AFS{fs: afs.New()}
}

func (a *AFS) Fetch(ctx context.Context, ref string) ([]byte, error) {
	URL := ref
	if Scheme(ref) == "" {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return nil, err
		}
		URL = "file://" + filepath.ToSlash(abs)
	}
	return a.fs.DownloadWithURL(ctx, URL)
}
