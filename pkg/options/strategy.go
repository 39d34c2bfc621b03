package options

import (
	"github.com/authzed/connector-archive/pkg/config"
	"github.com/authzed/connector-archive/pkg/extract"
	"github.com/authzed/connector-archive/pkg/loader"
	"github.com/authzed/connector-archive/pkg/mapping"
	"github.com/authzed/connector-archive/pkg/merge"
	"github.com/authzed/connector-archive/pkg/source"
	"github.com/authzed/connector-archive/pkg/strategy"
)

// NewRegistry builds a strategy for every configured tenant. Lookup tables
// and file contents are read through fetcher.
func NewRegistry(c *config.Config, store mapping.Store, fetcher source.Fetcher) (*strategy.Registry, error) {
	return strategy.FromConfig(c,
		loader.NewDelimitedLoader(fetcher),
		merge.NewMerger(store),
		extract.NewParser(fetcher),
	)
}
