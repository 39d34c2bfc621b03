// Package extract reads metadata embedded in file content: EXIF tags of
// images, core properties of office documents and the footer of parquet
// files. The format is chosen from the file extension.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/source"
)

// ErrUnsupported is wrapped by the error returned for unknown extensions.
var ErrUnsupported = errors.New("unsupported content format")

// Extractor reads the metadata of one content format.
type Extractor interface {
	Format() string
	Extract(data []byte) ([]metadata.Entry, error)
}

// Parser dispatches references to an Extractor by extension.
type Parser struct {
	fetcher    source.Fetcher
	extractors map[string]Extractor
}

// NewParser returns a Parser with the EXIF, OOXML and parquet extractors
// registered.
func NewParser(fetcher source.Fetcher) *Parser {
	p := &Parser{fetcher: fetcher, extractors: make(map[string]Extractor)}
	p.Register(EXIF{}, ".jpg", ".jpeg", ".tif", ".tiff")
	p.Register(OOXML{}, ".docx", ".xlsx", ".pptx")
	p.Register(Parquet{}, ".parquet")
	return p
}

// Register routes the given extensions to e.
func (p *Parser) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		p.extractors[ext] = e
	}
}

// Supports reports whether ref has a registered extension.
func (p *Parser) Supports(ref string) bool {
	_, ok := p.extractors[source.Ext(ref)]
	return ok
}

// Parse fetches ref and extracts its embedded metadata. Every failure,
// including an unsupported extension, is a *metadata.ContentExtractionError.
func (p *Parser) Parse(ctx context.Context, ref string) ([]metadata.Entry, error) {
	ext := source.Ext(ref)
	e, ok := p.extractors[ext]
	if !ok {
		return nil, &metadata.ContentExtractionError{Ref: ref, Err: fmt.Errorf("%w: %q", ErrUnsupported, ext)}
	}

	data, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, &metadata.ContentExtractionError{Ref: ref, Format: e.Format(), Err: err}
	}

	entries, err := extract(e, data)
	if err != nil {
		return nil, &metadata.ContentExtractionError{Ref: ref, Format: e.Format(), Err: err}
	}
	log.Debug().Str("ref", ref).Str("format", e.Format()).Int("entries", len(entries)).Msg("extracted content metadata")
	return entries, nil
}

// extract runs e, turning a panic on malformed input into an error.
func extract(e Extractor, data []byte) (entries []metadata.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("malformed content: %v", r)
		}
	}()
	return e.Extract(data)
}
