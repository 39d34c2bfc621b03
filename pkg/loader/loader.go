// Package loader turns tabular metadata files into lookup tables.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/lookup"
	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/source"
)

// Loader builds a lookup table from a tabular source. Rows are keyed by the
// value of one column, or by the composite of two. Failures are returned as
// *metadata.LoaderError and are not retried.
type Loader interface {
	Load(ctx context.Context, ref, keyColumn string) (*lookup.Table, error)
	LoadComposite(ctx context.Context, ref, keyColumn1, keyColumn2 string) (*lookup.Table, error)
}

// DelimitedLoader reads comma or tab separated files with a header row.
// Files ending in .tsv or .tab are tab separated; everything else is read
// as CSV.
type DelimitedLoader struct {
	fetcher source.Fetcher
}

var _ Loader = &DelimitedLoader{}

// NewDelimitedLoader returns a DelimitedLoader reading through fetcher.
func NewDelimitedLoader(fetcher source.Fetcher) *DelimitedLoader {
	return &DelimitedLoader{fetcher: fetcher}
}

func (l *DelimitedLoader) Load(ctx context.Context, ref, keyColumn string) (*lookup.Table, error) {
	return l.load(ctx, ref, keyColumn)
}

func (l *DelimitedLoader) LoadComposite(ctx context.Context, ref, keyColumn1, keyColumn2 string) (*lookup.Table, error) {
	return l.load(ctx, ref, keyColumn1, keyColumn2)
}

func (l *DelimitedLoader) load(ctx context.Context, ref string, keyColumns ...string) (*lookup.Table, error) {
	data, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, &metadata.LoaderError{Ref: ref, Err: err}
	}
	table, err := Parse(data, Separator(ref), keyColumns...)
	if err != nil {
		return nil, &metadata.LoaderError{Ref: ref, Err: err}
	}
	log.Debug().Str("ref", ref).Strs("keys", keyColumns).Int("rows", table.Len()).Msg("loaded lookup table")
	return table, nil
}

// Separator returns the field separator used for ref.
func Separator(ref string) rune {
	switch source.Ext(ref) {
	case ".tsv", ".tab":
		return '\t'
	default:
		return ','
	}
}

// Parse reads delimited data with a header row into a table keyed by one
// or two columns. Rows with an empty key are skipped; when a key repeats the
// first row is kept.
func Parse(data []byte, separator rune, keyColumns ...string) (*lookup.Table, error) {
	if len(keyColumns) != 1 && len(keyColumns) != 2 {
		return nil, fmt.Errorf("expected one or two key columns, got %d", len(keyColumns))
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.Comma = separator
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	index := make([]int, len(keyColumns))
	for i, col := range keyColumns {
		index[i] = -1
		for j, h := range header {
			if h == col {
				index[i] = j
				break
			}
		}
		if index[i] < 0 {
			return nil, fmt.Errorf("key column %q not found in header", col)
		}
	}

	b := lookup.NewBuilder()
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		// empty cells are absent attributes
		row := make(lookup.AttributeMap, len(header))
		for j, h := range header {
			if j >= len(record) || h == "" {
				continue
			}
			if v := strings.TrimSpace(record[j]); v != "" {
				row[h] = v
			}
		}

		keys := make([]string, len(index))
		for i, j := range index {
			keys[i] = row[header[j]]
		}

		var added bool
		if len(keys) == 2 {
			if keys[0] == "" || keys[1] == "" {
				continue
			}
			added = b.AddComposite(keys[0], keys[1], row)
		} else {
			if keys[0] == "" {
				continue
			}
			added = b.Add(keys[0], row)
		}
		if !added {
			log.Warn().Int("line", line).Strs("key", keys).Msg("duplicate lookup key, keeping first row")
		}
	}
	return b.Table(), nil
}
