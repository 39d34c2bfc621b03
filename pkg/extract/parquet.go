package extract

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	psource "github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/authzed/connector-archive/pkg/metadata"
)

// Parquet extracts the footer of parquet files: row count, writer, column
// names and the key/value metadata.
type Parquet struct{}

func (Parquet) Format() string { return "parquet" }

func (Parquet) Extract(data []byte) ([]metadata.Entry, error) {
	pr, err := reader.NewParquetReader(newBytesFile(data), nil, 1)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	footer := pr.Footer
	entries := []metadata.Entry{
		metadata.NewEntry("num_rows", strconv.FormatInt(footer.GetNumRows(), 10)),
	}
	if footer.CreatedBy != nil {
		entries = append(entries, metadata.NewEntry("created_by", footer.GetCreatedBy()))
	}

	columns := make([]string, 0, len(footer.Schema))
	for i, el := range footer.Schema {
		if i == 0 || el.GetNumChildren() > 0 {
			continue
		}
		columns = append(columns, el.GetName())
	}
	if len(columns) > 0 {
		entries = append(entries, metadata.NewEntry("columns", strings.Join(columns, ",")))
	}

	for _, kv := range footer.KeyValueMetadata {
		if kv.Value == nil {
			entries = append(entries, metadata.MissingEntry(kv.Key))
			continue
		}
		entries = append(entries, metadata.NewEntry(kv.Key, *kv.Value))
	}
	return entries, nil
}

var errReadOnly = errors.New("read only parquet source")

// bytesFile serves a parquet file held in memory to the parquet reader.
type bytesFile struct {
	data []byte
	*bytes.Reader
}

var _ psource.ParquetFile = &bytesFile{}

func newBytesFile(data []byte) *bytesFile {
	return &bytesFile{data: data, Reader: bytes.NewReader(data)}
}

// Open returns an independent reader over the same bytes. The parquet
// reader opens one per column.
func (f *bytesFile) Open(string) (psource.ParquetFile, error) {
	return newBytesFile(f.data), nil
}

func (f *bytesFile) Create(string) (psource.ParquetFile, error) {
	return nil, errReadOnly
}

func (f *bytesFile) Write([]byte) (int, error) {
	return 0, errReadOnly
}

func (f *bytesFile) Close() error {
	return nil
}
