package write

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/util"
)

// RegistrationWriter hands finished metadata trees to the archive
type RegistrationWriter interface {
	Write(context.Context, []*metadata.Tree) error
}

// NewBatchingRegistrationWriter will write trees in batches of size batchSize
func NewBatchingRegistrationWriter(writer RegistrationWriter, batchSize int) RegistrationWriter {
	if batchSize <= 0 {
		return writer
	}
	return &BatchingRegistrationWriter{
		writer:    writer,
		batchSize: batchSize,
	}
}

// BatchingRegistrationWriter writes in batches of batchSize
type BatchingRegistrationWriter struct {
	writer    RegistrationWriter
	batchSize int
}

func (w BatchingRegistrationWriter) Write(ctx context.Context, trees []*metadata.Tree) error {
	return batches(len(trees), w.batchSize, func(start, end int) error {
		return w.writer.Write(ctx, trees[start:end])
	})
}

// batches calls fn with consecutive [start, end) ranges of at most size
// elements covering n.
func batches(n, size int, fn func(start, end int) error) error {
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// JSONRegistrationWriter writes one JSON document per tree
type JSONRegistrationWriter struct {
	sync.Mutex
	enc *json.Encoder
}

// NewJSONRegistrationWriter writes JSON lines to out.
func NewJSONRegistrationWriter(out io.Writer) *JSONRegistrationWriter {
	return &JSONRegistrationWriter{enc: json.NewEncoder(out)}
}

func (w *JSONRegistrationWriter) Write(_ context.Context, trees []*metadata.Tree) error {
	w.Lock()
	defer w.Unlock()
	for _, t := range trees {
		if err := w.enc.Encode(t); err != nil {
			return err
		}
	}
	return nil
}

// TeeRegistrationWriter writes to every writer in order, stopping at the
// first error
type TeeRegistrationWriter []RegistrationWriter

func (w TeeRegistrationWriter) Write(ctx context.Context, trees []*metadata.Tree) error {
	for _, writer := range w {
		if err := writer.Write(ctx, trees); err != nil {
			return err
		}
	}
	return nil
}

// LoggingRegistrationWriter will log each tree before delegating to an
// underlying RegistrationWriter
type LoggingRegistrationWriter struct {
	writer RegistrationWriter
	level  zerolog.Level
}

// NewLoggingRegistrationWriter logs trees at level after writing them.
func NewLoggingRegistrationWriter(writer RegistrationWriter, level zerolog.Level) RegistrationWriter {
	return LoggingRegistrationWriter{writer: writer, level: level}
}

func (w LoggingRegistrationWriter) Write(ctx context.Context, trees []*metadata.Tree) error {
	err := w.writer.Write(ctx, trees)
	for _, t := range trees {
		log.WithLevel(w.level).EmbedObject(util.LoggedTree{Tree: t}).Msg("register")
	}
	return err
}

// NewDryRunRegistrationWriter constructs a new registration writer that logs
// but doesn't write.
func NewDryRunRegistrationWriter() RegistrationWriter {
	return LoggingRegistrationWriter{
		writer: DiscardingRegistrationWriter{},
		level:  zerolog.InfoLevel,
	}
}

// DiscardingRegistrationWriter does nothing but satisfy RegistrationWriter
type DiscardingRegistrationWriter struct{}

func (w DiscardingRegistrationWriter) Write(ctx context.Context, trees []*metadata.Tree) error {
	return nil
}
