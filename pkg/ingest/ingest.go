// Package ingest runs files through their tenant's strategy on a pool of
// workers and hands the resulting trees to a registration writer.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/authzed/connector-archive/pkg/lookup"
	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/strategy"
	"github.com/authzed/connector-archive/pkg/write"
)

// DefaultWorkers is the number of files processed concurrently.
const DefaultWorkers = 4

// Result is the outcome of one file. Err is set when the file was skipped.
type Result struct {
	Index  int
	File   strategy.File
	Worker lookup.WorkerID
	Tree   *metadata.Tree
	Err    error
}

// Ingester is an interface satisfied by anything that can ingest a batch of
// files
type Ingester interface {
	Ingest(ctx context.Context, files []strategy.File) ([]Result, error)
}

// Pool processes files on a fixed number of workers. Each worker owns one
// lookup slot for its whole lifetime.
type Pool struct {
	registry *strategy.Registry
	cache    *lookup.Cache
	writer   write.RegistrationWriter
	workers  int
}

var _ Ingester = &Pool{}

// NewPool returns a Pool of workers writing through writer.
func NewPool(registry *strategy.Registry, writer write.RegistrationWriter, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		registry: registry,
		cache:    lookup.NewCache(),
		writer:   writer,
		workers:  workers,
	}
}

// Cache returns the lookup cache shared by the pool's workers.
func (p *Pool) Cache() *lookup.Cache {
	return p.cache
}

// Process resolves a single file on behalf of worker. The file's lookup
// table is held in the worker's slot only while its strategy runs.
func (p *Pool) Process(ctx context.Context, worker lookup.WorkerID, f strategy.File) (*metadata.Tree, error) {
	s, err := p.registry.Get(f.Tenant)
	if err != nil {
		return nil, err
	}
	table, err := s.LoadTable(ctx, f)
	if err != nil {
		return nil, err
	}

	var tree *metadata.Tree
	err = p.cache.Scope(ctx, worker, table, func(ctx context.Context, _ *lookup.Slot) error {
		var err error
		tree, err = s.Resolve(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", f, err)
	}
	return tree, nil
}

// Stream processes files as they arrive until files is closed or ctx is
// cancelled. Results are delivered in completion order; the returned
// channel is closed once every worker has stopped.
func (p *Pool) Stream(ctx context.Context, files <-chan strategy.File) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		indexed := make(chan job)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(indexed)
			i := 0
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case f, ok := <-files:
					if !ok {
						return nil
					}
					select {
					case indexed <- job{index: i, file: f}:
						i++
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
		})
		p.startWorkers(gctx, g, indexed, out)
		if err := g.Wait(); err != nil {
			log.Debug().Err(err).Msg("ingest stream stopped")
		}
	}()
	return out
}

// Ingest processes files concurrently and writes the trees of every file
// that resolved, in input order. A file that fails doesn't stop the others;
// its Result carries the error. The returned error is only set when the
// batch couldn't be written or ctx was cancelled.
func (p *Pool) Ingest(ctx context.Context, files []strategy.File) ([]Result, error) {
	jobs := make(chan job)
	results := make([]Result, len(files))
	collected := make(chan Result)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i, f := range files {
			select {
			case jobs <- job{index: i, file: f}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range collected {
			results[r.Index] = r
		}
	}()

	workers, wctx := errgroup.WithContext(gctx)
	p.startWorkers(wctx, workers, jobs, collected)
	werr := workers.Wait()
	close(collected)
	<-done
	if err := g.Wait(); err != nil {
		return results, err
	}
	if werr != nil {
		return results, werr
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	trees := make([]*metadata.Tree, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Tree != nil {
			trees = append(trees, r.Tree)
		}
	}
	ok, failed := Summarize(results)
	log.Info().Int("resolved", ok).Int("failed", failed).Msg("writing registrations")
	if err := p.writer.Write(ctx, trees); err != nil {
		return results, fmt.Errorf("writing registrations: %w", err)
	}
	return results, nil
}

type job struct {
	index int
	file  strategy.File
}

func (p *Pool) startWorkers(ctx context.Context, g *errgroup.Group, jobs <-chan job, out chan<- Result) {
	for w := 0; w < p.workers; w++ {
		worker := lookup.WorkerID(uuid.NewString())
		g.Go(func() error {
			defer p.cache.Release(worker)
			for j := range jobs {
				tree, err := p.Process(ctx, worker, j.file)
				if err != nil {
					log.Warn().Err(err).Stringer("file", j.file).Str("worker", string(worker)).Msg("skipping file")
				}
				select {
				case out <- Result{Index: j.index, File: j.file, Worker: worker, Tree: tree, Err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
}

// Summarize counts resolved and failed results.
func Summarize(results []Result) (ok, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

// ParseFileLine reads a file reference in one of the forms "ref",
// "tenant<TAB>ref" or "tenant<TAB>ref<TAB>path". Blank lines and lines
// starting with # are skipped.
func ParseFileLine(line, defaultTenant string) (strategy.File, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return strategy.File{}, false, nil
	}
	fields := strings.Split(line, "\t")
	var f strategy.File
	switch len(fields) {
	case 1:
		f = strategy.File{Tenant: defaultTenant, Ref: fields[0]}
	case 2:
		f = strategy.File{Tenant: fields[0], Ref: fields[1]}
	case 3:
		f = strategy.File{Tenant: fields[0], Ref: fields[1], Path: fields[2]}
	default:
		return strategy.File{}, false, fmt.Errorf("expected at most 3 tab separated fields, got %d", len(fields))
	}
	f.Tenant = strings.TrimSpace(f.Tenant)
	f.Ref = strings.TrimSpace(f.Ref)
	if f.Tenant == "" {
		return strategy.File{}, false, fmt.Errorf("no tenant for %q", f.Ref)
	}
	if f.Ref == "" {
		return strategy.File{}, false, fmt.Errorf("empty file reference")
	}
	return f, true, nil
}
