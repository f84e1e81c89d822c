package cdc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mongobridge/mongosrv/internal/backoff"
	"github.com/mongobridge/mongosrv/internal/errs"
	"github.com/mongobridge/mongosrv/internal/metrics"
)

var (
	errTransient = errors.New("cdc: transient error")
	errPermanent = errors.New("cdc: permanent error")
)

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

// Ingester drives the CDC pipeline: poll the staged-file prefix, claim and
// process each file exactly once, and record the outcome (spec §4.7).
type Ingester struct {
	store  ObjectStore
	dest   Destination
	cfg    Config
	logger *zap.Logger
	retry  backoff.Policy

	mu        sync.Mutex
	inFlight  map[string]bool
	succeeded map[string]bool
}

// New builds an Ingester; cfg's documented defaults and the orderedMode
// clamp are applied here.
func New(store ObjectStore, dest Destination, cfg Config, logger *zap.Logger) *Ingester {
	return &Ingester{
		store:     store,
		dest:      dest,
		cfg:       cfg.WithDefaults(),
		logger:    logger,
		retry:     backoff.DefaultPolicy,
		inFlight:  make(map[string]bool),
		succeeded: make(map[string]bool),
	}
}

// Run polls and processes files until ctx is cancelled. One polling task
// feeds a channel of claimed-candidate paths; cfg.MaxThreads workers drain
// it. The channel's capacity (maxThreads × 2) is the backpressure cap from
// spec §4.7: the poller blocks rather than enqueue further.
func (g *Ingester) Run(ctx context.Context) error {
	pending := make(chan string, g.cfg.MaxThreads*2)
	eg, egCtx := errgroup.WithContext(ctx)

	for i := 0; i < g.cfg.MaxThreads; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-egCtx.Done():
					return nil
				case path, ok := <-pending:
					if !ok {
						return nil
					}
					g.processFile(egCtx, path)
				}
			}
		})
	}

	eg.Go(func() error {
		defer close(pending)
		ticker := time.NewTicker(g.cfg.PollInterval)
		defer ticker.Stop()
		for {
			g.poll(egCtx, pending)
			select {
			case <-egCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return eg.Wait()
}

func (g *Ingester) poll(ctx context.Context, pending chan<- string) {
	objects, err := g.store.List(ctx, g.cfg.Bucket, globPrefix(g.cfg.Path))
	if err != nil {
		errs.LogError(g.logger, err, "cdc: list failed")
		return
	}

	var candidates []string
	for _, obj := range objects {
		if matchesPath(g.cfg.Path, obj.Key) && g.markInFlight(obj.Key) {
			candidates = append(candidates, obj.Key)
		}
	}

	// spec §4.7: "orderedMode... files are processed in sorted order of
	// path". maxThreads is already clamped to 1 by Config.WithDefaults.
	if g.cfg.OrderedMode {
		sort.Strings(candidates)
	}

	for _, path := range candidates {
		select {
		case <-ctx.Done():
			g.clearInFlight(path, false)
			return
		case pending <- path:
		}
	}
}

func (g *Ingester) markInFlight(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[path] || g.succeeded[path] {
		return false
	}
	g.inFlight[path] = true
	return true
}

func (g *Ingester) clearInFlight(path string, succeeded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, path)
	if succeeded {
		g.succeeded[path] = true
	}
}

// processFile claims, ingests, and marks a single file, never letting a
// single bad file stop the pipeline (spec §7: "isolates per-file errors").
func (g *Ingester) processFile(ctx context.Context, path string) {
	start := time.Now()
	succeeded := false
	defer func() { g.clearInFlight(path, succeeded) }()

	claimed, err := g.dest.TryClaim(ctx, path)
	if err != nil {
		errs.LogError(g.logger, err, "cdc: claim check failed", zap.String("path", path))
		return
	}
	if !claimed {
		// Either a success marker already exists or another worker's claim
		// won; both count as done here, so this ingester does not schedule
		// the path again.
		succeeded = true
		return
	}

	if err := g.ingestFile(ctx, path); err != nil {
		if isPermanent(err) {
			if markErr := g.dest.MarkFailed(ctx, path, err); markErr != nil {
				errs.LogError(g.logger, markErr, "cdc: failed to write failure marker", zap.String("path", path))
			}
			metrics.CDCFilesProcessed.WithLabelValues("failed").Inc()
		} else {
			metrics.CDCFilesProcessed.WithLabelValues("retry_exhausted").Inc()
		}
		errs.LogError(g.logger, err, "cdc: file processing failed", zap.String("path", path))
		return
	}

	succeeded = true
	metrics.CDCFilesProcessed.WithLabelValues("success").Inc()
	metrics.CDCIngestDuration.Observe(time.Since(start).Seconds())
}

// ingestFile downloads, decodes, batches, and inserts one staged file,
// then writes its marker in the same logical unit as the last batch
// (spec §4.7: "the marker is written in the same transaction as the batch
// insert to guarantee at-most-once effect").
func (g *Ingester) ingestFile(ctx context.Context, path string) error {
	obj, err := g.store.Get(ctx, g.cfg.Bucket, path)
	if err != nil {
		return fmt.Errorf("%w: download %s: %s", errTransient, path, err)
	}
	data, err := io.ReadAll(obj)
	_ = obj.Close()
	if err != nil {
		return fmt.Errorf("%w: read %s: %s", errTransient, path, err)
	}

	rows, err := decodeRows(g.cfg.Format, data)
	if err != nil {
		return fmt.Errorf("%w: %s", errPermanent, err)
	}

	for start := 0; ; start += g.cfg.MaxBlockSize {
		end := start + g.cfg.MaxBlockSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		last := end == len(rows)

		if last {
			if err := backoff.Retry(ctx, g.retry, func() error {
				return g.dest.InsertBatchAndMarkSuccess(ctx, batch, path)
			}); err != nil {
				return fmt.Errorf("%w: commit final batch for %s: %s", errTransient, path, err)
			}
		} else {
			if err := backoff.Retry(ctx, g.retry, func() error {
				return g.dest.InsertBatch(ctx, batch)
			}); err != nil {
				return fmt.Errorf("%w: insert batch for %s: %s", errTransient, path, err)
			}
		}
		metrics.CDCRowsIngested.Add(float64(len(batch)))

		if last {
			break
		}
	}

	if g.cfg.AfterProcessing == AfterProcessingDelete {
		if err := g.store.Delete(ctx, g.cfg.Bucket, path); err != nil {
			errs.LogError(g.logger, err, "cdc: failed to delete processed file", zap.String("path", path))
		}
	}

	return nil
}
