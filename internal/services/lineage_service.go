package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fabriclens/engine/internal/lineage"
	"github.com/fabriclens/engine/internal/loader"
	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/internal/traversal"
	"github.com/fabriclens/engine/pkg/logger"
)

// ExportReader supplies export records and a modification signal. The afs
// reader is the production implementation; tests stub it.
type ExportReader interface {
	Read(ctx context.Context, url string) ([]lineage.Record, error)
	ModTime(ctx context.Context, url string) (time.Time, error)
}

// LineageService exposes snapshot construction, persistence, and every
// traversal operation behind one interface.
type LineageService interface {
	Snapshot(ctx context.Context) (*models.LineageGraph, *models.GraphStats, error)
	Stats(ctx context.Context) (*models.GraphStats, error)
	Refresh(ctx context.Context, clearExisting bool) (*loader.Result, error)

	Upstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error)
	Downstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error)
	ShortestPath(ctx context.Context, from, to string, maxDepth int) (*traversal.PathResult, error)
	Cycles(ctx context.Context, maxLen int) ([]traversal.Cycle, error)
	CrossWorkspace(ctx context.Context) ([]traversal.CrossBoundaryDependency, error)
	Centrality(ctx context.Context, topN int) ([]traversal.CentralityEntry, error)
	TableImpact(ctx context.Context, tableRef string, maxDepth int) (*traversal.TableImpactResult, error)
	DeepChains(ctx context.Context, minDepth int) ([]traversal.Chain, error)
}

// Options configures the service.
type Options struct {
	ExportURL   string
	SnapshotTTL time.Duration

	// ProbeInterval rate-limits the export modification probe. Zero probes
	// on every staleness check.
	ProbeInterval time.Duration

	// Store and Snapshots are optional; without them Refresh only rebuilds
	// the in-memory snapshot.
	Store     store.GraphStore
	Snapshots store.SnapshotRepository
}

type lineageService struct {
	reader ExportReader
	opts   Options
	loader *loader.Loader

	mu      sync.RWMutex
	graph   *models.LineageGraph
	stats   *models.GraphStats
	engine  *traversal.Engine
	builtAt time.Time
	modTime time.Time

	probeMu   sync.Mutex
	lastProbe time.Time
}

// NewLineageService wires the service. ldr may be nil when opts.Store is nil.
func NewLineageService(reader ExportReader, ldr *loader.Loader, opts Options) LineageService {
	return &lineageService{reader: reader, loader: ldr, opts: opts}
}

var _ LineageService = (*lineageService)(nil)

// Snapshot returns the most recently built snapshot, rebuilding when the TTL
// expired or the export changed underneath us.
func (s *lineageService) Snapshot(ctx context.Context) (*models.LineageGraph, *models.GraphStats, error) {
	s.mu.RLock()
	g, st := s.graph, s.stats
	builtAt, modTime := s.builtAt, s.modTime
	s.mu.RUnlock()

	if g != nil && s.fresh(ctx, builtAt, modTime) {
		return g, st, nil
	}
	return s.rebuild(ctx)
}

// fresh runs without the snapshot lock held. The modification probe can
// block on storage and must never hold up concurrent queries or refreshes.
func (s *lineageService) fresh(ctx context.Context, builtAt, modTime time.Time) bool {
	if s.opts.SnapshotTTL > 0 && time.Since(builtAt) > s.opts.SnapshotTTL {
		return false
	}
	return !s.exportModified(ctx, modTime)
}

// exportModified probes the export's modification time, at most once per
// probe interval. Probe failure falls back to TTL freshness alone.
func (s *lineageService) exportModified(ctx context.Context, since time.Time) bool {
	if s.opts.ProbeInterval > 0 {
		s.probeMu.Lock()
		if time.Since(s.lastProbe) < s.opts.ProbeInterval {
			s.probeMu.Unlock()
			return false
		}
		s.lastProbe = time.Now()
		s.probeMu.Unlock()
	}
	mod, err := s.reader.ModTime(ctx, s.opts.ExportURL)
	return err == nil && mod.After(since)
}

func (s *lineageService) rebuild(ctx context.Context) (*models.LineageGraph, *models.GraphStats, error) {
	records, err := s.reader.Read(ctx, s.opts.ExportURL)
	if err != nil {
		return nil, nil, err
	}
	graph, stats := lineage.BuildGraph(records, s.opts.ExportURL)

	mod, _ := s.reader.ModTime(ctx, s.opts.ExportURL)

	s.mu.Lock()
	s.graph = graph
	s.stats = stats
	s.engine = traversal.NewEngine(graph)
	s.builtAt = time.Now()
	s.modTime = mod
	s.mu.Unlock()

	logger.L().Info("lineage snapshot rebuilt",
		zap.Int("items", stats.ItemCount),
		zap.Int("edges", stats.EdgeCount),
		zap.Int("skipped_records", stats.SkippedRecords),
	)
	return graph, stats, nil
}

func (s *lineageService) Stats(ctx context.Context) (*models.GraphStats, error) {
	_, stats, err := s.Snapshot(ctx)
	return stats, err
}

// Refresh rebuilds the snapshot from the export and persists it. With
// clearExisting the store is wiped first; otherwise the load is additive and
// stale nodes survive until the next full refresh.
func (s *lineageService) Refresh(ctx context.Context, clearExisting bool) (*loader.Result, error) {
	graph, stats, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	if s.loader == nil {
		return &loader.Result{}, nil
	}

	res, err := s.loader.Load(ctx, graph, clearExisting)
	if err != nil {
		return nil, err
	}
	if s.opts.Snapshots != nil {
		if _, err := s.opts.Snapshots.Save(ctx, graph, stats); err != nil {
			// Archive failure doesn't invalidate the load itself.
			logger.L().Warn("snapshot archive failed", zap.Error(err))
		}
	}
	return res, nil
}

// queryEngine returns the engine for the current snapshot, rebuilding first
// when stale.
func (s *lineageService) queryEngine(ctx context.Context) (*traversal.Engine, error) {
	s.mu.RLock()
	eng := s.engine
	builtAt, modTime := s.builtAt, s.modTime
	s.mu.RUnlock()

	if eng != nil && s.fresh(ctx, builtAt, modTime) {
		return eng, nil
	}
	if _, _, err := s.rebuild(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, nil
}

func (s *lineageService) Upstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Upstream(id, maxDepth)
}

func (s *lineageService) Downstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Downstream(id, maxDepth)
}

func (s *lineageService) ShortestPath(ctx context.Context, from, to string, maxDepth int) (*traversal.PathResult, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.ShortestPath(from, to, maxDepth)
}

func (s *lineageService) Cycles(ctx context.Context, maxLen int) ([]traversal.Cycle, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.FindCycles(maxLen)
}

func (s *lineageService) CrossWorkspace(ctx context.Context) ([]traversal.CrossBoundaryDependency, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.CrossBoundaryDependencies(), nil
}

func (s *lineageService) Centrality(ctx context.Context, topN int) ([]traversal.CentralityEntry, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Centrality(topN)
}

func (s *lineageService) TableImpact(ctx context.Context, tableRef string, maxDepth int) (*traversal.TableImpactResult, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.TableImpact(tableRef, maxDepth)
}

func (s *lineageService) DeepChains(ctx context.Context, minDepth int) ([]traversal.Chain, error) {
	eng, err := s.queryEngine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.DeepChains(minDepth)
}
