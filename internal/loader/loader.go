// Package loader persists a built snapshot into the backing graph store.
// Loading is idempotent: every write is a merge-upsert keyed by node/edge id,
// so repeating a load leaves counts unchanged.
package loader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/pkg/database"
	appErr "github.com/fabriclens/engine/pkg/errors"
	"github.com/fabriclens/engine/pkg/logger"
)

// MaxBatchSize caps rows per upsert call.
const MaxBatchSize = 500

// Loader writes snapshots into a GraphStore in a fixed phase order. Later
// phases reference nodes created in earlier ones, so phases never reorder;
// failed batches are retried with backoff in place.
type Loader struct {
	store     store.GraphStore
	batchSize int
	backoff   database.Backoff
}

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize overrides the default batch size, clamped to MaxBatchSize.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 && n <= MaxBatchSize {
			l.batchSize = n
		}
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(b database.Backoff) Option {
	return func(l *Loader) { l.backoff = b }
}

// New builds a Loader over the given store.
func New(s store.GraphStore, opts ...Option) *Loader {
	l := &Loader{
		store:     s,
		batchSize: MaxBatchSize,
		backoff: database.Backoff{
			MaxRetries: 3,
			Delay:      250 * time.Millisecond,
			MaxDelay:   3 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result reports what a load run wrote.
type Result struct {
	NodesLoaded int      `json:"nodes_loaded"`
	EdgesLoaded int      `json:"edges_loaded"`
	Phases      []string `json:"phases"`
	Cleared     bool     `json:"cleared"`
}

// Load persists the snapshot. With clearExisting the store is wiped first
// (full refresh); the default additive mode never deletes nodes absent from
// the new snapshot.
func (l *Loader) Load(ctx context.Context, g *models.LineageGraph, clearExisting bool) (*Result, error) {
	if g == nil {
		return nil, appErr.New(appErr.CodeInvalid, "nil snapshot")
	}

	res := &Result{Cleared: clearExisting}
	if clearExisting {
		if err := l.retry(ctx, "clear", func() error { return l.store.Clear(ctx) }); err != nil {
			return nil, err
		}
	}

	for _, phase := range l.phases(g) {
		if err := phase.run(ctx, l, res); err != nil {
			return nil, err
		}
		res.Phases = append(res.Phases, phase.name)
	}

	logger.L().Info("snapshot loaded",
		zap.Int("nodes", res.NodesLoaded),
		zap.Int("edges", res.EdgesLoaded),
		zap.Bool("cleared", res.Cleared),
	)
	return res, nil
}

type loadPhase struct {
	name  string
	nodes []store.NodeRow
	edges []store.EdgeRow
	err   error
}

func (p loadPhase) run(ctx context.Context, l *Loader, res *Result) error {
	if p.err != nil {
		return p.err
	}
	for start := 0; start < len(p.nodes); start += l.batchSize {
		batch := p.nodes[start:min(start+l.batchSize, len(p.nodes))]
		if err := l.retry(ctx, p.name, func() error { return l.store.UpsertNodes(ctx, batch) }); err != nil {
			return err
		}
		res.NodesLoaded += len(batch)
	}
	for start := 0; start < len(p.edges); start += l.batchSize {
		batch := p.edges[start:min(start+l.batchSize, len(p.edges))]
		if err := l.retry(ctx, p.name, func() error { return l.store.UpsertEdges(ctx, batch) }); err != nil {
			return err
		}
		res.EdgesLoaded += len(batch)
	}
	return nil
}

// phases lays out the mandatory order: workspaces, items with containment
// edges, external sources, tables, then internal, external, and table-usage
// edges.
func (l *Loader) phases(g *models.LineageGraph) []loadPhase {
	workspaces := loadPhase{name: "workspaces"}
	for _, w := range g.Workspaces {
		workspaces.append(store.NewNodeRow(w.ID, store.KindWorkspace, w.Name, w))
	}

	items := loadPhase{name: "items"}
	for _, it := range g.Items {
		items.append(store.NewNodeRow(it.ID, store.KindItem, it.Name, it))
		if it.WorkspaceID != "" {
			items.appendEdge(store.NewEdgeRow(models.Edge{
				ID:       it.WorkspaceID + "->" + it.ID + "#" + string(models.EdgeTypeContains),
				SourceID: it.WorkspaceID,
				TargetID: it.ID,
				Type:     models.EdgeTypeContains,
			}))
		}
	}

	sources := loadPhase{name: "external_sources"}
	for _, s := range g.ExternalSources {
		sources.append(store.NewNodeRow(s.ID, store.KindExternalSource, s.DisplayName, s))
	}

	tables := loadPhase{name: "tables"}
	for _, t := range g.Tables {
		tables.append(store.NewNodeRow(t.ID, store.KindTable, t.Name, t))
	}

	internal := loadPhase{name: "internal_edges"}
	external := loadPhase{name: "external_edges"}
	tableUsage := loadPhase{name: "table_edges"}
	for _, e := range g.Edges {
		switch e.Type {
		case models.EdgeTypeInternal:
			internal.appendEdge(store.NewEdgeRow(e))
		case models.EdgeTypeExternal:
			external.appendEdge(store.NewEdgeRow(e))
		default:
			tableUsage.appendEdge(store.NewEdgeRow(e))
		}
	}

	return []loadPhase{workspaces, items, sources, tables, internal, external, tableUsage}
}

func (p *loadPhase) append(row store.NodeRow, err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
	p.nodes = append(p.nodes, row)
}

func (p *loadPhase) appendEdge(row store.EdgeRow, err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
	p.edges = append(p.edges, row)
}

// retry runs fn with capped exponential backoff, surfacing the final error
// as a retryable StoreUnavailable condition with operation context.
func (l *Loader) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= l.backoff.MaxRetries {
			return appErr.Wrap(err, appErr.CodeUnavailable, "load phase failed").WithMeta("phase", op)
		}
		logger.L().Warn("load batch retry",
			zap.String("phase", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return appErr.Wrap(ctx.Err(), appErr.CodeUnavailable, "load canceled").WithMeta("phase", op)
		case <-time.After(l.backoff.NextDelay(attempt)):
		}
	}
}
