package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fabriclens/engine/internal/models"
)

// MemoryStore keeps the graph in process memory. It backs small deployments
// and tests; reads see a stable view because every method copies under lock.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]NodeRow
	edges map[string]EdgeRow
}

// NewMemoryStore returns an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: map[string]NodeRow{},
		edges: map[string]EdgeRow{},
	}
}

var _ GraphStore = (*MemoryStore)(nil)

// UpsertNodes merges rows by id.
func (s *MemoryStore) UpsertNodes(ctx context.Context, rows []NodeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
		s.nodes[row.ID] = row
	}
	return nil
}

// UpsertEdges merges rows by id.
func (s *MemoryStore) UpsertEdges(ctx context.Context, rows []EdgeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
		s.edges[row.ID] = row
	}
	return nil
}

// Clear wipes all nodes and edges.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = map[string]NodeRow{}
	s.edges = map[string]EdgeRow{}
	return nil
}

// CountNodes returns the node count.
func (s *MemoryStore) CountNodes(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.nodes)), nil
}

// CountEdges returns the edge count.
func (s *MemoryStore) CountEdges(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.edges)), nil
}

// LoadGraph rebuilds a snapshot from the stored rows, ordered by id so the
// result is deterministic.
func (s *MemoryStore) LoadGraph(ctx context.Context) (*models.LineageGraph, error) {
	s.mu.RLock()
	nodes := make([]NodeRow, 0, len(s.nodes))
	for _, row := range s.nodes {
		nodes = append(nodes, row)
	}
	edges := make([]EdgeRow, 0, len(s.edges))
	for _, row := range s.edges {
		edges = append(edges, row)
	}
	s.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return graphFromRows(nodes, edges)
}
