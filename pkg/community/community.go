package community

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
)

// Outcome tells whether a partitioner produced an assignment or whether the
// detector has to try the next method.
type Outcome int

const (
	Partitioned Outcome = iota
	NeedsFallback
)

// PartitionResult is what a Partitioner reports. Assignment is only
// meaningful when Outcome is Partitioned; Err explains a fallback.
type PartitionResult struct {
	Outcome    Outcome
	Assignment map[string]int64
	Err        error
}

// PartitionedResult wraps a successful assignment.
func PartitionedResult(assignment map[string]int64) PartitionResult {
	return PartitionResult{Outcome: Partitioned, Assignment: assignment}
}

// Fallback reports that the partitioner could not serve this graph.
func Fallback(err error) PartitionResult {
	return PartitionResult{Outcome: NeedsFallback, Err: err}
}

// Partitioner assigns a community key to concept labels. Keys only need to
// be equal within a community; the detector renumbers them.
type Partitioner interface {
	Name() string
	Partition(ctx context.Context, g common.Graph) PartitionResult
}

// GraphSource is the part of a graph store the detector needs.
type GraphSource interface {
	GetGraph(ctx context.Context) (common.Graph, error)
	WriteCommunities(ctx context.Context, assignment map[string]int64) error
}

// Detector labels every concept with a community. Preferred partitioners are
// tried in order; connected components is the final method and cannot fail.
type Detector struct {
	source       GraphSource
	partitioners []Partitioner

	mu      sync.Mutex
	lastRun RunInfo
}

// RunInfo describes the most recent detector run.
type RunInfo struct {
	Method      string        `json:"method"`
	Communities int           `json:"communities"`
	Concepts    int           `json:"concepts"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	FinishedAt  time.Time     `json:"finished_at"`
}

func NewDetector(source GraphSource, partitioners ...Partitioner) *Detector {
	return &Detector{source: source, partitioners: partitioners}
}

// Run recomputes and stores all community labels. Failures are logged and
// leave the stored labels untouched.
func (d *Detector) Run(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	info, err := d.run(ctx)
	info.Duration = time.Since(start)
	info.FinishedAt = time.Now()
	info.Success = err == nil
	d.lastRun = info

	if err != nil {
		logger.Error("[Community] Detection failed", "err", err)
		return false
	}
	logger.Info(
		"[Community] Detection finished",
		"method", info.Method,
		"communities", info.Communities,
		"concepts", info.Concepts,
		"duration", info.Duration,
	)
	return true
}

// LastRun returns the result of the most recent Run.
func (d *Detector) LastRun() RunInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRun
}

func (d *Detector) run(ctx context.Context) (RunInfo, error) {
	g, err := d.source.GetGraph(ctx)
	if err != nil {
		return RunInfo{}, fmt.Errorf("load graph: %w", err)
	}

	method, assignment := d.partition(ctx, g)
	ids := Canonicalize(g, assignment)
	if err := ctx.Err(); err != nil {
		return RunInfo{}, err
	}
	if err := d.source.WriteCommunities(ctx, ids); err != nil {
		return RunInfo{}, fmt.Errorf("write communities: %w", err)
	}

	return RunInfo{
		Method:      method,
		Communities: countCommunities(ids),
		Concepts:    len(ids),
	}, nil
}

func (d *Detector) partition(ctx context.Context, g common.Graph) (string, map[string]int64) {
	for _, p := range d.partitioners {
		res := p.Partition(ctx, g)
		if res.Outcome == Partitioned {
			return p.Name(), res.Assignment
		}
		logger.Warn("[Community] Partitioner unavailable, falling back", "method", p.Name(), "err", res.Err)
	}
	return componentsMethod, ConnectedComponents(g)
}

// Canonicalize builds the final assignment covering every node of g. Nodes
// the partitioner left out become singletons, and communities are numbered
// from 0 in order of their smallest label.
func Canonicalize(g common.Graph, assignment map[string]int64) map[string]int64 {
	groups := make(map[int64][]string)
	var missing []string
	for _, n := range g.Nodes {
		key, ok := assignment[n.Label]
		if !ok {
			missing = append(missing, n.Label)
			continue
		}
		groups[key] = append(groups[key], n.Label)
	}

	members := make([][]string, 0, len(groups)+len(missing))
	for _, labels := range groups {
		sort.Strings(labels)
		members = append(members, labels)
	}
	for _, label := range missing {
		members = append(members, []string{label})
	}
	sort.Slice(members, func(i, j int) bool { return members[i][0] < members[j][0] })

	out := make(map[string]int64, len(g.Nodes))
	for id, labels := range members {
		for _, label := range labels {
			out[label] = int64(id)
		}
	}
	return out
}

func countCommunities(ids map[string]int64) int {
	seen := make(map[int64]struct{})
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
