// Package driver fans query classification out across worker goroutines:
// one scratch set per worker, no cross-worker communication, all-or-nothing
// cancellation on the first fatal error, and output collected into a
// position-indexed sink so the caller can drain it in input order
// regardless of completion order.
package driver

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/raxtax/raxtax/internal/assemble"
	"github.com/raxtax/raxtax/internal/kindex"
	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/rlog"
	"github.com/raxtax/raxtax/internal/score"
)

// Config controls how Run partitions and scores queries.
type Config struct {
	Threads       int // 0 = runtime.NumCPU()
	SkipExact     bool
	FloorExponent int
	Pin           bool
}

// Run scores every query in queries against idx/refs/tree and returns one
// assemble.Result per query, in the same order as queries. The first worker
// error cancels every other worker at its next query boundary and is
// returned; partial results are discarded in that case.
func Run(ctx context.Context, idx *kindex.Index, set *refdb.Set, queries []refdb.Query, cfg Config, log *rlog.Logger) ([]assemble.Result, error) {
	n := len(queries)
	results := make([]assemble.Result, n)

	workers := cfg.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers == 0 {
		return results, nil
	}

	var cpus []int
	if cfg.Pin {
		cpus = orderedCPUs()
		if len(cpus) == 0 {
			log.Warnf("pin requested but no CPU topology available; running unpinned")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	numRefs := len(set.Refs)
	chunk := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}

		worker := w
		g.Go(func() error {
			if len(cpus) > 0 {
				cpu := cpus[worker%len(cpus)]
				if err := pinSelf(cpu); err != nil {
					log.Warnf("pin worker %d to cpu %d: %v", worker, cpu, err)
				}
			}

			scratch := score.NewScratch(numRefs)
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				q := queries[i]
				summary := score.Score(idx, set.Refs, set, q, cfg.SkipExact, scratch)
				if summary.Exact {
					log.Infof("query %q: exact match against reference %d", q.Label, summary.ExactRef)
				}
				results[i] = assemble.Build(set.Tree, set.Refs, q, summary, scratch, cfg.FloorExponent)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
