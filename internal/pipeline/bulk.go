package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/docai"
)

// BulkResult is the per-item outcome of a bulk run. A failed item never
// aborts its siblings; its extraction stays in whatever state the last
// successful transition left it.
type BulkResult struct {
	ID    uuid.UUID
	Stage string // "recognize" or "extract"
	Err   error
}

func (r BulkResult) OK() bool { return r.Err == nil }

// BulkProcess fans the recognize transition over ids concurrently, then,
// after the first wave settles, fans classify+extract over the items that
// recognized non-empty text. Items whose text came back empty are reported as
// failed for the bulk run (extraction cannot proceed unattended without
// text), not silently skipped. The second wave re-reads each record under the
// status guard, so anything a user touched between waves surfaces as
// not-found for that item.
func (p *Pipeline) BulkProcess(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, mc docai.ModelConfig) []BulkResult {
	results := make([]BulkResult, len(ids))
	for i, id := range ids {
		results[i] = BulkResult{ID: id, Stage: "recognize"}
	}

	eligible := make([]bool, len(ids))
	p.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		defer capturePanic(&results[i])
		e, err := p.Recognize(ctx, ownerID, ids[i], mc)
		if err != nil {
			results[i].Err = err
			return
		}
		if e.Text == nil || *e.Text == "" {
			results[i].Err = common.InvalidInputError("recognized text is empty")
			return
		}
		eligible[i] = true
	})

	p.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		if !eligible[i] {
			return
		}
		defer capturePanic(&results[i])
		results[i].Stage = "extract"
		if _, err := p.Extract(ctx, ownerID, ids[i], mc); err != nil {
			results[i].Err = err
		}
	})

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	p.logger.Info("pipeline.bulk.done", "owner_id", ownerID, "total", len(ids), "ok", ok)
	return results
}

// forEach runs fn for indices 0..n-1 on a bounded worker pool and joins on
// all of them.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	workers := p.cfg.BulkWorkers
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				p.run(ctx, i, fn)
			}
		}()
	}
	wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, i int, fn func(ctx context.Context, i int)) {
	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.BulkTimeout)
	defer cancel()
	fn(itemCtx, i)
}

// capturePanic converts a panicking item into a per-item failure so siblings
// keep running and the join still completes.
func capturePanic(res *BulkResult) {
	if r := recover(); r != nil {
		res.Err = fmt.Errorf("item panicked: %v", r)
	}
}
