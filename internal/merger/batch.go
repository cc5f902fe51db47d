package merger

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome for one URL of a batch.
type BatchItem struct {
	URL    string  `json:"url"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// ReconcileAll reconciles urls with bounded parallelism. Items keep the order
// of urls; a failed URL does not stop the others.
func (m *Merger) ReconcileAll(ctx context.Context, urls []string, opts Options) []BatchItem {
	items := make([]BatchItem, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, u := range urls {
		items[i].URL = u
		g.Go(func() error {
			res, err := m.Reconcile(gctx, u, opts)
			items[i].Result = res
			items[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return items
}
