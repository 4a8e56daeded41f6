package simplemanga

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds the number of in-flight blob operations of a
// batch.
const DefaultBatchConcurrency = 8

// PutImages stores every item independently and returns the IDs in input
// order. A failed item leaves an empty ID at its index and is reported in the
// returned *BatchError; the other items still complete.
func PutImages(ctx context.Context, store BlobStore, data [][]byte, limit int) ([]string, error) {
	ids := make([]string, len(data))
	errs := make([]error, len(data))

	g := newBatchGroup(limit)
	for i := range data {
		g.Go(func() error {
			ids[i], errs[i] = store.Put(ctx, data[i])
			return nil
		})
	}
	_ = g.Wait()

	if failures := collectFailures(errs, nil); len(failures) > 0 {
		for _, f := range failures {
			ids[f.Index] = ""
		}
		return ids, &BatchError{Op: "put", Total: len(data), Failures: failures}
	}
	return ids, nil
}

// DeleteImages deletes every ID independently. Empty input is a no-op.
func DeleteImages(ctx context.Context, store BlobStore, ids []string, limit int) error {
	if len(ids) == 0 {
		return nil
	}
	errs := make([]error, len(ids))

	g := newBatchGroup(limit)
	for i := range ids {
		g.Go(func() error {
			errs[i] = store.Delete(ctx, ids[i])
			return nil
		})
	}
	_ = g.Wait()

	if failures := collectFailures(errs, ids); len(failures) > 0 {
		return &BatchError{Op: "delete", Total: len(ids), Failures: failures}
	}
	return nil
}

// newBatchGroup returns a group that never cancels siblings: workers always
// return nil and record their outcome by index.
func newBatchGroup(limit int) *errgroup.Group {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return g
}

func collectFailures(errs []error, ids []string) []*ImageError {
	var failures []*ImageError
	for i, err := range errs {
		if err == nil {
			continue
		}
		f := &ImageError{Index: i, Err: err}
		if ids != nil {
			f.ImageID = ids[i]
		}
		failures = append(failures, f)
	}
	return failures
}
