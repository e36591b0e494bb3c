package dataset

import (
	"context"
	"errors"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the fixed size of the collation pool.
const DefaultWorkers = 4

// LoaderOptions configures one epoch's worth of batches.
type LoaderOptions struct {
	BatchSize int
	Workers   int
	Seed      int64
	Epoch     int
	Shuffle   bool
	PadID     int

	// TokenDrop randomly replaces token indices with UnknownID during
	// collation, a light augmentation applied to training epochs only.
	TokenDrop float64
	UnknownID int
}

// Batches collates data into padded batches on a fixed worker pool, emitting
// them in a deterministic order. The final partial batch is kept. The error
// channel carries at most one error and both channels close when the epoch
// is exhausted or the context is canceled.
func Batches(ctx context.Context, data Dataset, opts LoaderOptions) (<-chan Batch, <-chan error) {
	out := make(chan Batch)
	errCh := make(chan error, 1)

	if opts.BatchSize <= 0 {
		errCh <- errors.New("loader: batch size must be > 0")
		close(out)
		close(errCh)
		return out, errCh
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	order := make([]int, len(data))
	for i := range order {
		order[i] = i
	}
	if opts.Shuffle {
		rng := rand.New(rand.NewSource(opts.Seed + int64(opts.Epoch)))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	type job struct {
		id       int
		examples []Example
	}
	type collated struct {
		id    int
		batch Batch
	}

	jobs := make(chan job, opts.Workers)
	results := make(chan collated, opts.Workers)

	go func() {
		defer close(jobs)
		id := 0
		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			examples := make([]Example, 0, end-start)
			for _, idx := range order[start:end] {
				examples = append(examples, data[idx])
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- job{id: id, examples: examples}:
				id++
			}
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		// Each worker gets its own deterministic rng so augmentation is
		// reproducible for a fixed seed.
		rng := rand.New(rand.NewSource(opts.Seed + int64(w)))
		group.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case j, ok := <-jobs:
					if !ok {
						return nil
					}
					batch := Assemble(dropTokens(j.examples, opts, rng), opts.PadID)
					select {
					case <-gctx.Done():
						return gctx.Err()
					case results <- collated{id: j.id, batch: batch}:
					}
				}
			}
		})
	}

	// Sole owner of errCh: nothing else sends or closes it, so a context
	// expiring mid-epoch cannot race a send against the close.
	go func() {
		defer close(errCh)
		err := group.Wait()
		close(results)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			errCh <- err
		}
	}()

	go func() {
		defer close(out)
		pending := make(map[int]Batch)
		next := 0
		for res := range results {
			pending[res.id] = res.batch
			for {
				batch, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case <-ctx.Done():
					return
				case out <- batch:
					next++
				}
			}
		}
	}()

	return out, errCh
}

// dropTokens applies the unknown-token augmentation to a copy of the
// examples, leaving the dataset itself untouched.
func dropTokens(examples []Example, opts LoaderOptions, rng *rand.Rand) []Example {
	if opts.TokenDrop <= 0 {
		return examples
	}
	out := make([]Example, len(examples))
	for i, ex := range examples {
		tokens := make([]int, len(ex.TokenIDs))
		copy(tokens, ex.TokenIDs)
		for t := range tokens {
			if rng.Float64() < opts.TokenDrop {
				tokens[t] = opts.UnknownID
			}
		}
		out[i] = ex
		out[i].TokenIDs = tokens
	}
	return out
}
