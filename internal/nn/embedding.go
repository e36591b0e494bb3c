package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tagforge/internal/tensor"
)

// Embedding is a lookup table of row vectors. The last row is reserved for
// the padding token. When MaxNorm is positive, any row selected by a lookup
// is renormalized in place if its L2 norm exceeds it, mirroring the max-norm
// constraint of the source embeddings.
type Embedding struct {
	Table   *tensor.Node
	MaxNorm float64
}

// NewEmbedding returns a trainable table with small random init.
func NewEmbedding(rows, dim int, maxNorm float64, rng *rand.Rand) *Embedding {
	return &Embedding{
		Table:   tensor.Uniform(rows, dim, 0.1, rng),
		MaxNorm: maxNorm,
	}
}

// NewPretrainedEmbedding wraps an existing weight matrix. With freeze set the
// table receives no gradient and the optimizer never touches it.
func NewPretrainedEmbedding(weights *mat.Dense, maxNorm float64, freeze bool) *Embedding {
	return &Embedding{
		Table:   tensor.New(weights, !freeze),
		MaxNorm: maxNorm,
	}
}

// Dim returns the embedding vector size.
func (e *Embedding) Dim() int {
	_, c := e.Table.Value.Dims()
	return c
}

// Rows returns the table height.
func (e *Embedding) Rows() int {
	r, _ := e.Table.Value.Dims()
	return r
}

// Lookup embeds the given indices, one output row per index. The max-norm
// constraint is reapplied to the selected rows before the gather.
func (e *Embedding) Lookup(indices []int) *tensor.Node {
	if e.MaxNorm > 0 {
		e.renorm(indices)
	}
	return tensor.Gather(e.Table, indices)
}

// Pool embeds groups of indices and mean-pools each group into a single
// row, used for character-level token vectors.
func (e *Embedding) Pool(groups [][]int) *tensor.Node {
	if e.MaxNorm > 0 {
		for _, group := range groups {
			e.renorm(group)
		}
	}
	return tensor.PoolRows(e.Table, groups)
}

func (e *Embedding) renorm(indices []int) {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		row := e.Table.Value.RawRowView(idx)
		norm := floats.Norm(row, 2)
		if norm > e.MaxNorm {
			floats.Scale(e.MaxNorm/norm, row)
		}
	}
}

// Params returns the trainable parameters, if any.
func (e *Embedding) Params() []*tensor.Node {
	if e.Table.RequiresGrad() {
		return []*tensor.Node{e.Table}
	}
	return nil
}
