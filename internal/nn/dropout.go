package nn

import (
	"math/rand"

	"tagforge/internal/tensor"
)

// Dropout zeroes activations with probability Rate during training, scaling
// the survivors by 1/(1-Rate) so inference needs no correction.
type Dropout struct {
	Rate float64
	rng  *rand.Rand
}

// NewDropout returns a dropout layer sharing the model's rng.
func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

// Apply masks x when training; in eval mode it is the identity.
func (d *Dropout) Apply(x *tensor.Node, training bool) *tensor.Node {
	if !training || d.Rate <= 0 {
		return x
	}
	r, c := x.Dims()
	keep := 1 - d.Rate
	mask := tensor.Zeros(r, c, false)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d.rng.Float64() < keep {
				mask.Value.Set(i, j, 1/keep)
			}
		}
	}
	return tensor.Mul(x, mask)
}
