package tensor

import "errors"

// ErrNoValidLabels is returned when every label in a batch is the padding
// sentinel and there is nothing to average the loss over.
var ErrNoValidLabels = errors.New("tensor: no valid labels in batch")

// MaskedNLL computes the mean negative log-likelihood of logProbs against
// targets, ignoring positions whose target is ignoreIndex. logProbs must be
// row-wise log-probabilities of shape (positions, classes); targets must
// have one entry per row.
func MaskedNLL(logProbs *Node, targets []int, ignoreIndex int) (*Node, error) {
	rows, _ := logProbs.Value.Dims()
	if len(targets) != rows {
		return nil, errors.New("tensor: target count does not match rows")
	}

	valid := 0
	sum := 0.0
	for i, t := range targets {
		if t == ignoreIndex {
			continue
		}
		valid++
		sum -= logProbs.Value.At(i, t)
	}
	if valid == 0 {
		return nil, ErrNoValidLabels
	}

	out := result(1, 1, logProbs)
	out.Value.Set(0, 0, sum/float64(valid))

	if out.requires {
		out.backward = func() {
			seed := out.Grad.At(0, 0) / float64(valid)
			for i, t := range targets {
				if t == ignoreIndex {
					continue
				}
				logProbs.Grad.Set(i, t, logProbs.Grad.At(i, t)-seed)
			}
		}
	}
	return out, nil
}
