package tensor

import "math"

// Normalize applies y = gamma*(x-mean)/sqrt(variance+eps) + beta over every
// element of x, with scalar gamma and beta (1×1 nodes). When batchStats is
// true the statistics are treated as functions of x and the full batch-norm
// gradient is used; otherwise they are constants (inference with running
// statistics).
func Normalize(x, gamma, beta *Node, mean, variance, eps float64, batchStats bool) *Node {
	r, c := x.Value.Dims()
	out := result(r, c, x, gamma, beta)

	std := math.Sqrt(variance + eps)
	g := gamma.Value.At(0, 0)
	b := beta.Value.At(0, 0)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Value.Set(i, j, g*(x.Value.At(i, j)-mean)/std+b)
		}
	}

	if out.requires {
		out.backward = func() {
			n := float64(r * c)
			sumDy := 0.0
			sumDyXhat := 0.0
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					dy := out.Grad.At(i, j)
					xhat := (x.Value.At(i, j) - mean) / std
					sumDy += dy
					sumDyXhat += dy * xhat
				}
			}
			if gamma.requires {
				gamma.Grad.Set(0, 0, gamma.Grad.At(0, 0)+sumDyXhat)
			}
			if beta.requires {
				beta.Grad.Set(0, 0, beta.Grad.At(0, 0)+sumDy)
			}
			if x.requires {
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						dy := out.Grad.At(i, j)
						var dx float64
						if batchStats {
							xhat := (x.Value.At(i, j) - mean) / std
							dx = g / std * (dy - sumDy/n - xhat*sumDyXhat/n)
						} else {
							dx = g / std * dy
						}
						x.Grad.Set(i, j, x.Grad.At(i, j)+dx)
					}
				}
			}
		}
	}
	return out
}
