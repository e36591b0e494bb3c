package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatMul returns a×b.
func MatMul(a, b *Node) *Node {
	ar, _ := a.Value.Dims()
	_, bc := b.Value.Dims()
	out := result(ar, bc, a, b)
	out.Value.Mul(a.Value, b.Value)

	if out.requires {
		out.backward = func() {
			if a.requires {
				var da mat.Dense
				da.Mul(out.Grad, b.Value.T())
				a.Grad.Add(a.Grad, &da)
			}
			if b.requires {
				var db mat.Dense
				db.Mul(a.Value.T(), out.Grad)
				b.Grad.Add(b.Grad, &db)
			}
		}
	}
	return out
}

// Add returns a+b element-wise.
func Add(a, b *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a, b)
	out.Value.Add(a.Value, b.Value)

	if out.requires {
		out.backward = func() {
			if a.requires {
				a.Grad.Add(a.Grad, out.Grad)
			}
			if b.requires {
				b.Grad.Add(b.Grad, out.Grad)
			}
		}
	}
	return out
}

// AddBias adds a 1×C bias row to every row of a.
func AddBias(a, bias *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a, bias)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Value.Set(i, j, a.Value.At(i, j)+bias.Value.At(0, j))
		}
	}

	if out.requires {
		out.backward = func() {
			if a.requires {
				a.Grad.Add(a.Grad, out.Grad)
			}
			if bias.requires {
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						bias.Grad.Set(0, j, bias.Grad.At(0, j)+out.Grad.At(i, j))
					}
				}
			}
		}
	}
	return out
}

// Mul returns the Hadamard product a∘b.
func Mul(a, b *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a, b)
	out.Value.MulElem(a.Value, b.Value)

	if out.requires {
		out.backward = func() {
			if a.requires {
				var da mat.Dense
				da.MulElem(out.Grad, b.Value)
				a.Grad.Add(a.Grad, &da)
			}
			if b.requires {
				var db mat.Dense
				db.MulElem(out.Grad, a.Value)
				b.Grad.Add(b.Grad, &db)
			}
		}
	}
	return out
}

// Scale returns a multiplied by a constant.
func Scale(a *Node, k float64) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	out.Value.Scale(k, a.Value)

	if out.requires {
		out.backward = func() {
			var da mat.Dense
			da.Scale(k, out.Grad)
			a.Grad.Add(a.Grad, &da)
		}
	}
	return out
}

// OneMinus returns 1-a element-wise. Used for the GRU update gate.
func OneMinus(a *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	out.Value.Apply(func(_, _ int, v float64) float64 { return 1 - v }, a.Value)

	if out.requires {
		out.backward = func() {
			a.Grad.Apply(func(i, j int, v float64) float64 {
				return v - out.Grad.At(i, j)
			}, a.Grad)
		}
	}
	return out
}

// Concat joins a and b along the feature (column) axis.
func Concat(a, b *Node) *Node {
	r, ac := a.Value.Dims()
	_, bc := b.Value.Dims()
	out := result(r, ac+bc, a, b)
	out.Value.Slice(0, r, 0, ac).(*mat.Dense).Copy(a.Value)
	out.Value.Slice(0, r, ac, ac+bc).(*mat.Dense).Copy(b.Value)

	if out.requires {
		out.backward = func() {
			if a.requires {
				a.Grad.Add(a.Grad, out.Grad.Slice(0, r, 0, ac))
			}
			if b.requires {
				b.Grad.Add(b.Grad, out.Grad.Slice(0, r, ac, ac+bc))
			}
		}
	}
	return out
}

// Gather selects rows of table by index, one output row per index.
// The backward pass scatter-adds into the selected rows.
func Gather(table *Node, indices []int) *Node {
	_, c := table.Value.Dims()
	out := result(len(indices), c, table)
	for i, idx := range indices {
		out.Value.SetRow(i, table.Value.RawRowView(idx))
	}

	if out.requires {
		out.backward = func() {
			for i, idx := range indices {
				for j := 0; j < c; j++ {
					table.Grad.Set(idx, j, table.Grad.At(idx, j)+out.Grad.At(i, j))
				}
			}
		}
	}
	return out
}

// Sigmoid applies the logistic function element-wise.
func Sigmoid(a *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	out.Value.Apply(func(_, _ int, v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	}, a.Value)

	if out.requires {
		out.backward = func() {
			a.Grad.Apply(func(i, j int, v float64) float64 {
				s := out.Value.At(i, j)
				return v + out.Grad.At(i, j)*s*(1-s)
			}, a.Grad)
		}
	}
	return out
}

// Tanh applies the hyperbolic tangent element-wise.
func Tanh(a *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	out.Value.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, a.Value)

	if out.requires {
		out.backward = func() {
			a.Grad.Apply(func(i, j int, v float64) float64 {
				t := out.Value.At(i, j)
				return v + out.Grad.At(i, j)*(1-t*t)
			}, a.Grad)
		}
	}
	return out
}

// ReLU clips negative values to zero.
func ReLU(a *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	out.Value.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, a.Value)

	if out.requires {
		out.backward = func() {
			a.Grad.Apply(func(i, j int, v float64) float64 {
				if a.Value.At(i, j) > 0 {
					return v + out.Grad.At(i, j)
				}
				return v
			}, a.Grad)
		}
	}
	return out
}

// LogSoftmax normalizes each row to log-probabilities.
func LogSoftmax(a *Node) *Node {
	r, c := a.Value.Dims()
	out := result(r, c, a)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, a.Value)
		max := floats.Max(row)
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - max)
		}
		logSum := math.Log(sum) + max
		for j, v := range row {
			out.Value.Set(i, j, v-logSum)
		}
	}

	if out.requires {
		out.backward = func() {
			grad := make([]float64, c)
			for i := 0; i < r; i++ {
				mat.Row(grad, i, out.Grad)
				gradSum := floats.Sum(grad)
				for j := 0; j < c; j++ {
					softmax := math.Exp(out.Value.At(i, j))
					a.Grad.Set(i, j, a.Grad.At(i, j)+grad[j]-softmax*gradSum)
				}
			}
		}
	}
	return out
}

// ArgmaxRows returns the index of the largest value in each row.
func ArgmaxRows(m *mat.Dense) []int {
	r, c := m.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		out[i] = floats.MaxIdx(row)
	}
	return out
}
