package optim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"tagforge/internal/tensor"
)

// Adam implements the Adam optimizer with the AMSGrad variant and L2 weight
// decay folded into the gradient. Parameters are updated in place, strictly
// after the backward pass for a batch has completed.
type Adam struct {
	params []*tensor.Node

	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	step int
	m    []*mat.Dense
	v    []*mat.Dense
	vMax []*mat.Dense
}

// NewAdam builds the optimizer over the given parameters.
func NewAdam(params []*tensor.Node, lr, weightDecay float64) *Adam {
	a := &Adam{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
		m:           make([]*mat.Dense, len(params)),
		v:           make([]*mat.Dense, len(params)),
		vMax:        make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
		a.vMax[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.lr }

// SetLR replaces the learning rate; used by the scheduler.
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// ZeroGrad clears every parameter gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one optimizer update from the accumulated gradients.
func (a *Adam) Step() {
	a.step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, p := range a.params {
		r, c := p.Dims()
		for row := 0; row < r; row++ {
			for col := 0; col < c; col++ {
				g := p.Grad.At(row, col)
				if a.weightDecay > 0 {
					g += a.weightDecay * p.Value.At(row, col)
				}
				m := a.beta1*a.m[i].At(row, col) + (1-a.beta1)*g
				v := a.beta2*a.v[i].At(row, col) + (1-a.beta2)*g*g
				a.m[i].Set(row, col, m)
				a.v[i].Set(row, col, v)

				vm := a.vMax[i].At(row, col)
				if v > vm {
					vm = v
					a.vMax[i].Set(row, col, vm)
				}

				update := a.lr * (m / bc1) / (math.Sqrt(vm/bc2) + a.eps)
				p.Value.Set(row, col, p.Value.At(row, col)-update)
			}
		}
	}
}
