package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"tagforge/internal/tensor"
)

func TestAdamFirstStepMatchesHandComputation(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{1.0}, true)
	p.Grad = mat.NewDense(1, 1, []float64{0.5})

	a := NewAdam([]*tensor.Node{p}, 0.1, 0)
	a.Step()

	g := 0.5
	m := (1 - 0.9) * g
	v := (1 - 0.999) * g * g
	want := 1.0 - 0.1*(m/(1-0.9))/(math.Sqrt(v/(1-0.999))+1e-8)
	assert.InDelta(t, want, p.Value.At(0, 0), 1e-12)
}

func TestAdamWeightDecayPullsTowardZero(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{2.0}, true)
	// Zero gradient: only the decay term moves the parameter.
	a := NewAdam([]*tensor.Node{p}, 0.01, 0.1)
	a.Step()
	assert.Less(t, p.Value.At(0, 0), 2.0)
}

func TestAdamAMSGradKeepsPeakVariance(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{0.0}, true)
	a := NewAdam([]*tensor.Node{p}, 0.1, 0)

	// A large gradient followed by a tiny one: the raw second moment decays
	// but the AMSGrad maximum holds at its peak.
	p.Grad.Set(0, 0, 10)
	a.Step()
	peak := a.vMax[0].At(0, 0)

	p.Grad.Set(0, 0, 1e-4)
	a.Step()
	assert.Less(t, a.v[0].At(0, 0), peak)
	assert.Equal(t, peak, a.vMax[0].At(0, 0))
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize (x - 3)^2 by feeding its gradient directly.
	p := tensor.FromSlice(1, 1, []float64{0.0}, true)
	a := NewAdam([]*tensor.Node{p}, 0.1, 0)

	for i := 0; i < 500; i++ {
		a.ZeroGrad()
		x := p.Value.At(0, 0)
		p.Grad.Set(0, 0, 2*(x-3))
		a.Step()
	}
	assert.InDelta(t, 3.0, p.Value.At(0, 0), 0.05)
}

func TestZeroGrad(t *testing.T) {
	p := tensor.FromSlice(1, 2, []float64{1, 2}, true)
	p.Grad.Set(0, 0, 5)
	a := NewAdam([]*tensor.Node{p}, 0.1, 0)
	a.ZeroGrad()
	assert.Equal(t, 0.0, p.Grad.At(0, 0))
}

func TestPlateauReducesAfterPatience(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{1.0}, true)
	a := NewAdam([]*tensor.Node{p}, 1.0, 0)
	s := NewPlateau(a, 0.1, 2)

	require.False(t, s.Step(10.0)) // establishes the best
	require.False(t, s.Step(10.0)) // bad 1
	require.False(t, s.Step(10.0)) // bad 2
	require.True(t, s.Step(10.0))  // bad 3 > patience: reduce
	assert.InDelta(t, 0.1, a.LR(), 1e-12)
}

func TestPlateauResetsOnImprovement(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{1.0}, true)
	a := NewAdam([]*tensor.Node{p}, 1.0, 0)
	s := NewPlateau(a, 0.1, 2)

	s.Step(10.0)
	s.Step(10.0)
	s.Step(10.0)
	require.False(t, s.Step(5.0)) // real improvement clears the streak
	s.Step(5.0)
	s.Step(5.0)
	require.True(t, s.Step(5.0))
	assert.InDelta(t, 0.1, a.LR(), 1e-12)
}

func TestPlateauThresholdIgnoresTinyImprovement(t *testing.T) {
	p := tensor.FromSlice(1, 1, []float64{1.0}, true)
	a := NewAdam([]*tensor.Node{p}, 1.0, 0)
	s := NewPlateau(a, 0.1, 1)

	s.Step(10.0)
	// A change below the relative threshold does not count as improvement.
	s.Step(10.0 * (1 - 1e-6))
	require.True(t, s.Step(10.0*(1-2e-6)))
}
