package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatMulForwardBackward(t *testing.T) {
	a := FromSlice(2, 3, []float64{1, 2, 3, 4, 5, 6}, true)
	b := FromSlice(3, 2, []float64{1, 0, 0, 1, 1, 1}, true)

	c := MatMul(a, b)
	rows, cols := c.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	assert.InDelta(t, 4.0, c.Value.At(0, 0), 1e-12)
	assert.InDelta(t, 5.0, c.Value.At(0, 1), 1e-12)

	// Seed the output gradient with ones and replay the tape.
	c.Grad = mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	c.Backward()
	// dA = ones * B^T: each row is the column sums of B.
	assert.InDelta(t, 1.0, a.Grad.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, a.Grad.At(0, 1), 1e-12)
	assert.InDelta(t, 2.0, a.Grad.At(0, 2), 1e-12)
}

func TestAddBiasBroadcast(t *testing.T) {
	x := FromSlice(2, 2, []float64{1, 2, 3, 4}, true)
	b := FromSlice(1, 2, []float64{10, 20}, true)

	y := AddBias(x, b)
	assert.InDelta(t, 11.0, y.Value.At(0, 0), 1e-12)
	assert.InDelta(t, 24.0, y.Value.At(1, 1), 1e-12)
}

func TestLogSoftmaxRowsAreDistributions(t *testing.T) {
	x := FromSlice(2, 3, []float64{1, 2, 3, -5, 0, 5}, false)
	y := LogSoftmax(x)

	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			lp := y.Value.At(i, j)
			require.LessOrEqual(t, lp, 0.0)
			sum += math.Exp(lp)
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestLogSoftmaxShiftInvariant(t *testing.T) {
	x := FromSlice(1, 3, []float64{1000, 1001, 1002}, false)
	y := LogSoftmax(x)
	for j := 0; j < 3; j++ {
		require.False(t, math.IsNaN(y.Value.At(0, j)))
		require.False(t, math.IsInf(y.Value.At(0, j), 0))
	}
}

func TestSigmoidTanhRanges(t *testing.T) {
	x := FromSlice(1, 3, []float64{-100, 0, 100}, false)

	s := Sigmoid(x)
	assert.InDelta(t, 0.0, s.Value.At(0, 0), 1e-9)
	assert.InDelta(t, 0.5, s.Value.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, s.Value.At(0, 2), 1e-9)

	th := Tanh(x)
	assert.InDelta(t, -1.0, th.Value.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0, th.Value.At(0, 1), 1e-12)
}

func TestReLUBackwardMasksNegatives(t *testing.T) {
	x := FromSlice(1, 3, []float64{-1, 0, 2}, true)
	y := ReLU(x)
	assert.Equal(t, 0.0, y.Value.At(0, 0))
	assert.Equal(t, 2.0, y.Value.At(0, 2))

	y.Grad = mat.NewDense(1, 3, []float64{1, 1, 1})
	y.backward()
	assert.Equal(t, 0.0, x.Grad.At(0, 0))
	assert.Equal(t, 1.0, x.Grad.At(0, 2))
}

func TestConcatColumns(t *testing.T) {
	a := FromSlice(2, 2, []float64{1, 2, 3, 4}, true)
	b := FromSlice(2, 1, []float64{9, 8}, true)

	c := Concat(a, b)
	rows, cols := c.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	assert.Equal(t, 9.0, c.Value.At(0, 2))
	assert.Equal(t, 3.0, c.Value.At(1, 0))

	c.Grad = mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	c.backward()
	assert.Equal(t, 2.0, a.Grad.At(0, 1))
	assert.Equal(t, 3.0, b.Grad.At(0, 0))
	assert.Equal(t, 6.0, b.Grad.At(1, 0))
}

func TestGatherScatterAdd(t *testing.T) {
	table := FromSlice(3, 2, []float64{1, 1, 2, 2, 3, 3}, true)
	out := Gather(table, []int{2, 0, 2})

	assert.Equal(t, 3.0, out.Value.At(0, 0))
	assert.Equal(t, 1.0, out.Value.At(1, 0))

	out.Grad = mat.NewDense(3, 2, []float64{1, 1, 1, 1, 1, 1})
	out.backward()
	// Row 2 was selected twice so its gradient accumulates.
	assert.Equal(t, 2.0, table.Grad.At(2, 0))
	assert.Equal(t, 1.0, table.Grad.At(0, 0))
	assert.Equal(t, 0.0, table.Grad.At(1, 0))
}

func TestArgmaxRows(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{0.1, 0.9, 0.3, 5, -1, 2})
	assert.Equal(t, []int{1, 0}, ArgmaxRows(m))
}

func TestMaskedNLL(t *testing.T) {
	// Two rows of log-probabilities, second row padded out.
	lp := FromSlice(2, 2, []float64{
		math.Log(0.25), math.Log(0.75),
		math.Log(0.5), math.Log(0.5),
	}, true)

	loss, err := MaskedNLL(lp, []int{1, -1}, -1)
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.75), loss.Value.At(0, 0), 1e-12)

	loss.Backward()
	assert.InDelta(t, -1.0, lp.Grad.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, lp.Grad.At(0, 0))
	assert.Equal(t, 0.0, lp.Grad.At(1, 0))
	assert.Equal(t, 0.0, lp.Grad.At(1, 1))
}

func TestMaskedNLLAllIgnored(t *testing.T) {
	lp := FromSlice(1, 2, []float64{-1, -1}, true)
	_, err := MaskedNLL(lp, []int{-1}, -1)
	require.ErrorIs(t, err, ErrNoValidLabels)
}

func TestStackTimeRowOrder(t *testing.T) {
	// Two timesteps of a batch of two; output row layout is i*T+t.
	t0 := FromSlice(2, 1, []float64{10, 20}, true)
	t1 := FromSlice(2, 1, []float64{11, 21}, true)

	s := StackTime([]*Node{t0, t1})
	rows, _ := s.Dims()
	require.Equal(t, 4, rows)
	assert.Equal(t, 10.0, s.Value.At(0, 0))
	assert.Equal(t, 11.0, s.Value.At(1, 0))
	assert.Equal(t, 20.0, s.Value.At(2, 0))
	assert.Equal(t, 21.0, s.Value.At(3, 0))

	s.Grad = mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	s.backward()
	assert.Equal(t, 1.0, t0.Grad.At(0, 0))
	assert.Equal(t, 3.0, t0.Grad.At(1, 0))
	assert.Equal(t, 2.0, t1.Grad.At(0, 0))
	assert.Equal(t, 4.0, t1.Grad.At(1, 0))
}

func TestPoolRowsMeansGroups(t *testing.T) {
	table := FromSlice(3, 2, []float64{2, 4, 4, 8, 6, 0}, true)
	out := PoolRows(table, [][]int{{0, 1}, {}, {2}})

	assert.Equal(t, 3.0, out.Value.At(0, 0))
	assert.Equal(t, 6.0, out.Value.At(0, 1))
	assert.Equal(t, 0.0, out.Value.At(1, 0))
	assert.Equal(t, 6.0, out.Value.At(2, 0))
}

func TestBackwardThroughChain(t *testing.T) {
	// f(x) = sum(sigmoid(x * w)) with scalar shapes; check by finite differences.
	x := FromSlice(1, 1, []float64{0.5}, false)
	w := FromSlice(1, 1, []float64{1.5}, true)

	f := func(wv float64) float64 {
		return 1 / (1 + math.Exp(-0.5*wv))
	}
	out := Sigmoid(MatMul(x, w))
	out.Backward()

	const h = 1e-6
	numeric := (f(1.5+h) - f(1.5-h)) / (2 * h)
	assert.InDelta(t, numeric, w.Grad.At(0, 0), 1e-6)
}

func TestZeroGrad(t *testing.T) {
	x := FromSlice(1, 2, []float64{1, 2}, true)
	y := Scale(x, 2)
	y.Grad = mat.NewDense(1, 2, []float64{1, 1})
	y.backward()
	require.Equal(t, 2.0, x.Grad.At(0, 0))

	x.ZeroGrad()
	assert.Equal(t, 0.0, x.Grad.At(0, 0))
	assert.True(t, x.RequiresGrad())
}
