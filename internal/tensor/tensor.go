package tensor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Node is a 2-D value on the autodiff tape. Ops that consume nodes record a
// backward closure so Backward can replay the tape in reverse. Shape
// mismatches panic inside gonum, aborting the run.
type Node struct {
	Value *mat.Dense
	Grad  *mat.Dense

	requires bool
	children []*Node
	backward func()
}

// New wraps an existing matrix. The node owns the matrix from here on.
func New(value *mat.Dense, requiresGrad bool) *Node {
	n := &Node{Value: value, requires: requiresGrad}
	if requiresGrad {
		r, c := value.Dims()
		n.Grad = mat.NewDense(r, c, nil)
	}
	return n
}

// Zeros returns a zero-valued node.
func Zeros(rows, cols int, requiresGrad bool) *Node {
	return New(mat.NewDense(rows, cols, nil), requiresGrad)
}

// FromSlice builds a node from row-major data.
func FromSlice(rows, cols int, data []float64, requiresGrad bool) *Node {
	return New(mat.NewDense(rows, cols, data), requiresGrad)
}

// Uniform returns a node initialized uniformly in [-scale, scale).
func Uniform(rows, cols int, scale float64, rng *rand.Rand) *Node {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return New(mat.NewDense(rows, cols, data), true)
}

// Xavier returns a node with Glorot-uniform initialization.
func Xavier(rows, cols int, rng *rand.Rand) *Node {
	return Uniform(rows, cols, math.Sqrt(6.0/float64(rows+cols)), rng)
}

// RequiresGrad reports whether the node accumulates gradients.
func (n *Node) RequiresGrad() bool { return n.requires }

// ZeroGrad clears the accumulated gradient.
func (n *Node) ZeroGrad() {
	if n.Grad != nil {
		n.Grad.Zero()
	}
}

// Dims returns the node's shape.
func (n *Node) Dims() (int, int) { return n.Value.Dims() }

// Backward runs reverse-mode differentiation from n. If n is a scalar its
// gradient is seeded with 1.
func (n *Node) Backward() {
	if r, c := n.Value.Dims(); r == 1 && c == 1 && n.Grad != nil {
		n.Grad.Set(0, 0, 1)
	}

	visited := make(map[*Node]bool)
	var topo []*Node
	var build func(node *Node)
	build = func(node *Node) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, child := range node.children {
			build(child)
		}
		topo = append(topo, node)
	}
	build(n)

	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].backward != nil {
			topo[i].backward()
		}
	}
}

// result allocates the output node for an op over the given inputs,
// inheriting gradient tracking from any input that requires it.
func result(rows, cols int, inputs ...*Node) *Node {
	requires := false
	for _, in := range inputs {
		if in.requires {
			requires = true
			break
		}
	}
	out := Zeros(rows, cols, requires)
	if requires {
		out.children = append(out.children, inputs...)
	}
	return out
}
