package tensor

// StackTime interleaves T step outputs of shape (N, C) into a single
// (N*T, C) node whose row i*T+t holds example i at timestep t, matching a
// row-major flattening of (N, T) labels.
func StackTime(steps []*Node) *Node {
	T := len(steps)
	n, c := steps[0].Value.Dims()
	out := result(n*T, c, steps...)
	for t, step := range steps {
		for i := 0; i < n; i++ {
			out.Value.SetRow(i*T+t, step.Value.RawRowView(i))
		}
	}

	if out.requires {
		out.backward = func() {
			for t, step := range steps {
				if !step.requires {
					continue
				}
				for i := 0; i < n; i++ {
					for j := 0; j < c; j++ {
						step.Grad.Set(i, j, step.Grad.At(i, j)+out.Grad.At(i*T+t, j))
					}
				}
			}
		}
	}
	return out
}

// PoolRows averages groups of table rows: output row i is the mean of the
// table rows listed in groups[i], or zero when the group is empty.
func PoolRows(table *Node, groups [][]int) *Node {
	_, c := table.Value.Dims()
	out := result(len(groups), c, table)
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		inv := 1 / float64(len(group))
		for _, idx := range group {
			for j := 0; j < c; j++ {
				out.Value.Set(i, j, out.Value.At(i, j)+table.Value.At(idx, j)*inv)
			}
		}
	}

	if out.requires {
		out.backward = func() {
			for i, group := range groups {
				if len(group) == 0 {
					continue
				}
				inv := 1 / float64(len(group))
				for _, idx := range group {
					for j := 0; j < c; j++ {
						table.Grad.Set(idx, j, table.Grad.At(idx, j)+out.Grad.At(i, j)*inv)
					}
				}
			}
		}
	}
	return out
}
