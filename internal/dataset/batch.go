package dataset

// Batch is a collated group of examples padded to a common length. Token
// padding uses the vocabulary's padding index; label padding uses
// LabelPadding so the loss can mask it out.
type Batch struct {
	Tokens  [][]int
	Labels  [][]int
	Chars   [][][]int
	Lengths []int
}

// Assemble pads the given examples to the batch's maximum length.
func Assemble(examples []Example, padID int) Batch {
	maxLen := 0
	for _, ex := range examples {
		if len(ex.TokenIDs) > maxLen {
			maxLen = len(ex.TokenIDs)
		}
	}

	b := Batch{
		Tokens:  make([][]int, len(examples)),
		Labels:  make([][]int, len(examples)),
		Lengths: make([]int, len(examples)),
	}
	withChars := false
	for _, ex := range examples {
		if ex.CharIDs != nil {
			withChars = true
			break
		}
	}
	if withChars {
		b.Chars = make([][][]int, len(examples))
	}

	for i, ex := range examples {
		tokens := make([]int, maxLen)
		labels := make([]int, maxLen)
		for t := 0; t < maxLen; t++ {
			if t < len(ex.TokenIDs) {
				tokens[t] = ex.TokenIDs[t]
				labels[t] = ex.LabelIDs[t]
			} else {
				tokens[t] = padID
				labels[t] = LabelPadding
			}
		}
		b.Tokens[i] = tokens
		b.Labels[i] = labels
		b.Lengths[i] = len(ex.TokenIDs)
		if withChars {
			chars := make([][]int, maxLen)
			copy(chars, ex.CharIDs)
			b.Chars[i] = chars
		}
	}
	return b
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int { return len(b.Tokens) }

// MaxLen returns the padded sequence length.
func (b Batch) MaxLen() int {
	if len(b.Tokens) == 0 {
		return 0
	}
	return len(b.Tokens[0])
}

// TokenColumn returns the token index of every example at timestep t.
func (b Batch) TokenColumn(t int) []int {
	col := make([]int, len(b.Tokens))
	for i := range b.Tokens {
		col[i] = b.Tokens[i][t]
	}
	return col
}

// FlatLabels flattens labels row-major: example i's labels occupy positions
// i*T through i*T+T-1.
func (b Batch) FlatLabels() []int {
	flat := make([]int, 0, len(b.Labels)*b.MaxLen())
	for i := range b.Labels {
		flat = append(flat, b.Labels[i]...)
	}
	return flat
}
