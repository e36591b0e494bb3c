package dataset

// Reserved vocabulary entries. The padding token always maps to the last
// row of the embedding table.
const (
	UnknownToken = "<UNK>"
	PaddingToken = "<padding>"
)

// LabelPadding is the sentinel label for padded positions; the loss ignores
// it and the prediction regrouping treats it as an example boundary.
const LabelPadding = -1

// Vocab maps tokens to embedding rows, with reserved unknown and padding
// entries.
type Vocab struct {
	index   map[string]int
	unknown int
	padding int
}

// NewVocab wraps a prepared token index. The unknown and padding tokens must
// already be present.
func NewVocab(index map[string]int) *Vocab {
	return &Vocab{
		index:   index,
		unknown: index[UnknownToken],
		padding: index[PaddingToken],
	}
}

// ID returns the row for a token, falling back to the unknown entry.
func (v *Vocab) ID(token string) int {
	if id, ok := v.index[token]; ok {
		return id
	}
	return v.unknown
}

// UnknownID returns the reserved unknown-token row.
func (v *Vocab) UnknownID() int { return v.unknown }

// PaddingID returns the reserved padding row.
func (v *Vocab) PaddingID() int { return v.padding }

// Size returns the number of entries, padding included.
func (v *Vocab) Size() int { return len(v.index) }

// TagVocab is a bidirectional mapping between label names and indices.
type TagVocab struct {
	index map[string]int
	names []string
}

// NewTagVocab returns an empty tag vocabulary.
func NewTagVocab() *TagVocab {
	return &TagVocab{index: make(map[string]int)}
}

// Add interns a label name and returns its index.
func (t *TagVocab) Add(name string) int {
	if id, ok := t.index[name]; ok {
		return id
	}
	id := len(t.names)
	t.index[name] = id
	t.names = append(t.names, name)
	return id
}

// ID returns the index for a label name.
func (t *TagVocab) ID(name string) (int, bool) {
	id, ok := t.index[name]
	return id, ok
}

// Name inverts an index back to its label name.
func (t *TagVocab) Name(id int) string { return t.names[id] }

// Size returns the number of distinct labels.
func (t *TagVocab) Size() int { return len(t.names) }
