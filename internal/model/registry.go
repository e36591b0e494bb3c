package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultTagEmbeddingSize is the learned tag-embedding width of the
// encoder-decoder.
const DefaultTagEmbeddingSize = 20

// Spec carries everything needed to construct a model variant.
type Spec struct {
	Name          string
	WordWeights   *mat.Dense
	CharWeights   *mat.Dense
	TagsetSize    int
	HiddenSize    int
	DropRate      float64
	Bidirectional bool
	Freeze        bool
	MaxNorm       float64
	Seed          int64
}

// Names lists the supported model selectors.
func Names() []string { return []string{"encoder", "gru", "rnn"} }

// New dispatches on the model selector. Configuration validation rejects
// unknown names before this point; the error here is a backstop.
func New(spec Spec) (Model, error) {
	rng := rand.New(rand.NewSource(spec.Seed))
	switch spec.Name {
	case "encoder":
		return NewEncoderDecoder(spec.WordWeights, DefaultTagEmbeddingSize,
			spec.HiddenSize, spec.TagsetSize, spec.DropRate,
			spec.Bidirectional, spec.Freeze, spec.MaxNorm, spec.MaxNorm, rng), nil
	case "gru", "rnn":
		return NewGRUTagger(spec.WordWeights, spec.CharWeights,
			spec.HiddenSize, spec.TagsetSize, spec.DropRate,
			spec.Bidirectional, spec.Freeze, spec.MaxNorm, rng), nil
	default:
		return nil, fmt.Errorf("model: unsupported model %q", spec.Name)
	}
}
