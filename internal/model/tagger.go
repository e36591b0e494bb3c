package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"tagforge/internal/dataset"
	"tagforge/internal/nn"
	"tagforge/internal/tensor"
)

// GRUTagger is the non-autoregressive variant: a (bi)directional GRU over
// the sentence with a per-timestep linear projection to the tagset. It
// shares the harness contract with the encoder-decoder and optionally folds
// mean-pooled character embeddings into each token vector.
type GRUTagger struct {
	hiddenDim  int
	tagsetSize int
	bidi       bool
	training   bool

	wordEmb *nn.Embedding
	charEmb *nn.Embedding
	fwd     *nn.GRUCell
	bwd     *nn.GRUCell
	out     *nn.Linear
	drop    *nn.Dropout
}

// NewGRUTagger builds the tagger. charWeights may be nil.
func NewGRUTagger(wordWeights, charWeights *mat.Dense, hiddenDim, tagsetSize int,
	dropRate float64, bidirectional, freeze bool, maxNorm float64, rng *rand.Rand) *GRUTagger {

	m := &GRUTagger{
		hiddenDim:  hiddenDim,
		tagsetSize: tagsetSize,
		bidi:       bidirectional,
		training:   true,
		wordEmb:    nn.NewPretrainedEmbedding(wordWeights, maxNorm, freeze),
		drop:       nn.NewDropout(dropRate, rng),
	}
	inDim := m.wordEmb.Dim()
	if charWeights != nil {
		m.charEmb = nn.NewPretrainedEmbedding(charWeights, maxNorm, freeze)
		inDim += m.charEmb.Dim()
	}
	if bidirectional {
		m.fwd = nn.NewGRUCell(inDim, hiddenDim/2, rng)
		m.bwd = nn.NewGRUCell(inDim, hiddenDim/2, rng)
	} else {
		m.fwd = nn.NewGRUCell(inDim, hiddenDim, rng)
	}
	m.out = nn.NewLinear(hiddenDim, tagsetSize, rng)
	return m
}

// Train implements Model.
func (m *GRUTagger) Train() { m.training = true }

// Eval implements Model.
func (m *GRUTagger) Eval() { m.training = false }

func (m *GRUTagger) inputs(batch dataset.Batch) []*tensor.Node {
	maxLen := batch.MaxLen()
	xs := make([]*tensor.Node, maxLen)
	for t := 0; t < maxLen; t++ {
		x := m.wordEmb.Lookup(batch.TokenColumn(t))
		if m.charEmb != nil && batch.Chars != nil {
			groups := make([][]int, batch.Size())
			for i := range groups {
				groups[i] = batch.Chars[i][t]
			}
			x = tensor.Concat(x, m.charEmb.Pool(groups))
		}
		xs[t] = m.drop.Apply(x, m.training)
	}
	return xs
}

func (m *GRUTagger) forward(batch dataset.Batch) (*tensor.Node, []int) {
	n := batch.Size()
	maxLen := batch.MaxLen()
	xs := m.inputs(batch)

	fwdStates := make([]*tensor.Node, maxLen)
	h := m.fwd.InitHidden(n)
	for t := 0; t < maxLen; t++ {
		h = m.fwd.Step(xs[t], h)
		fwdStates[t] = h
	}

	states := fwdStates
	if m.bidi {
		bwdStates := make([]*tensor.Node, maxLen)
		h = m.bwd.InitHidden(n)
		for t := maxLen - 1; t >= 0; t-- {
			h = m.bwd.Step(xs[t], h)
			bwdStates[t] = h
		}
		states = make([]*tensor.Node, maxLen)
		for t := 0; t < maxLen; t++ {
			states[t] = tensor.Concat(fwdStates[t], bwdStates[t])
		}
	}

	steps := make([]*tensor.Node, maxLen)
	for t := 0; t < maxLen; t++ {
		o := m.drop.Apply(states[t], m.training)
		steps[t] = tensor.LogSoftmax(m.out.Forward(o))
	}
	return tensor.StackTime(steps), batch.FlatLabels()
}

// ComputeLoss implements Model.
func (m *GRUTagger) ComputeLoss(batch dataset.Batch) (*Result, error) {
	logProbs, gold := m.forward(batch)
	loss, err := tensor.MaskedNLL(logProbs, gold, dataset.LabelPadding)
	if err != nil {
		return nil, err
	}
	return &Result{
		Loss:      loss,
		Predicted: tensor.ArgmaxRows(logProbs.Value),
		Gold:      gold,
	}, nil
}

// Predict implements Model.
func (m *GRUTagger) Predict(batch dataset.Batch) [][]int {
	logProbs, _ := m.forward(batch)
	return regroup(tensor.ArgmaxRows(logProbs.Value), batch)
}

// Params implements Model.
func (m *GRUTagger) Params() []*tensor.Node {
	params := m.wordEmb.Params()
	if m.charEmb != nil {
		params = append(params, m.charEmb.Params()...)
	}
	params = append(params, m.fwd.Params()...)
	if m.bwd != nil {
		params = append(params, m.bwd.Params()...)
	}
	params = append(params, m.out.Params()...)
	return params
}

func (m *GRUTagger) state() map[string]*mat.Dense {
	s := map[string]*mat.Dense{
		"word_embedding": m.wordEmb.Table.Value,
	}
	if m.charEmb != nil {
		s["char_embedding"] = m.charEmb.Table.Value
	}
	namedGRU(s, "gru_fwd", m.fwd)
	if m.bwd != nil {
		namedGRU(s, "gru_bwd", m.bwd)
	}
	s["out_w"] = m.out.W.Value
	s["out_b"] = m.out.B.Value
	return s
}
