package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"tagforge/internal/dataset"
	"tagforge/internal/nn"
	"tagforge/internal/tensor"
)

// EncoderDecoder is a GRU encoder feeding its summary state into an
// autoregressive GRU decoder that emits one label per token position. The
// decoder consumes its own greedy argmax prediction at every step; there is
// no teacher forcing. The start-of-sequence input index equals the tagset
// size and maps to the extra row of the tag-embedding table.
type EncoderDecoder struct {
	hiddenDim  int
	tagsetSize int
	bidi       bool
	training   bool

	wordEmb *nn.Embedding
	encFwd  *nn.GRUCell
	encBwd  *nn.GRUCell

	tagEmb *nn.Embedding
	dec    *nn.GRUCell
	bnorm  *nn.BatchNorm
	out    *nn.Linear
	drop   *nn.Dropout
}

// NewEncoderDecoder builds the model around a pretrained word-embedding
// matrix whose final row is the padding vector. A bidirectional encoder
// splits the hidden dimension across the two directions so the bridged
// state is hiddenDim wide either way.
func NewEncoderDecoder(wordWeights *mat.Dense, tagEmbSize, hiddenDim, tagsetSize int,
	dropRate float64, bidirectional, freeze bool, wordMaxNorm, tagMaxNorm float64,
	rng *rand.Rand) *EncoderDecoder {

	m := &EncoderDecoder{
		hiddenDim:  hiddenDim,
		tagsetSize: tagsetSize,
		bidi:       bidirectional,
		training:   true,
		wordEmb:    nn.NewPretrainedEmbedding(wordWeights, wordMaxNorm, freeze),
		tagEmb:     nn.NewEmbedding(tagsetSize+1, tagEmbSize, tagMaxNorm, rng),
		dec:        nn.NewGRUCell(tagEmbSize, hiddenDim, rng),
		bnorm:      nn.NewBatchNorm(),
		drop:       nn.NewDropout(dropRate, rng),
	}
	m.out = nn.NewLinear(hiddenDim, tagsetSize, rng)

	embDim := m.wordEmb.Dim()
	if bidirectional {
		m.encFwd = nn.NewGRUCell(embDim, hiddenDim/2, rng)
		m.encBwd = nn.NewGRUCell(embDim, hiddenDim/2, rng)
	} else {
		m.encFwd = nn.NewGRUCell(embDim, hiddenDim, rng)
	}
	return m
}

// Train switches dropout and batch normalization to training behavior.
func (m *EncoderDecoder) Train() { m.training = true }

// Eval switches to inference behavior.
func (m *EncoderDecoder) Eval() { m.training = false }

// forward runs the full encode-bridge-decode pass, returning flattened
// log-probabilities of shape (N*T, tagset) and the matching flattened gold
// labels.
func (m *EncoderDecoder) forward(batch dataset.Batch) (*tensor.Node, []int) {
	n := batch.Size()
	maxLen := batch.MaxLen()

	// Encode. Padded positions run through the recurrence like any other;
	// their embedding is the reserved zero padding row.
	embedded := make([]*tensor.Node, maxLen)
	hf := m.encFwd.InitHidden(n)
	for t := 0; t < maxLen; t++ {
		x := m.drop.Apply(m.wordEmb.Lookup(batch.TokenColumn(t)), m.training)
		embedded[t] = x
		hf = m.encFwd.Step(x, hf)
	}

	// Bridge: the single hand-off point of state ownership. A bidirectional
	// encoder's direction slices are concatenated back to hiddenDim.
	hidden := hf
	if m.bidi {
		hb := m.encBwd.InitHidden(n)
		for t := maxLen - 1; t >= 0; t-- {
			hb = m.encBwd.Step(embedded[t], hb)
		}
		hidden = tensor.Concat(hf, hb)
	}

	// Decode one position at a time, feeding each step's argmax back in.
	prev := make([]int, n)
	for i := range prev {
		prev[i] = m.tagsetSize // start-of-sequence
	}
	steps := make([]*tensor.Node, 0, maxLen)
	for t := 0; t < maxLen; t++ {
		x := tensor.ReLU(m.drop.Apply(m.tagEmb.Lookup(prev), m.training))
		hidden = m.dec.Step(x, hidden)
		o := m.bnorm.Forward(hidden, m.training)
		o = m.drop.Apply(o, m.training)
		o = tensor.LogSoftmax(m.out.Forward(o))
		prev = tensor.ArgmaxRows(o.Value)
		steps = append(steps, o)
	}

	return tensor.StackTime(steps), batch.FlatLabels()
}

// ComputeLoss implements Model.
func (m *EncoderDecoder) ComputeLoss(batch dataset.Batch) (*Result, error) {
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
func (m *EncoderDecoder) Predict(batch dataset.Batch) [][]int {
	logProbs, _ := m.forward(batch)
	return regroup(tensor.ArgmaxRows(logProbs.Value), batch)
}

// Params implements Model.
func (m *EncoderDecoder) Params() []*tensor.Node {
	params := m.wordEmb.Params()
	params = append(params, m.encFwd.Params()...)
	if m.encBwd != nil {
		params = append(params, m.encBwd.Params()...)
	}
	params = append(params, m.tagEmb.Params()...)
	params = append(params, m.dec.Params()...)
	params = append(params, m.bnorm.Params()...)
	params = append(params, m.out.Params()...)
	return params
}

// state exposes every persistent matrix by name for checkpointing.
func (m *EncoderDecoder) state() map[string]*mat.Dense {
	s := map[string]*mat.Dense{
		"word_embedding": m.wordEmb.Table.Value,
		"tag_embedding":  m.tagEmb.Table.Value,
	}
	namedGRU(s, "encoder_fwd", m.encFwd)
	if m.encBwd != nil {
		namedGRU(s, "encoder_bwd", m.encBwd)
	}
	namedGRU(s, "decoder", m.dec)
	s["bnorm_gamma"] = m.bnorm.Gamma.Value
	s["bnorm_beta"] = m.bnorm.Beta.Value
	s["bnorm_running"] = m.bnorm.Running()
	s["out_w"] = m.out.W.Value
	s["out_b"] = m.out.B.Value
	return s
}

func namedGRU(s map[string]*mat.Dense, prefix string, c *nn.GRUCell) {
	s[prefix+"_wr"] = c.Wr.Value
	s[prefix+"_wz"] = c.Wz.Value
	s[prefix+"_wn"] = c.Wn.Value
	s[prefix+"_ur"] = c.Ur.Value
	s[prefix+"_uz"] = c.Uz.Value
	s[prefix+"_un"] = c.Un.Value
	s[prefix+"_bir"] = c.Bir.Value
	s[prefix+"_biz"] = c.Biz.Value
	s[prefix+"_bin"] = c.Bin.Value
	s[prefix+"_bhr"] = c.Bhr.Value
	s[prefix+"_bhz"] = c.Bhz.Value
	s[prefix+"_bhn"] = c.Bhn.Value
}
