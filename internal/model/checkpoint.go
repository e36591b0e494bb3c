package model

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// matrixBlob is the on-disk form of one named parameter.
type matrixBlob struct {
	Rows int
	Cols int
	Data []float64
}

// stater is implemented by model variants that expose their persistent
// matrices by name.
type stater interface {
	state() map[string]*mat.Dense
}

// Save writes every named parameter of the model to path as a gob blob.
func Save(path string, m Model) error {
	s, ok := m.(stater)
	if !ok {
		return fmt.Errorf("checkpoint: model %T does not expose state", m)
	}

	blobs := make(map[string]matrixBlob)
	for name, w := range s.state() {
		r, c := w.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, w.RawRowView(i)...)
		}
		blobs[name] = matrixBlob{Rows: r, Cols: c, Data: data}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(blobs); err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	return nil
}

// Load restores previously saved parameters into a model of the same
// architecture and dimensions.
func Load(path string, m Model) error {
	s, ok := m.(stater)
	if !ok {
		return fmt.Errorf("checkpoint: model %T does not expose state", m)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	defer f.Close()

	var blobs map[string]matrixBlob
	if err := gob.NewDecoder(f).Decode(&blobs); err != nil {
		return fmt.Errorf("checkpoint: decode: %w", err)
	}

	state := s.state()
	for name, w := range state {
		blob, ok := blobs[name]
		if !ok {
			return fmt.Errorf("checkpoint: missing parameter %q", name)
		}
		r, c := w.Dims()
		if blob.Rows != r || blob.Cols != c {
			return fmt.Errorf("checkpoint: parameter %q is %dx%d, want %dx%d",
				name, blob.Rows, blob.Cols, r, c)
		}
		w.Copy(mat.NewDense(r, c, blob.Data))
	}
	for name := range blobs {
		if _, ok := state[name]; !ok {
			return fmt.Errorf("checkpoint: unexpected parameter %q", name)
		}
	}
	return nil
}
