package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadEmbeddings reads a word2vec-style text table: one "<token> v1 … vd"
// line per token. The returned matrix has one extra zero row appended last
// for the padding token; an unknown-token row is added if the table lacks
// one. All vectors must share the dimension of the first line.
func LoadEmbeddings(path string) (*Vocab, *mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	index := make(map[string]int)
	var rows [][]float64
	dim := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, nil, fmt.Errorf("%s:%d: malformed embedding line", path, lineNo)
		}
		token := fields[0]
		vec := make([]float64, len(fields)-1)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			vec[i] = v
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, nil, fmt.Errorf("%s:%d: vector size %d, want %d", path, lineNo, len(vec), dim)
		}
		if _, dup := index[token]; dup {
			return nil, nil, fmt.Errorf("%s:%d: duplicate token %q", path, lineNo, token)
		}
		index[token] = len(rows)
		rows = append(rows, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read embeddings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: empty embedding table", path)
	}

	if _, ok := index[UnknownToken]; !ok {
		index[UnknownToken] = len(rows)
		rows = append(rows, make([]float64, dim))
	}
	// The padding vector is the reserved final row.
	index[PaddingToken] = len(rows)
	rows = append(rows, make([]float64, dim))

	weights := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		weights.SetRow(i, row)
	}
	return NewVocab(index), weights, nil
}
