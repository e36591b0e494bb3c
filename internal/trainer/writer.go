package trainer

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"tagforge/internal/dataset"
)

// WritePredictions serializes aligned (token, gold, predicted) triples, one
// token per line and a blank line after each example, mapping label indices
// back to names through the tag vocabulary.
func WritePredictions(w io.Writer, tokens [][]string, gold, predicted [][]int, tags *dataset.TagVocab) error {
	if len(tokens) != len(gold) || len(gold) != len(predicted) {
		return fmt.Errorf("write predictions: got %d token, %d gold, %d predicted sequences",
			len(tokens), len(gold), len(predicted))
	}

	bw := bufio.NewWriter(w)
	for i := range tokens {
		for j := range tokens[i] {
			if _, err := fmt.Fprintf(bw, "%s %s %s\n",
				tokens[i][j], tags.Name(gold[i][j]), tags.Name(predicted[i][j])); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePredictionFile writes predictions to a file path.
func WritePredictionFile(path string, tokens [][]string, gold, predicted [][]int, tags *dataset.TagVocab) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	if err := WritePredictions(f, tokens, gold, predicted, tags); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
