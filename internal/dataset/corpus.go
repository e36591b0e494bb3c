package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Example is one indexed sentence: token indices and an equal-length label
// sequence, plus the raw tokens for prediction output and optional per-token
// character indices.
type Example struct {
	Tokens   []string
	TokenIDs []int
	LabelIDs []int
	CharIDs  [][]int
}

// Dataset is an ordered collection of examples.
type Dataset []Example

// RawExample is one sentence as read from disk, before indexing.
type RawExample struct {
	Tokens []string
	Labels []string
}

// ReadCorpus parses a token-per-line corpus: "<token> <label>" lines with
// blank lines separating sentences.
func ReadCorpus(path string) ([]RawExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var out []RawExample
	var current RawExample
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(current.Tokens) > 0 {
				out = append(out, current)
				current = RawExample{}
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: want \"token label\", got %q", path, lineNo, line)
		}
		current.Tokens = append(current.Tokens, fields[0])
		current.Labels = append(current.Labels, fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(current.Tokens) > 0 {
		out = append(out, current)
	}
	return out, nil
}

// BuildTagVocab interns every label seen in the given corpora.
func BuildTagVocab(corpora ...[]RawExample) *TagVocab {
	tags := NewTagVocab()
	for _, raws := range corpora {
		for _, raw := range raws {
			for _, label := range raw.Labels {
				tags.Add(label)
			}
		}
	}
	return tags
}

// Index converts raw sentences to an indexed dataset. Unknown labels fail:
// the tag vocabulary is fixed once training starts. When charVocab is
// non-nil each token also carries its character indices.
func Index(raws []RawExample, vocab *Vocab, tags *TagVocab, charVocab *Vocab) (Dataset, error) {
	out := make(Dataset, 0, len(raws))
	for _, raw := range raws {
		ex := Example{
			Tokens:   raw.Tokens,
			TokenIDs: make([]int, len(raw.Tokens)),
			LabelIDs: make([]int, len(raw.Labels)),
		}
		for i, tok := range raw.Tokens {
			ex.TokenIDs[i] = vocab.ID(tok)
		}
		for i, label := range raw.Labels {
			id, ok := tags.ID(label)
			if !ok {
				return nil, fmt.Errorf("dataset: label %q not in tag vocabulary", label)
			}
			ex.LabelIDs[i] = id
		}
		if charVocab != nil {
			ex.CharIDs = make([][]int, len(raw.Tokens))
			for i, tok := range raw.Tokens {
				chars := make([]int, 0, len(tok))
				for _, r := range tok {
					chars = append(chars, charVocab.ID(string(r)))
				}
				ex.CharIDs[i] = chars
			}
		}
		out = append(out, ex)
	}
	return out, nil
}

// Splits holds the on-disk locations of a dataset's train/dev/test files.
type Splits struct {
	Train string
	Dev   string
	Test  string
}

// SplitPaths resolves the conventional layout <root>/<name>/{train,dev,test}.txt.
func SplitPaths(root, name string) Splits {
	dir := filepath.Join(root, name)
	return Splits{
		Train: filepath.Join(dir, "train.txt"),
		Dev:   filepath.Join(dir, "dev.txt"),
		Test:  filepath.Join(dir, "test.txt"),
	}
}
