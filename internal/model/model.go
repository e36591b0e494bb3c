package model

import (
	"tagforge/internal/dataset"
	"tagforge/internal/tensor"
)

// Result is the output of one loss computation: the scalar loss node still
// attached to the tape, plus the flattened argmax predictions and gold
// labels (padding positions hold dataset.LabelPadding).
type Result struct {
	Loss      *tensor.Node
	Predicted []int
	Gold      []int
}

// Model is the training-step contract shared by every architecture, so the
// trainer never has to know which variant it is driving.
type Model interface {
	// ComputeLoss runs a forward pass over the batch and returns the masked
	// negative log-likelihood together with the flattened predictions.
	ComputeLoss(batch dataset.Batch) (*Result, error)

	// Predict returns one label sequence per example, trimmed to the
	// example's true length.
	Predict(batch dataset.Batch) [][]int

	// Train and Eval switch dropout and batch normalization behavior.
	Train()
	Eval()

	// Params lists every trainable parameter for the optimizer.
	Params() []*tensor.Node
}

// regroup splits flattened per-position predictions back into per-example
// sequences using the batch's true lengths.
func regroup(flat []int, batch dataset.Batch) [][]int {
	maxLen := batch.MaxLen()
	out := make([][]int, batch.Size())
	for i := range out {
		start := i * maxLen
		out[i] = append([]int(nil), flat[start:start+batch.Lengths[i]]...)
	}
	return out
}
