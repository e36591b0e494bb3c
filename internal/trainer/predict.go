package trainer

import (
	"context"

	"tagforge/internal/dataset"
	"tagforge/internal/model"
)

// Predict runs inference-only forward passes over data in dataset order,
// one example per batch, and returns one label sequence per example.
func Predict(ctx context.Context, m model.Model, data dataset.Dataset, padID int) ([][]int, error) {
	m.Eval()
	defer m.Train()

	batches, errCh := dataset.Batches(ctx, data, dataset.LoaderOptions{
		BatchSize: 1,
		Workers:   1,
		PadID:     padID,
	})

	out := make([][]int, 0, len(data))
	for batch := range batches {
		out = append(out, m.Predict(batch)...)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

// splitStream regroups flattened per-position predictions and gold labels
// into per-example sequences. A padding-sentinel gold label marks the end of
// an example; stride is the padded length, so full-length examples that
// carry no sentinel still split at their row boundary.
func splitStream(predicted, gold []int, stride int) (preds, golds [][]int) {
	var tmpPred, tmpGold []int
	flush := func() {
		if len(tmpGold) > 0 {
			preds = append(preds, tmpPred)
			golds = append(golds, tmpGold)
			tmpPred, tmpGold = nil, nil
		}
	}
	for i := range gold {
		if stride > 0 && i%stride == 0 {
			flush()
		}
		if gold[i] == dataset.LabelPadding {
			flush()
			continue
		}
		tmpPred = append(tmpPred, predicted[i])
		tmpGold = append(tmpGold, gold[i])
	}
	flush()
	return preds, golds
}
