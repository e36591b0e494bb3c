package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tagforge/internal/dataset"
	"tagforge/internal/metrics"
	"tagforge/internal/model"
	"tagforge/internal/optim"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Epochs      int
	BatchSize   int
	Workers     int
	LR          float64
	WeightDecay float64
	Seed        int64
	TokenDrop   float64

	PadID     int
	UnknownID int

	// PredictionPath and TrainPredictionPath are where dev and train
	// predictions are written before the reporter scores them; the files
	// are removed afterwards.
	PredictionPath      string
	TrainPredictionPath string
}

// Trainer drives epochs over a model: forward, masked loss, backward,
// optimizer step, plateau scheduling, and per-epoch evaluation.
type Trainer struct {
	cfg      RunConfig
	model    model.Model
	opt      *optim.Adam
	sched    *optim.Plateau
	reporter Reporter
	logger   *zap.Logger
	tags     *dataset.TagVocab
}

// New wires a trainer around the model. reporter may be nil to skip external
// scoring.
func New(cfg RunConfig, m model.Model, tags *dataset.TagVocab, reporter Reporter, logger *zap.Logger) *Trainer {
	if cfg.PredictionPath == "" {
		cfg.PredictionPath = "dev_pred.txt"
	}
	if cfg.TrainPredictionPath == "" {
		cfg.TrainPredictionPath = "train_pred.txt"
	}
	opt := optim.NewAdam(m.Params(), cfg.LR, cfg.WeightDecay)
	return &Trainer{
		cfg:      cfg,
		model:    m,
		opt:      opt,
		sched:    optim.NewPlateau(opt, 0.1, 2),
		reporter: reporter,
		logger:   logger,
		tags:     tags,
	}
}

// Run trains for the configured number of epochs. When dev is non-empty the
// model is evaluated on it after every epoch. Termination is the fixed epoch
// count; the only adaptation is learning-rate decay.
func (t *Trainer) Run(ctx context.Context, train, dev dataset.Dataset) error {
	start := time.Now()
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		res, err := t.trainEpoch(ctx, train, epoch)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		reduced := t.sched.Step(res.snap.MeanLoss)
		fields := []zap.Field{
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", res.snap.MeanLoss),
			zap.Float64("train_accuracy", accuracy(res.correct, res.total)),
			zap.Float64("tokens_per_sec", res.snap.TokensPerSec),
			zap.Float64("data_ms", res.snap.AvgDataMS),
			zap.Float64("compute_ms", res.snap.AvgComputeMS),
			zap.Float64("lr", t.opt.LR()),
		}
		if reduced {
			fields = append(fields, zap.Bool("lr_reduced", true))
		}
		t.logger.Info("epoch complete", fields...)

		if t.reporter != nil {
			if err := t.reportTrain(res.golds, res.preds); err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
		}

		if len(dev) > 0 {
			if err := t.evaluate(ctx, dev); err != nil {
				return fmt.Errorf("epoch %d: evaluate: %w", epoch, err)
			}
		}
	}
	t.logger.Info("training finished", zap.Duration("total", time.Since(start)))
	return nil
}

// epochResult bundles one training epoch's metrics with its regrouped
// predictions for the optional train-side scorer.
type epochResult struct {
	snap    metrics.Snapshot
	correct int
	total   int
	preds   [][]int
	golds   [][]int
}

func (t *Trainer) trainEpoch(ctx context.Context, train dataset.Dataset, epoch int) (epochResult, error) {
	batches, errCh := dataset.Batches(ctx, train, dataset.LoaderOptions{
		BatchSize: t.cfg.BatchSize,
		Workers:   t.cfg.Workers,
		Seed:      t.cfg.Seed,
		Epoch:     epoch,
		Shuffle:   true,
		PadID:     t.cfg.PadID,
		TokenDrop: t.cfg.TokenDrop,
		UnknownID: t.cfg.UnknownID,
	})

	var window metrics.Window
	var out epochResult

	waitStart := time.Now()
	for batch := range batches {
		dataTime := time.Since(waitStart)

		computeStart := time.Now()
		t.opt.ZeroGrad()
		res, err := t.model.ComputeLoss(batch)
		if err != nil {
			return epochResult{}, err
		}
		res.Loss.Backward()
		t.opt.Step()
		computeTime := time.Since(computeStart)

		tokens := 0
		for _, l := range batch.Lengths {
			tokens += l
		}
		window.Record(tokens, dataTime, computeTime, res.Loss.Value.At(0, 0))

		for i, g := range res.Gold {
			if g == dataset.LabelPadding {
				continue
			}
			out.total++
			if res.Predicted[i] == g {
				out.correct++
			}
		}
		if t.reporter != nil {
			p, g := splitStream(res.Predicted, res.Gold, batch.MaxLen())
			out.preds = append(out.preds, p...)
			out.golds = append(out.golds, g...)
		}
		waitStart = time.Now()
	}
	if err := <-errCh; err != nil {
		return epochResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return epochResult{}, err
	}
	out.snap = window.Snapshot()
	return out, nil
}

// reportTrain scores the epoch's training predictions. Training batches are
// shuffled and augmented, so the surface tokens are unavailable; the gold
// tag names stand in for the token column, which the scorer ignores.
func (t *Trainer) reportTrain(golds, preds [][]int) error {
	tokens := make([][]string, len(golds))
	for i, g := range golds {
		names := make([]string, len(g))
		for j, id := range g {
			names[j] = t.tags.Name(id)
		}
		tokens[i] = names
	}
	return t.score(t.cfg.TrainPredictionPath, "train stats", tokens, golds, preds)
}

// evaluate runs a full validation pass: loss, predictions written to the
// prediction file, external scoring, cleanup. The model is switched to eval
// mode for the duration.
func (t *Trainer) evaluate(ctx context.Context, dev dataset.Dataset) error {
	t.model.Eval()
	defer t.model.Train()

	batches, errCh := dataset.Batches(ctx, dev, dataset.LoaderOptions{
		BatchSize: t.cfg.BatchSize,
		Workers:   t.cfg.Workers,
		Seed:      t.cfg.Seed,
		PadID:     t.cfg.PadID,
	})

	lossSum := 0.0
	batchCount := 0
	var preds, golds [][]int
	for batch := range batches {
		res, err := t.model.ComputeLoss(batch)
		if err != nil {
			return err
		}
		lossSum += res.Loss.Value.At(0, 0)
		batchCount++

		p, g := splitStream(res.Predicted, res.Gold, batch.MaxLen())
		preds = append(preds, p...)
		golds = append(golds, g...)
	}
	if err := <-errCh; err != nil {
		return err
	}
	if batchCount == 0 {
		return errors.New("trainer: empty dev set")
	}

	t.logger.Info("dev pass", zap.Float64("dev_loss", lossSum/float64(batchCount)))

	if t.reporter == nil {
		return nil
	}

	// The dev loader is unshuffled, so the regrouped sequences line up with
	// the dev examples and real tokens can be written.
	tokens := make([][]string, len(dev))
	for i, ex := range dev {
		tokens[i] = ex.Tokens
	}
	return t.score(t.cfg.PredictionPath, "dev stats", tokens, golds, preds)
}

// score writes a prediction file, hands it to the reporter, and removes it.
// Scoring is best-effort: a missing or failing script does not stop the run.
func (t *Trainer) score(path, label string, tokens [][]string, golds, preds [][]int) error {
	if err := WritePredictionFile(path, tokens, golds, preds, t.tags); err != nil {
		return err
	}
	defer os.Remove(path)

	summary, err := t.reporter.Report(path)
	if err != nil {
		t.logger.Warn("scoring failed", zap.Error(err))
		return nil
	}
	t.logger.Info(label, zap.String("conlleval", summary))
	return nil
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
