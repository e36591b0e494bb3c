package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tagforge/internal/config"
	"tagforge/internal/dataset"
	"tagforge/internal/model"
	"tagforge/internal/trainer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "tagforge",
		Short:         "Train and evaluate sequence-labeling recurrent models",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "optional YAML config file")
	cmd.Flags().String("model", "encoder", "model architecture (encoder, gru, rnn)")
	cmd.Flags().String("dataset", "", "dataset name (movies, atis, vui)")
	cmd.Flags().String("sequence", "tokens", "input sequence type")
	cmd.Flags().String("data-root", "data", "root directory of dataset splits")
	cmd.Flags().String("embedding", "", "path to pretrained word embeddings")
	cmd.Flags().String("char-embedding", "", "path to character embeddings (gru/rnn models)")
	cmd.Flags().Float64("lr", 0.01, "learning rate")
	cmd.Flags().Float64("drop", 0.0, "dropout rate")
	cmd.Flags().Float64("decay", 0.0, "L2 weight decay")
	cmd.Flags().Float64("embedding-norm", 10.0, "max norm of trained embeddings")
	cmd.Flags().Float64("token-drop", 0.001, "train-time unknown-token replacement rate")
	cmd.Flags().Int("batch", 80, "batch size")
	cmd.Flags().Int("epochs", 30, "training epochs")
	cmd.Flags().Int("hidden-size", 200, "recurrent hidden size")
	cmd.Flags().Int("workers", dataset.DefaultWorkers, "batch collation workers")
	cmd.Flags().Int64("seed", 1337, "PRNG seed")
	cmd.Flags().Bool("bidirectional", false, "use a bidirectional encoder")
	cmd.Flags().Bool("unfreeze", false, "train the pretrained word embeddings")
	cmd.Flags().Bool("dev", false, "train on the train split, evaluate on dev each epoch")
	cmd.Flags().String("save", "", "path to save the trained model checkpoint")
	cmd.Flags().String("write", "", "path to write test predictions (test mode)")
	cmd.Flags().String("score-script", "", "path to the conlleval script")

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			panic(err)
		}
	})
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting run",
		zap.String("model", cfg.Model),
		zap.String("dataset", cfg.Dataset),
		zap.Float64("lr", cfg.LR),
		zap.Int("batch", cfg.Batch),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("hidden_size", cfg.HiddenSize),
		zap.Bool("bidirectional", cfg.Bidirectional),
		zap.Bool("dev", cfg.Dev),
	)

	vocab, wordWeights, err := dataset.LoadEmbeddings(cfg.Embedding)
	if err != nil {
		return err
	}
	var charVocab *dataset.Vocab
	spec := model.Spec{
		Name:          cfg.Model,
		WordWeights:   wordWeights,
		HiddenSize:    cfg.HiddenSize,
		DropRate:      cfg.Drop,
		Bidirectional: cfg.Bidirectional,
		Freeze:        !cfg.Unfreeze,
		MaxNorm:       cfg.EmbeddingNorm,
		Seed:          cfg.Seed,
	}
	if cfg.CharEmbedding != "" && cfg.Model != "encoder" {
		cv, cw, err := dataset.LoadEmbeddings(cfg.CharEmbedding)
		if err != nil {
			return err
		}
		charVocab = cv
		spec.CharWeights = cw
	}

	splits := dataset.SplitPaths(cfg.DataRoot, cfg.Dataset)
	trainRaw, err := dataset.ReadCorpus(splits.Train)
	if err != nil {
		return err
	}
	devRaw, err := dataset.ReadCorpus(splits.Dev)
	if err != nil {
		return err
	}

	var reporter trainer.Reporter
	if cfg.ScoreScript != "" {
		reporter = trainer.ConllEval{Script: cfg.ScoreScript}
	}

	runCfg := trainer.RunConfig{
		Epochs:      cfg.Epochs,
		BatchSize:   cfg.Batch,
		Workers:     cfg.Workers,
		LR:          cfg.LR,
		WeightDecay: cfg.Decay,
		Seed:        cfg.Seed,
		TokenDrop:   cfg.TokenDrop,
		PadID:       vocab.PaddingID(),
		UnknownID:   vocab.UnknownID(),
	}

	if cfg.Dev {
		tags := dataset.BuildTagVocab(trainRaw, devRaw)
		spec.TagsetSize = tags.Size()
		mdl, err := model.New(spec)
		if err != nil {
			return err
		}
		trainData, err := dataset.Index(trainRaw, vocab, tags, charVocab)
		if err != nil {
			return err
		}
		devData, err := dataset.Index(devRaw, vocab, tags, charVocab)
		if err != nil {
			return err
		}
		return trainer.New(runCfg, mdl, tags, reporter, logger).Run(ctx, trainData, devData)
	}

	// Test mode: train on train+dev, then predict on the held-out test set.
	testRaw, err := dataset.ReadCorpus(splits.Test)
	if err != nil {
		return err
	}
	tags := dataset.BuildTagVocab(trainRaw, devRaw, testRaw)
	spec.TagsetSize = tags.Size()
	mdl, err := model.New(spec)
	if err != nil {
		return err
	}

	trainData, err := dataset.Index(append(append([]dataset.RawExample{}, trainRaw...), devRaw...), vocab, tags, charVocab)
	if err != nil {
		return err
	}
	testData, err := dataset.Index(testRaw, vocab, tags, charVocab)
	if err != nil {
		return err
	}

	if err := trainer.New(runCfg, mdl, tags, reporter, logger).Run(ctx, trainData, nil); err != nil {
		return err
	}

	logger.Info("predicting on test set", zap.Int("examples", len(testData)))
	predictions, err := trainer.Predict(ctx, mdl, testData, vocab.PaddingID())
	if err != nil {
		return err
	}

	if cfg.Write != "" {
		tokens := make([][]string, len(testData))
		gold := make([][]int, len(testData))
		for i, ex := range testData {
			tokens[i] = ex.Tokens
			gold[i] = ex.LabelIDs
		}
		if err := trainer.WritePredictionFile(cfg.Write, tokens, gold, predictions, tags); err != nil {
			return err
		}
		logger.Info("wrote predictions", zap.String("path", cfg.Write))
	}

	if cfg.Save != "" {
		if err := model.Save(cfg.Save, mdl); err != nil {
			return err
		}
		logger.Info("saved checkpoint", zap.String("path", cfg.Save))
	}
	return nil
}
