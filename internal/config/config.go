package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config captures the runtime knobs for a training run. It is built once at
// startup, validated, and passed by reference; nothing mutates it afterwards.
type Config struct {
	Model    string `mapstructure:"model"`
	Dataset  string `mapstructure:"dataset"`
	Sequence string `mapstructure:"sequence"`

	DataRoot      string `mapstructure:"data_root"`
	Embedding     string `mapstructure:"embedding"`
	CharEmbedding string `mapstructure:"char_embedding"`

	LR            float64 `mapstructure:"lr"`
	Drop          float64 `mapstructure:"drop"`
	Decay         float64 `mapstructure:"decay"`
	EmbeddingNorm float64 `mapstructure:"embedding_norm"`
	TokenDrop     float64 `mapstructure:"token_drop"`

	Batch      int   `mapstructure:"batch"`
	Epochs     int   `mapstructure:"epochs"`
	HiddenSize int   `mapstructure:"hidden_size"`
	Workers    int   `mapstructure:"workers"`
	Seed       int64 `mapstructure:"seed"`

	Bidirectional bool `mapstructure:"bidirectional"`
	Unfreeze      bool `mapstructure:"unfreeze"`
	Dev           bool `mapstructure:"dev"`

	Save        string `mapstructure:"save"`
	Write       string `mapstructure:"write"`
	ScoreScript string `mapstructure:"score_script"`
}

var (
	supportedModels    = map[string]bool{"encoder": true, "gru": true, "rnn": true}
	supportedDatasets  = map[string]bool{"movies": true, "atis": true, "vui": true}
	supportedSequences = map[string]bool{"tokens": true}
)

// Load unmarshals a validated Config from viper, which has already layered
// defaults, an optional config file, and flag overrides.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on any unusable value, before any model is built.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !supportedModels[c.Model] {
		return fmt.Errorf("unsupported model %q", c.Model)
	}
	if !supportedDatasets[c.Dataset] {
		return fmt.Errorf("unsupported dataset %q", c.Dataset)
	}
	if !supportedSequences[c.Sequence] {
		return fmt.Errorf("unsupported sequence %q", c.Sequence)
	}
	if c.Embedding == "" {
		return errors.New("embedding path must be set")
	}
	if c.LR <= 0 {
		return fmt.Errorf("learning rate must be > 0 (got %g)", c.LR)
	}
	if c.Batch <= 0 {
		return fmt.Errorf("batch size must be > 0 (got %d)", c.Batch)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden size must be > 0 (got %d)", c.HiddenSize)
	}
	if c.Drop < 0 {
		return fmt.Errorf("dropout rate must be >= 0 (got %g)", c.Drop)
	}
	if c.Decay < 0 {
		return fmt.Errorf("decay must be >= 0 (got %g)", c.Decay)
	}
	if c.EmbeddingNorm < 0 {
		return fmt.Errorf("embedding norm must be >= 0 (got %g)", c.EmbeddingNorm)
	}
	if c.TokenDrop < 0 || c.TokenDrop >= 1 {
		return fmt.Errorf("token drop must be in [0, 1) (got %g)", c.TokenDrop)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", c.Workers)
	}
	if c.Bidirectional && c.HiddenSize%2 != 0 {
		return fmt.Errorf("bidirectional models need an even hidden size (got %d)", c.HiddenSize)
	}
	return nil
}
