package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Model:         "encoder",
		Dataset:       "movies",
		Sequence:      "tokens",
		DataRoot:      "data",
		Embedding:     "vectors.txt",
		LR:            0.01,
		EmbeddingNorm: 10,
		TokenDrop:     0.001,
		Batch:         80,
		Epochs:        30,
		HiddenSize:    200,
		Workers:       4,
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown model", func(c *Config) { c.Model = "lstm" }},
		{"unknown dataset", func(c *Config) { c.Dataset = "news" }},
		{"unknown sequence", func(c *Config) { c.Sequence = "chars" }},
		{"missing embedding", func(c *Config) { c.Embedding = "" }},
		{"zero lr", func(c *Config) { c.LR = 0 }},
		{"negative lr", func(c *Config) { c.LR = -0.1 }},
		{"zero batch", func(c *Config) { c.Batch = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero hidden", func(c *Config) { c.HiddenSize = 0 }},
		{"negative drop", func(c *Config) { c.Drop = -0.5 }},
		{"negative decay", func(c *Config) { c.Decay = -1 }},
		{"negative norm", func(c *Config) { c.EmbeddingNorm = -1 }},
		{"token drop at one", func(c *Config) { c.TokenDrop = 1.0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"odd bidirectional hidden", func(c *Config) { c.Bidirectional = true; c.HiddenSize = 201 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateEvenBidirectional(t *testing.T) {
	cfg := validConfig()
	cfg.Bidirectional = true
	require.NoError(t, cfg.Validate())
}

func TestLoadFromViper(t *testing.T) {
	v := viper.New()
	base := validConfig()
	v.Set("model", base.Model)
	v.Set("dataset", base.Dataset)
	v.Set("sequence", base.Sequence)
	v.Set("data_root", base.DataRoot)
	v.Set("embedding", base.Embedding)
	v.Set("lr", base.LR)
	v.Set("embedding_norm", base.EmbeddingNorm)
	v.Set("token_drop", base.TokenDrop)
	v.Set("batch", base.Batch)
	v.Set("epochs", base.Epochs)
	v.Set("hidden_size", base.HiddenSize)
	v.Set("workers", base.Workers)
	v.Set("bidirectional", true)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "encoder", cfg.Model)
	assert.Equal(t, 200, cfg.HiddenSize)
	assert.True(t, cfg.Bidirectional)
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("model", "nonsense")
	_, err := Load(v)
	require.Error(t, err)
}
