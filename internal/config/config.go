// Package config loads the rowpipe CLI configuration.
//
// Values are layered, later sources winning: built-in defaults, an optional
// rowpipe.yml, an optional .env file, ROWPIPE_* environment variables and
// finally command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/utkarsh5026/rowpipe/internal/logger"
	"github.com/utkarsh5026/rowpipe/pipeline"
)

// Config is the complete CLI configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Logging  logger.Config  `yaml:"logging" mapstructure:"logging"`
}

// PipelineConfig holds the conversion settings.
type PipelineConfig struct {
	Workers      int           `yaml:"workers" mapstructure:"workers" validate:"gte=0,lte=1024"`
	TaskBuffer   int           `yaml:"task_buffer" mapstructure:"task_buffer" validate:"gte=-1"`
	Ordered      bool          `yaml:"ordered" mapstructure:"ordered"`
	Capture      bool          `yaml:"capture" mapstructure:"capture"`
	CaptureLimit int           `yaml:"capture_limit" mapstructure:"capture_limit" validate:"gte=0"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst    int           `yaml:"rate_burst" mapstructure:"rate_burst" validate:"gte=0"`
	AwaitTimeout time.Duration `yaml:"await_timeout" mapstructure:"await_timeout" validate:"gte=0"`
	Separator    string        `yaml:"separator" mapstructure:"separator" validate:"len=1"`
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Pipeline.Separator == "" {
		c.Pipeline.Separator = ","
	}
	if c.Pipeline.RateLimit > 0 && c.Pipeline.RateBurst == 0 {
		c.Pipeline.RateBurst = 1
	}
	c.Logging.ApplyDefaults()
}

// Validate checks struct constraints and the logging section.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", strings.ToLower(e.Namespace()), e.Tag(), e.Param()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return c.Logging.Validate()
}

// SeparatorRune returns the CSV separator as a rune.
func (p PipelineConfig) SeparatorRune() rune {
	return []rune(p.Separator)[0]
}

// Options translates the configuration into pipeline options.
func (p PipelineConfig) Options() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithOrdered(p.Ordered),
		pipeline.WithThrowOnError(!p.Capture),
		pipeline.WithCaptureLimit(p.CaptureLimit),
		pipeline.WithAwaitTimeout(p.AwaitTimeout),
	}
	if p.Workers > 0 {
		opts = append(opts, pipeline.WithWorkerCount(p.Workers))
	}
	if p.TaskBuffer >= 0 {
		opts = append(opts, pipeline.WithTaskBuffer(p.TaskBuffer))
	}
	if p.RateLimit > 0 {
		opts = append(opts, pipeline.WithRateLimit(p.RateLimit, p.RateBurst))
	}
	return opts
}
