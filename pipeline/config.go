package pipeline

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/export"
	"github.com/neurlang/tripmodel/learning"
)

// Default artifact names.
const (
	ModelFile       = "trip_prediction_model.tpm"
	BasicModelFile  = "trip_prediction_model_basic.tpm"
	ScalerFile      = "scaler_params.json"
	BasicScalerFile = "scaler_params_basic.json"
	AssetDir        = "app/src/main/assets"
)

// Config drives a full generation run.
type Config struct {
	OutputDir       string `yaml:"output_dir"`
	AssetDir        string `yaml:"asset_dir"`
	ModelFile       string `yaml:"model_file"`
	BasicModelFile  string `yaml:"basic_model_file"`
	ScalerFile      string `yaml:"scaler_file"`
	BasicScalerFile string `yaml:"basic_scaler_file"`

	Seed            int64 `yaml:"seed"`
	VerifySeed      int64 `yaml:"verify_seed"`
	BasicSamples    int   `yaml:"basic_samples"`
	Samples         int   `yaml:"samples"`
	FallbackSamples int   `yaml:"fallback_samples"`

	SkipBasic  bool   `yaml:"skip_basic"`
	Quantize   bool   `yaml:"quantize"`
	Checkpoint string `yaml:"checkpoint"`
	Resume     bool   `yaml:"resume"`

	Basic    learning.HyperParameters `yaml:"basic"`
	Improved learning.HyperParameters `yaml:"improved"`
	Labels   trips.HeuristicPolicy    `yaml:"labels"`
}

// DefaultConfig reproduces the stock run: 1000 naive samples for the basic
// model, 2000 realistic samples for the improved one.
func DefaultConfig() Config {
	return Config{
		OutputDir:       ".",
		AssetDir:        AssetDir,
		ModelFile:       ModelFile,
		BasicModelFile:  BasicModelFile,
		ScalerFile:      ScalerFile,
		BasicScalerFile: BasicScalerFile,
		Seed:            42,
		VerifySeed:      42,
		BasicSamples:    1000,
		Samples:         2000,
		FallbackSamples: export.DefaultFallbackSamples,
		Basic:           learning.BasicHyperParameters(),
		Improved:        learning.ImprovedHyperParameters(),
		Labels:          trips.DefaultHeuristicPolicy(),
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Wrapf(err, "pipeline: read config %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "pipeline: parse config %s", path)
	}
	if err := cfg.Labels.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "pipeline: config %s", path)
	}
	return cfg, nil
}

// ModelPath is where the improved model is written.
func (c Config) ModelPath() string {
	return filepath.Join(c.OutputDir, c.ModelFile)
}

// BasicModelPath is where the basic model is written, inside the asset directory.
func (c Config) BasicModelPath() string {
	return filepath.Join(c.OutputDir, c.AssetDir, c.BasicModelFile)
}

func (c Config) ScalerPath() string {
	return filepath.Join(c.OutputDir, c.ScalerFile)
}

func (c Config) BasicScalerPath() string {
	return filepath.Join(c.OutputDir, c.AssetDir, c.BasicScalerFile)
}
