package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/tripmodel/convert"
	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/export"
	"github.com/neurlang/tripmodel/inference"
	"github.com/neurlang/tripmodel/scaler"
	"github.com/neurlang/tripmodel/trainer"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.OutputDir = "build"
	cfg.BasicSamples = 60
	cfg.Samples = 120
	cfg.FallbackSamples = 20
	cfg.Basic.Epochs = 2
	cfg.Improved.Epochs = 2
	return cfg
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := smallConfig()
	report, err := New(cfg, fs, nil).Run()
	require.NoError(t, err)
	require.Len(t, report.Stages, 2)
	assert.Equal(t, "basic", report.Stages[0].Name)
	assert.Equal(t, "improved", report.Stages[1].Name)

	for _, name := range []string{
		"build/trip_prediction_model.tpm",
		"build/scaler_params.json",
		"build/app/src/main/assets/trip_prediction_model_basic.tpm",
		"build/app/src/main/assets/scaler_params_basic.json",
	} {
		ok, err := afero.Exists(fs, name)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
	for _, s := range report.Stages {
		assert.Equal(t, "primary", s.Tier)
		assert.True(t, s.Verification.OK)
		assert.Equal(t, []int{1, 4}, s.Verification.OutputShape)
		assert.NotZero(t, s.Bytes)
		assert.Len(t, s.Training.History, 2)
	}

	p, err := scaler.Load(fs, cfg.ScalerPath())
	require.NoError(t, err)
	assert.Equal(t, 10, p.Len())

	out := report.String()
	assert.Contains(t, out, "app/src/main/assets")
	assert.Contains(t, out, "improved model (improved)")
}

func TestRunSkipBasicQuantized(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := smallConfig()
	cfg.SkipBasic = true
	cfg.Quantize = true
	report, err := New(cfg, fs, nil).Run()
	require.NoError(t, err)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, "quantized", report.Stages[0].Tier)

	ok, err := afero.Exists(fs, cfg.BasicModelPath())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunCheckpoint(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := smallConfig()
	cfg.SkipBasic = true
	cfg.Checkpoint = "build/improved.json.lzw"
	_, err := New(cfg, fs, nil).Run()
	require.NoError(t, err)
	ok, err := afero.Exists(fs, cfg.Checkpoint)
	require.NoError(t, err)
	assert.True(t, ok)

	cfg.Resume = true
	_, err = New(cfg, fs, nil).Run()
	require.NoError(t, err)

	cfg.Checkpoint = "build/missing.json.lzw"
	_, err = New(cfg, fs, nil).Run()
	assert.Error(t, err)
}

func TestRunEmpty(t *testing.T) {
	cfg := smallConfig()
	cfg.BasicSamples = 0
	_, err := New(cfg, afero.NewMemMapFs(), nil).Run()
	assert.True(t, errors.Is(err, trainer.ErrEmptyDataset))
}

type rejectingCompiler struct{}

func (rejectingCompiler) Compile(convert.Model, convert.Config) ([]byte, error) {
	return nil, &convert.ConversionError{Layer: -1, Reason: "target unavailable"}
}

func TestRunFatalExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := smallConfig()
	cfg.SkipBasic = true
	p := New(cfg, fs, nil)
	p.Exporter.Compiler = rejectingCompiler{}
	report, err := p.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, export.ErrFatal))
	assert.True(t, errors.Is(err, convert.ErrConversion))
	assert.Empty(t, report.Stages)

	ok, err := afero.Exists(fs, cfg.ModelPath())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunVerificationFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := smallConfig()
	cfg.SkipBasic = true
	p := New(cfg, fs, nil)
	p.Verifier.Loader = inference.LoaderFunc(func([]byte) (inference.Runtime, error) {
		return nil, errors.New("interpreter unavailable on device")
	})
	_, err := p.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerification))
	assert.False(t, errors.Is(err, export.ErrFatal))

	data, err := afero.ReadFile(fs, cfg.ModelPath())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "run.yaml", []byte(`
output_dir: out
samples: 500
improved:
  epochs: 7
labels:
  recent_days: 14
`), 0644))
	cfg, err := LoadConfig(fs, "run.yaml")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 500, cfg.Samples)
	assert.Equal(t, 1000, cfg.BasicSamples)
	assert.Equal(t, 7, cfg.Improved.Epochs)
	assert.Equal(t, 64, cfg.Improved.BatchSize)
	require.NotNil(t, cfg.Improved.EarlyStopping)
	assert.Equal(t, 14.0, cfg.Labels.RecentDays)
	assert.Equal(t, 6.0, cfg.Labels.SeasonalHigh.Alpha)
	assert.Equal(t, "out/trip_prediction_model.tpm", cfg.ModelPath())

	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("sampels: 3\n"), 0644))
	_, err = LoadConfig(fs, "bad.yaml")
	assert.Error(t, err)

	_, err = LoadConfig(fs, "missing.yaml")
	assert.Error(t, err)
}

func TestLoadConfigRejectsLabelRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "run.yaml", []byte(`
labels:
  short_term_recent: {alpha: 0, beta: 0}
`), 0644))
	_, err := LoadConfig(fs, "run.yaml")
	assert.True(t, errors.Is(err, trips.ErrPolicy))
	assert.Contains(t, err.Error(), "short_term_recent")
}
