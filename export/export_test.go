package export

import (
	"math/rand"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neurlang/tripmodel/architecture"
	"github.com/neurlang/tripmodel/convert"
	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/inference"
	"github.com/neurlang/tripmodel/layer/activation"
	"github.com/neurlang/tripmodel/layer/dense"
	"github.com/neurlang/tripmodel/learning"
	"github.com/neurlang/tripmodel/net/feedforward"
	"github.com/neurlang/tripmodel/trainer"
	"github.com/neurlang/tripmodel/verify"
)

const path = "out/trip_prediction_model.tpm"

// geluModel uses an operator outside the baseline set.
func geluModel() *feedforward.FeedforwardNetwork {
	rnd := rand.New(rand.NewSource(1))
	var net feedforward.FeedforwardNetwork
	net.MustNewLayer(dense.MustNew(trips.NumFeatures, 16, activation.GELU, rnd))
	net.MustNewLayer(dense.MustNew(16, trips.NumLabels, activation.Sigmoid, rnd))
	return &net
}

func exporter(fs afero.Fs) (*Exporter, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	e := New(fs, zap.New(core))
	e.Verifier = verify.New([]int{1, trips.NumFeatures}, []int{1, trips.NumLabels})
	return e, logs
}

func assertNoFile(t *testing.T, fs afero.Fs, name string) {
	ok, err := afero.Exists(fs, name)
	require.NoError(t, err)
	assert.False(t, ok, name)
}

func TestPrimary(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, _ := exporter(fs)
	res, err := e.Export(DefaultTiers(architecture.MustNew(architecture.Basic, 1), FallbackOptions{Seed: 1}), path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Tier)
	assert.Equal(t, "primary", res.Artifact.Tier)
	assert.Len(t, res.Attempts, 1)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, res.Artifact.Data, data)
	assertNoFile(t, fs, path+".tmp")
}

func TestFallbackOnUnsupportedOp(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, logs := exporter(fs)
	res, err := e.Export(DefaultTiers(geluModel(), FallbackOptions{Seed: 2}), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, "fallback", res.Artifact.Tier)
	require.Len(t, res.Attempts, 2)
	assert.True(t, errors.Is(res.Attempts[0].Err, convert.ErrConversion))
	assert.NoError(t, res.Attempts[1].Err)
	assert.Equal(t, 1, logs.FilterMessage("export tier failed").Len())

	r := verify.New([]int{1, 10}, []int{1, 4}).VerifyFile(fs, path, 3)
	require.NoError(t, r.Err)
	for _, x := range r.Output {
		assert.True(t, x >= 0 && x <= 1)
	}
}

type failingCompiler struct{ calls int }

func (f *failingCompiler) Compile(convert.Model, convert.Config) ([]byte, error) {
	f.calls++
	return nil, &convert.ConversionError{Layer: -1, Reason: "unsupported target"}
}

func TestFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, logs := exporter(fs)
	c := &failingCompiler{}
	e.Compiler = c
	_, err := e.Export(DefaultTiers(architecture.MustNew(architecture.Minimal, 1), FallbackOptions{Seed: 1}), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFatal))
	assert.True(t, errors.Is(err, convert.ErrConversion))
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Len(t, fatal.Attempts, 2)
	assert.Equal(t, 2, c.calls)
	assert.Equal(t, 1, logs.FilterMessage("export failed").Len())

	assertNoFile(t, fs, path)
	assertNoFile(t, fs, path+".tmp")
}

func TestFatalWithoutTiers(t *testing.T) {
	e, _ := exporter(afero.NewMemMapFs())
	_, err := e.Export(nil, path)
	assert.True(t, errors.Is(err, ErrFatal))
}

func TestVerificationFailureFallsThrough(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, _ := exporter(fs)
	calls := 0
	e.Verifier.Loader = inference.LoaderFunc(func(buf []byte) (inference.Runtime, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("interpreter refused model")
		}
		return inference.New(buf)
	})
	res, err := e.Export(DefaultTiers(architecture.MustNew(architecture.Minimal, 1), FallbackOptions{Seed: 1}), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.True(t, errors.Is(res.Attempts[0].Err, ErrVerification))
}

func TestBuildFailureFallsThrough(t *testing.T) {
	e, _ := exporter(afero.NewMemMapFs())
	broken := Tier{Name: "broken", Build: func() (convert.Model, error) {
		return nil, architecture.ErrUnknownArchitecture
	}}
	res, err := e.Export([]Tier{broken, {Name: "empty"}, FallbackTier(FallbackOptions{})}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tier)
	assert.True(t, errors.Is(res.Attempts[0].Err, architecture.ErrUnknownArchitecture))
	assert.Error(t, res.Attempts[1].Err)
}

func TestQuantizedTier(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, _ := exporter(fs)
	net := architecture.MustNew(architecture.Basic, 4)
	float, err := e.Export([]Tier{PrimaryTier(net)}, "float.tpm")
	require.NoError(t, err)
	quant, err := e.Export([]Tier{QuantizedTier(net)}, "quant.tpm")
	require.NoError(t, err)
	assert.Less(t, len(quant.Artifact.Data), len(float.Artifact.Data))
}

// brokenWriteFs creates files whose writes fail.
type brokenWriteFs struct{ afero.Fs }

func (fs brokenWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return brokenWriteFile{f}, nil
}

type brokenWriteFile struct{ afero.File }

func (brokenWriteFile) Write([]byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestWriteFailureRemovesTemp(t *testing.T) {
	mem := afero.NewMemMapFs()
	e, _ := exporter(brokenWriteFs{mem})
	_, err := e.Export([]Tier{PrimaryTier(architecture.MustNew(architecture.Minimal, 1))}, path)
	require.Error(t, err)
	assertNoFile(t, mem, path+".tmp")
	assertNoFile(t, mem, path)
}

func TestDefaultVerifierChecksShapes(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, nil)
	e.Compiler = &convert.Converter{Producer: "test", Input: 3, Output: 2}
	narrow := Tier{
		Name: "narrow",
		Build: func() (convert.Model, error) {
			var net feedforward.FeedforwardNetwork
			net.MustNewLayer(dense.MustNew(3, 2, activation.Sigmoid, rand.New(rand.NewSource(1))))
			return &net, nil
		},
		Config: convert.BaselineConfig(),
	}
	_, err := e.Export([]Tier{narrow}, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFatal))
	assert.True(t, errors.Is(err, ErrVerification))
	assert.Contains(t, err.Error(), "unexpected tensor shape")
	assertNoFile(t, fs, path)
}

func TestFallbackOptions(t *testing.T) {
	o := FallbackOptions{}.withDefaults()
	assert.Equal(t, DefaultFallbackSamples, o.Samples)
	assert.Equal(t, 1, o.Epochs)
}

// Naive samples, minimal model, one epoch, export and verify.
func TestEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	net := architecture.MustNew(architecture.Minimal, 5)
	_, err := trainer.Fit(net, trips.NaiveDataset(100, 5), learning.FallbackHyperParameters(5))
	require.NoError(t, err)

	e, _ := exporter(fs)
	_, err = e.Export([]Tier{PrimaryTier(net)}, path)
	require.NoError(t, err)

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	r := verify.New(nil, nil).VerifyFile(fs, path, 42)
	require.True(t, r.OK, "%v", r.Err)
	assert.Equal(t, []int{1, 10}, r.InputShape)
	assert.Equal(t, []int{1, 4}, r.OutputShape)
	require.Len(t, r.Output, 4)
	for _, x := range r.Output {
		assert.True(t, x >= 0 && x <= 1)
	}
}
