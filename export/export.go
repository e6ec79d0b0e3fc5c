// Package export writes a verified artifact, falling back through
// progressively simpler export tiers
package export

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/neurlang/tripmodel/convert"
	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/flatmodel"
	"github.com/neurlang/tripmodel/verify"
)

// ErrFatal is matched when every tier failed.
var ErrFatal = errors.New("export: all tiers failed")

// ErrVerification marks a tier whose compiled artifact did not verify.
var ErrVerification = errors.New("export: artifact failed verification")

// FatalError reports an exhausted tier list. Cause is the last tier's failure.
type FatalError struct {
	Attempts []Attempt
	Cause    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("export: all %d tiers failed, last: %v", len(e.Attempts), e.Cause)
}

// Is matches ErrFatal.
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// Unwrap returns the last failure.
func (e *FatalError) Unwrap() error {
	return e.Cause
}

// Attempt records one tier.
type Attempt struct {
	Tier string
	Err  error
}

// Artifact is an exported, verified model.
type Artifact struct {
	Data   []byte
	Tier   string
	Path   string
	Input  flatmodel.TensorSpec
	Output flatmodel.TensorSpec
	Report verify.Report
}

// Result is a successful export.
type Result struct {
	Artifact Artifact
	Tier     int
	Attempts []Attempt
}

// Exporter tries tiers in order and persists the first one that verifies.
type Exporter struct {
	Compiler convert.Compiler
	Verifier *verify.Verifier
	Fs       afero.Fs
	Logger   *zap.Logger
	Seed     int64
}

// New returns an exporter using the in-process converter and interpreter.
func New(fs afero.Fs, logger *zap.Logger) *Exporter {
	return &Exporter{
		Compiler: convert.New(),
		Verifier: newVerifier(),
		Fs:       fs,
		Logger:   logger,
	}
}

// newVerifier expects the trip model input and output shapes.
func newVerifier() *verify.Verifier {
	return verify.New([]int{1, trips.NumFeatures}, []int{1, trips.NumLabels})
}

func (e *Exporter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Export runs tiers in order. The first artifact to compile and verify is
// written to path and returned. Nothing is written unless a tier succeeds.
func (e *Exporter) Export(tiers []Tier, path string) (*Result, error) {
	log := e.logger().With(zap.String("path", path))
	var attempts []Attempt
	var last error = errors.New("export: no tiers")
	for i, tier := range tiers {
		log.Info("export attempt", zap.Int("tier", i), zap.String("name", tier.Name))
		art, err := e.attempt(tier)
		attempts = append(attempts, Attempt{Tier: tier.Name, Err: err})
		if err != nil {
			log.Warn("export tier failed", zap.Int("tier", i), zap.String("name", tier.Name), zap.Error(err))
			last = err
			continue
		}
		if err := e.write(path, art.Data); err != nil {
			return nil, err
		}
		art.Path = path
		log.Info("export succeeded", zap.String("name", tier.Name), zap.Int("bytes", len(art.Data)))
		return &Result{Artifact: *art, Tier: i, Attempts: attempts}, nil
	}
	fatal := &FatalError{Attempts: attempts, Cause: last}
	log.Error("export failed", zap.Error(fatal))
	return nil, fatal
}

func (e *Exporter) attempt(tier Tier) (*Artifact, error) {
	if tier.Build == nil {
		return nil, errors.Errorf("export: tier %q has no model", tier.Name)
	}
	model, err := tier.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "export: build %s", tier.Name)
	}
	compiler := e.Compiler
	if compiler == nil {
		compiler = convert.New()
	}
	buf, err := compiler.Compile(model, tier.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "export: compile %s", tier.Name)
	}
	verifier := e.Verifier
	if verifier == nil {
		verifier = newVerifier()
	}
	report := verifier.Verify(buf, e.Seed)
	if !report.OK {
		return nil, errors.Wrapf(ErrVerification, "%s: %v", tier.Name, report.Err)
	}
	art := &Artifact{Data: buf, Tier: tier.Name, Report: report}
	art.Input = flatmodel.TensorSpec{Shape: report.InputShape, DType: report.InputType}
	art.Output = flatmodel.TensorSpec{Shape: report.OutputShape, DType: report.OutputType}
	return art, nil
}

// write stores data at path through a temporary file so a reader never
// sees a partial artifact.
func (e *Exporter) write(path string, data []byte) error {
	fs := e.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "export: create %s", dir)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, "export: write %s", tmp)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, "export: rename %s", tmp)
	}
	return nil
}
