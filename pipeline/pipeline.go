// Package pipeline generates, trains, exports and verifies the trip models
package pipeline

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/neurlang/tripmodel/architecture"
	"github.com/neurlang/tripmodel/datasets"
	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/export"
	"github.com/neurlang/tripmodel/learning"
	"github.com/neurlang/tripmodel/scaler"
	"github.com/neurlang/tripmodel/trainer"
	"github.com/neurlang/tripmodel/verify"
)

// ErrVerification is returned when a written artifact fails its final check.
var ErrVerification = errors.New("pipeline: artifact verification failed")

// Stage reports one trained and exported model.
type Stage struct {
	Name         string
	Architecture architecture.Tag
	Path         string
	ScalerPath   string
	Bytes        int
	Tier         string
	Attempts     []export.Attempt
	Training     *trainer.Result
	Verification verify.Report
}

// Report is the outcome of Run.
type Report struct {
	Stages   []Stage
	AssetDir string
}

func (r *Report) String() string {
	var b strings.Builder
	for _, s := range r.Stages {
		fmt.Fprintf(&b, "%s model (%s): %s, %s, tier %s\n",
			s.Name, s.Architecture, s.Path, humanize.Bytes(uint64(s.Bytes)), s.Tier)
		if s.Training != nil {
			fmt.Fprintf(&b, "  test loss %.4f, test mae %.4f after %d epochs\n",
				s.Training.TestLoss, s.Training.TestMAE, len(s.Training.History))
		}
		fmt.Fprintf(&b, "  input %v, output %v: %v\n",
			s.Verification.InputShape, s.Verification.OutputShape, s.Verification.Output)
		if s.ScalerPath != "" {
			fmt.Fprintf(&b, "  scaler %s\n", s.ScalerPath)
		}
	}
	fmt.Fprintf(&b, "copy the model into %s of the app\n", r.AssetDir)
	return b.String()
}

// Pipeline runs the generation stages on a filesystem.
type Pipeline struct {
	Config   Config
	Fs       afero.Fs
	Logger   *zap.Logger
	Exporter *export.Exporter
	Verifier *verify.Verifier // final check of the written artifact
}

// New returns a pipeline with the in-process exporter.
func New(cfg Config, fs afero.Fs, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := export.New(fs, logger)
	e.Seed = cfg.VerifySeed
	v := verify.New([]int{1, trips.NumFeatures}, []int{1, trips.NumLabels})
	v.Logger = logger
	return &Pipeline{Config: cfg, Fs: fs, Logger: logger, Exporter: e, Verifier: v}
}

type stagePlan struct {
	name       string
	tag        architecture.Tag
	data       datasets.Dataset
	hyper      learning.HyperParameters
	path       string
	scalerPath string
	checkpoint bool
}

// Run trains and exports the basic model, unless skipped, then the improved
// model. A fatal export or a failed verification stops the run.
func (p *Pipeline) Run() (*Report, error) {
	cfg := p.Config
	report := &Report{AssetDir: cfg.AssetDir}
	if err := cfg.Labels.Validate(); err != nil {
		return report, err
	}

	var plans []stagePlan
	if !cfg.SkipBasic {
		plans = append(plans, stagePlan{
			name:       "basic",
			tag:        architecture.Basic,
			data:       trips.NaiveDataset(cfg.BasicSamples, cfg.Seed),
			hyper:      cfg.Basic,
			path:       cfg.BasicModelPath(),
			scalerPath: cfg.BasicScalerPath(),
		})
	}
	plans = append(plans, stagePlan{
		name:       "improved",
		tag:        architecture.Improved,
		data:       trips.RealisticDataset(cfg.Samples, cfg.Seed, cfg.Labels),
		hyper:      cfg.Improved,
		path:       cfg.ModelPath(),
		scalerPath: cfg.ScalerPath(),
		checkpoint: true,
	})

	for _, plan := range plans {
		stage, err := p.stage(plan)
		if err != nil {
			return report, err
		}
		report.Stages = append(report.Stages, *stage)
	}
	return report, nil
}

func (p *Pipeline) stage(plan stagePlan) (*Stage, error) {
	cfg := p.Config
	log := p.Logger.With(zap.String("stage", plan.name))

	scaled, err := p.scale(plan.data, plan.scalerPath)
	if err != nil {
		return nil, err
	}

	net, err := architecture.New(plan.tag, cfg.Seed)
	if err != nil {
		return nil, err
	}
	if plan.checkpoint {
		if err := trainer.Resume(net, p.Fs, cfg.Resume, cfg.Checkpoint); err != nil {
			return nil, err
		}
	}
	log.Info("training", zap.String("architecture", string(plan.tag)), zap.Int("samples", len(scaled)))
	res, err := trainer.Fit(net, scaled, plan.hyper, trainer.WithLogger(log))
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline: train %s", plan.name)
	}
	log.Info("trained", zap.Float64("test_loss", res.TestLoss), zap.Float64("test_mae", res.TestMAE),
		zap.Int("epochs", len(res.History)))
	if plan.checkpoint {
		if err := trainer.Checkpoint(net, p.Fs, cfg.Checkpoint); err != nil {
			return nil, err
		}
	}

	tiers := export.DefaultTiers(net, export.FallbackOptions{Samples: cfg.FallbackSamples, Seed: cfg.Seed})
	if cfg.Quantize {
		tiers = append([]export.Tier{export.QuantizedTier(net)}, tiers...)
	}
	exported, err := p.Exporter.Export(tiers, plan.path)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline: export %s", plan.name)
	}

	verifier := p.Verifier
	if verifier == nil {
		verifier = verify.New([]int{1, trips.NumFeatures}, []int{1, trips.NumLabels})
	}
	check := verifier.VerifyFile(p.Fs, plan.path, cfg.VerifySeed)
	if !check.OK {
		return nil, errors.Wrapf(ErrVerification, "%s: %v", plan.path, check.Err)
	}
	log.Info("exported", zap.String("path", plan.path), zap.String("tier", exported.Artifact.Tier),
		zap.String("size", humanize.Bytes(uint64(len(exported.Artifact.Data)))))

	return &Stage{
		Name:         plan.name,
		Architecture: plan.tag,
		Path:         plan.path,
		ScalerPath:   plan.scalerPath,
		Bytes:        len(exported.Artifact.Data),
		Tier:         exported.Artifact.Tier,
		Attempts:     exported.Attempts,
		Training:     res,
		Verification: check,
	}, nil
}

// scale standardizes the features of d and persists the scaler parameters.
func (p *Pipeline) scale(d datasets.Dataset, path string) (datasets.Dataset, error) {
	if len(d) == 0 {
		return nil, trainer.ErrEmptyDataset
	}
	x, y := d.Matrices()
	s := scaler.New()
	xs, err := s.FitTransform(x)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: fit scaler")
	}
	if err := s.Params().Save(p.Fs, path); err != nil {
		return nil, err
	}
	return datasets.FromMatrices(xs, y)
}
