package main

import (
	"fmt"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/neurlang/tripmodel/pipeline"
)

func main() {
	args := struct {
		Config     string `arg:"--config" help:"YAML run configuration"`
		Out        string `arg:"--out" help:"output directory"`
		Seed       int64  `arg:"--seed" help:"generation and training seed, 0 keeps the configured one"`
		SkipBasic  bool   `arg:"--skip-basic" help:"only train the improved model"`
		Quantize   bool   `arg:"--quantize" help:"try an int8 weight export before the float one"`
		Checkpoint string `arg:"--checkpoint" help:"improved model weights destination .json.lzw file"`
		Resume     bool   `arg:"--resume" help:"resume training from the checkpoint"`
		Debug      bool   `arg:"--debug" help:"log every epoch"`
	}{}
	arg.MustParse(&args)

	logger := pipeline.NewProductionLogger(args.Debug)
	defer logger.Sync()

	fs := afero.NewOsFs()
	cfg := pipeline.DefaultConfig()
	if args.Config != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(fs, args.Config); err != nil {
			logger.Fatal("loading config", zap.Error(err))
		}
	}
	if args.Out != "" {
		cfg.OutputDir = args.Out
	}
	if args.Seed != 0 {
		cfg.Seed = args.Seed
		cfg.Basic.Seed = args.Seed
		cfg.Improved.Seed = args.Seed
	}
	if args.Checkpoint != "" {
		cfg.Checkpoint = args.Checkpoint
	}
	cfg.SkipBasic = cfg.SkipBasic || args.SkipBasic
	cfg.Quantize = cfg.Quantize || args.Quantize
	cfg.Resume = cfg.Resume || args.Resume

	report, err := pipeline.New(cfg, fs, logger).Run()
	if err != nil {
		logger.Error("trip model generation failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	fmt.Print(report)
}
