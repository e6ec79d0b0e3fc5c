package main

import (
	"fmt"
	"log"

	arg "github.com/alexflint/go-arg"
	"github.com/spf13/afero"

	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/inference"
	"github.com/neurlang/tripmodel/scaler"
)

func noErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	args := struct {
		Model    string    `arg:"--model,required" help:"exported .tpm model"`
		Scaler   string    `arg:"--scaler" help:"scaler_params.json, features are used as given without it"`
		Features []float64 `arg:"positional,required" help:"the ten trip history features"`
	}{}
	p := arg.MustParse(&args)
	if len(args.Features) != trips.NumFeatures {
		p.Fail(fmt.Sprintf("need %d features, got %d", trips.NumFeatures, len(args.Features)))
	}

	fs := afero.NewOsFs()
	features := args.Features
	if args.Scaler != "" {
		params, err := scaler.Load(fs, args.Scaler)
		noErr(err)
		features, err = params.Apply(features)
		noErr(err)
	}

	buf, err := afero.ReadFile(fs, args.Model)
	noErr(err)
	rt, err := inference.DefaultLoader.Load(buf)
	noErr(err)

	input := make([]float32, len(features))
	for i, v := range features {
		input[i] = float32(v)
	}
	noErr(rt.SetInput(0, input))
	noErr(rt.Invoke())
	out, err := rt.Output(0)
	noErr(err)

	for i, v := range out {
		name := fmt.Sprint(i)
		if i < len(trips.LabelNames) {
			name = trips.LabelNames[i]
		}
		fmt.Printf("%-12s %.4f\n", name, v)
	}
}
