package trips

import "github.com/neurlang/tripmodel/datasets"

// Dataset pairs features with labels.
func Dataset(features []Features, labels []Labels) (datasets.Dataset, error) {
	in := make([][]float64, len(features))
	for i := range features {
		in[i] = features[i].Slice()
	}
	out := make([][]float64, len(labels))
	for i := range labels {
		out[i] = labels[i].Slice()
	}
	return datasets.New(in, out)
}

// NaiveDataset generates n naive feature vectors with uniform labels.
func NaiveDataset(n int, seed int64) datasets.Dataset {
	f := Generate(n, Naive, seed)
	d, _ := Dataset(f, Synthesize(f, UniformPolicy{}, seed+1))
	return d
}

// RealisticDataset generates n realistic feature vectors labelled by policy.
// A nil policy uses DefaultHeuristicPolicy.
func RealisticDataset(n int, seed int64, policy LabelPolicy) datasets.Dataset {
	if policy == nil {
		policy = DefaultHeuristicPolicy()
	}
	f := Generate(n, Realistic, seed)
	d, _ := Dataset(f, Synthesize(f, policy, seed+1))
	return d
}
