// Package architecture defines the trip prediction networks
package architecture

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/layer/activation"
	"github.com/neurlang/tripmodel/layer/batchnorm"
	"github.com/neurlang/tripmodel/layer/dense"
	"github.com/neurlang/tripmodel/layer/dropout"
	"github.com/neurlang/tripmodel/net/feedforward"
)

// ErrUnknownArchitecture is returned for a tag that names no architecture.
var ErrUnknownArchitecture = errors.New("architecture: unknown architecture")

// Tag names an architecture variant.
type Tag string

const (
	// Basic is the small regularized network trained on naive data.
	Basic Tag = "basic"
	// Improved is the wider batch normalized network trained on realistic data.
	Improved Tag = "improved"
	// Minimal is a single sigmoid layer used by the fallback export.
	Minimal Tag = "minimal"
)

// Tags lists every known architecture.
func Tags() []Tag {
	return []Tag{Basic, Improved, Minimal}
}

// ParseTag resolves a case-insensitive architecture name.
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tags() {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownArchitecture, "%q", s)
}

type builder struct {
	net  feedforward.FeedforwardNetwork
	rnd  *rand.Rand
	seed int64
	size int
}

func (b *builder) dense(out int, act activation.Func) *builder {
	b.net.MustNewLayer(dense.MustNew(b.size, out, act, b.rnd))
	b.size = out
	return b
}

func (b *builder) dropout(rate float64) *builder {
	b.seed++
	b.net.MustNewLayer(dropout.MustNew(b.size, rate, b.seed))
	return b
}

func (b *builder) batchnorm() *builder {
	b.net.MustNewLayer(batchnorm.MustNew(b.size))
	return b
}

// New builds a freshly initialized network for tag. Input width is
// trips.NumFeatures, output width is trips.NumLabels with a sigmoid head.
func New(tag Tag, seed int64) (*feedforward.FeedforwardNetwork, error) {
	b := &builder{
		rnd:  rand.New(rand.NewSource(seed)),
		seed: seed,
		size: trips.NumFeatures,
	}
	switch tag {
	case Basic:
		b.dense(64, activation.ReLU).dropout(0.3).
			dense(32, activation.ReLU).dropout(0.2).
			dense(16, activation.ReLU)
	case Improved:
		b.dense(128, activation.ReLU).batchnorm().dropout(0.4).
			dense(64, activation.ReLU).batchnorm().dropout(0.3).
			dense(32, activation.ReLU).dropout(0.2).
			dense(16, activation.ReLU)
	case Minimal:
	default:
		return nil, errors.Wrapf(ErrUnknownArchitecture, "%q", string(tag))
	}
	b.dense(trips.NumLabels, activation.Sigmoid)
	return &b.net, nil
}

// MustNew is New that panics on an unknown tag.
func MustNew(tag Tag, seed int64) *feedforward.FeedforwardNetwork {
	net, err := New(tag, seed)
	if err != nil {
		panic(err.Error())
	}
	return net
}
