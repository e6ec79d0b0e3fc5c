package trainer

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/neurlang/tripmodel/datasets"
	"github.com/neurlang/tripmodel/learning"
	"github.com/neurlang/tripmodel/net/feedforward"
)

var (
	// ErrEmptyDataset is returned when there is nothing to train on.
	ErrEmptyDataset = errors.New("trainer: empty dataset")

	// ErrShapeMismatch is returned when the dataset widths differ from the network.
	ErrShapeMismatch = errors.New("trainer: dataset does not match network")
)

// Epoch is the history entry of one training pass.
type Epoch struct {
	Epoch        int
	Loss         float64 // training mean squared error
	MAE          float64 // training mean absolute error
	ValLoss      float64 // held-out mean squared error
	ValMAE       float64 // held-out mean absolute error
	LearningRate float64 // rate of the last step of the epoch
}

// Result summarizes a training run.
type Result struct {
	History      []Epoch
	TestLoss     float64 // held-out mean squared error of the returned parameters
	TestMAE      float64 // held-out mean absolute error of the returned parameters
	StoppedEpoch int     // last epoch run before early stopping, -1 if training ran to completion
	BestEpoch    int     // epoch whose parameters were restored, -1 if none
	Restored     bool    // whether the best parameters replaced the final ones
	TrainSize    int
	TestSize     int
}

type options struct {
	logger *zap.Logger
}

// Option customizes Fit.
type Option func(*options)

// WithLogger logs per-epoch progress at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Fit trains net on data in place. Diverging losses are not treated as
// errors, they show up in the returned metrics.
func Fit(net *feedforward.FeedforwardNetwork, data datasets.Dataset, h learning.HyperParameters, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	h = h.WithDefaults()

	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}
	in, out, err := data.Dims()
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}
	if in != net.InputSize() || out != net.OutputSize() {
		return nil, errors.Wrapf(ErrShapeMismatch, "dataset %dx%d, network %dx%d",
			in, out, net.InputSize(), net.OutputSize())
	}

	train, test := data.Split(h.ValidationSplit, h.Seed)
	rnd := rand.New(rand.NewSource(h.Seed))
	adam := learning.NewAdam(h.LearningRate)
	stopper := newEarlyStopper(h.EarlyStopping)
	reducer := newPlateau(h.ReduceOnPlateau)
	base := h.LearningRate

	res := &Result{StoppedEpoch: -1, BestEpoch: -1, TrainSize: len(train), TestSize: len(test)}
	for epoch := 0; epoch < h.Epochs; epoch++ {
		perm := rnd.Perm(len(train))
		var sumSq, sumAbs float64
		for lo := 0; lo < len(perm); lo += h.BatchSize {
			hi := lo + h.BatchSize
			if hi > len(perm) {
				hi = len(perm)
			}
			x, y := train.Batch(perm[lo:hi])
			predicted := net.Forward(x, true)
			sq, abs := sampleErrors(predicted, y)
			for i := range sq {
				sumSq += sq[i]
				sumAbs += abs[i]
			}
			net.Backward(mseGradient(predicted, y))
			adam.SetLR(reducer.floor(base * h.Decay.Factor(adam.Steps())))
			adam.Update(net.Params())
		}

		e := Epoch{
			Epoch:        epoch,
			Loss:         sumSq / float64(len(train)),
			MAE:          sumAbs / float64(len(train)),
			LearningRate: adam.LR(),
		}
		if len(test) > 0 {
			m := Evaluate(net, test)
			e.ValLoss, e.ValMAE = m.MSE, m.MAE
		} else {
			e.ValLoss, e.ValMAE = e.Loss, e.MAE
		}
		res.History = append(res.History, e)
		o.logger.Debug("epoch",
			zap.Int("epoch", epoch+1),
			zap.Float64("loss", e.Loss),
			zap.Float64("mae", e.MAE),
			zap.Float64("val_loss", e.ValLoss),
			zap.Float64("val_mae", e.ValMAE),
			zap.Float64("lr", e.LearningRate))

		base = reducer.observe(e.ValLoss, base)
		if stopper.observe(net, epoch, e.ValLoss) {
			res.StoppedEpoch = epoch
			o.logger.Info("early stopping", zap.Int("epoch", epoch+1), zap.Int("best_epoch", stopper.bestEpoch+1))
			break
		}
	}
	if stopper.restore(net) {
		res.Restored = true
		res.BestEpoch = stopper.bestEpoch
	}

	eval := test
	if len(eval) == 0 {
		eval = train
	}
	m := Evaluate(net, eval)
	res.TestLoss, res.TestMAE = m.MSE, m.MAE
	return res, nil
}
