package trainer

import "path/filepath"

import "github.com/pkg/errors"
import "github.com/spf13/afero"

import "github.com/neurlang/tripmodel/net/feedforward"

// Resume loads previously checkpointed weights into net when resume is set.
func Resume(net *feedforward.FeedforwardNetwork, fs afero.Fs, resume bool, path string) error {
	if !resume || path == "" {
		return nil
	}
	return errors.Wrapf(net.ReadCompressedWeightsFromFile(fs, path), "trainer: resume from %s", path)
}

// Checkpoint stores the weights of net so a later run can Resume.
func Checkpoint(net *feedforward.FeedforwardNetwork, fs afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "trainer: checkpoint dir for %s", path)
	}
	return errors.Wrapf(net.WriteCompressedWeightsToFile(fs, path), "trainer: checkpoint to %s", path)
}
