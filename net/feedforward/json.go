package feedforward

import "compress/lzw"
import "encoding/json"
import "fmt"
import "io"

import "github.com/pkg/errors"
import "github.com/spf13/afero"

type weightsJson struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// WriteCompressedWeightsToFile writes model weights to a lzw file
func (f FeedforwardNetwork) WriteCompressedWeightsToFile(fs afero.Fs, name string) error {
	file, err := fs.Create(name)
	if err != nil {
		return err
	}
	err = f.WriteCompressedWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteCompressedWeights writes model weights to a writer
func (f FeedforwardNetwork) WriteCompressedWeights(w io.Writer) error {
	lw := lzw.NewWriter(w, lzw.LSB, 8)

	var out []weightsJson
	for i, p := range f.Params() {
		r, c := p.Value.Dims()
		out = append(out, weightsJson{
			Name: fmt.Sprintf("%d/%s", i, p.Name),
			Rows: r,
			Cols: c,
			Data: append([]float64(nil), p.Value.RawMatrix().Data...),
		})
	}
	if err := json.NewEncoder(lw).Encode(out); err != nil {
		return err
	}
	return lw.Close()
}

// ReadCompressedWeightsFromFile reads model weights from a lzw file
func (f *FeedforwardNetwork) ReadCompressedWeightsFromFile(fs afero.Fs, name string) error {
	file, err := fs.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return f.ReadCompressedWeights(file)
}

// ReadCompressedWeights reads model weights from a reader. The stored tensors
// must match the network layout exactly.
func (f *FeedforwardNetwork) ReadCompressedWeights(r io.Reader) error {
	lr := lzw.NewReader(r, lzw.LSB, 8)
	defer lr.Close()

	var in []weightsJson
	if err := json.NewDecoder(lr).Decode(&in); err != nil {
		return err
	}
	params := f.Params()
	if len(in) != len(params) {
		return errors.Errorf("feedforward: %d stored tensors, network has %d", len(in), len(params))
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		if in[i].Rows != r || in[i].Cols != c || len(in[i].Data) != r*c {
			return errors.Errorf("feedforward: tensor %s does not fit %dx%d", in[i].Name, r, c)
		}
	}
	for i, p := range params {
		copy(p.Value.RawMatrix().Data, in[i].Data)
	}
	return nil
}
