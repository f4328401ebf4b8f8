// Package inverse computes minimum-norm source estimates and their
// noise-normalized variants dSPM and sLORETA.
package inverse

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/cov"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/forward"
)

// Method selects the source estimate flavor.
type Method int

const (
	// MNE is the plain minimum-norm current estimate.
	MNE Method = iota
	// DSPM divides each source by its noise standard deviation.
	DSPM
	// SLORETA normalizes by the resolution matrix diagonal.
	SLORETA
)

func (m Method) String() string {
	switch m {
	case MNE:
		return "MNE"
	case DSPM:
		return "dSPM"
	case SLORETA:
		return "sLORETA"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

var (
	// ErrChannelMismatch indicates data channels not covered by the operator.
	ErrChannelMismatch = errors.New("inverse: channel mismatch")
	// ErrBadSNR indicates a non-positive signal-to-noise ratio.
	ErrBadSNR = errors.New("inverse: bad SNR")
	// ErrBadWeight indicates a loose or depth parameter out of range.
	ErrBadWeight = errors.New("inverse: bad weighting parameter")
)

type operatorConfig struct {
	loose float64
	depth float64
}

// OperatorOption configures MakeOperator.
type OperatorOption func(*operatorConfig)

// WithLoose down-weights sources oriented away from the radial
// direction by sqrt(loose). 1 (the default) treats all orientations
// equally, 0 keeps only radial ones.
func WithLoose(loose float64) OperatorOption {
	return func(c *operatorConfig) { c.loose = loose }
}

// WithDepth compensates the bias towards superficial sources by
// scaling each source with its gain column norm to the power -depth.
// 0 (the default) disables the compensation, 0.8 is the common choice.
func WithDepth(depth float64) OperatorOption {
	return func(c *operatorConfig) { c.depth = depth }
}

// Operator is a prepared inverse operator for one forward model and
// noise covariance. Building it once amortizes the SVD over any number
// of evoked responses or epochs.
type Operator struct {
	names   []string
	sources []forward.Source

	// whitener maps sensor data into whitened space.
	whitener *mat.Dense
	// u, s, v come from the SVD of the whitened, source-weighted gain.
	u, v *mat.Dense
	s    []float64
	rank int
	// weight holds the per-source loose/depth scaling folded back
	// into the kernel rows.
	weight []float64
}

// MakeOperator whitens the gain matrix with the noise covariance,
// applies the loose and depth source weighting and factors the result.
// The covariance channel set must match the forward model.
func MakeOperator(fwd *forward.Forward, noise *cov.Covariance, opts ...OperatorOption) (*Operator, error) {
	cfg := operatorConfig{loose: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.loose < 0 || cfg.loose > 1 || cfg.depth < 0 {
		return nil, fmt.Errorf("%w: loose %g, depth %g", ErrBadWeight, cfg.loose, cfg.depth)
	}
	if len(noise.Names) != fwd.NumChannels() {
		return nil, fmt.Errorf("%w: covariance has %d channels, forward %d",
			ErrChannelMismatch, len(noise.Names), fwd.NumChannels())
	}
	for i, name := range noise.Names {
		if fwd.ChannelNames[i] != name {
			return nil, fmt.Errorf("%w: %q vs %q at %d",
				ErrChannelMismatch, name, fwd.ChannelNames[i], i)
		}
	}

	w, rank, err := noise.Whitener(0)
	if err != nil {
		return nil, err
	}

	var gw mat.Dense
	gw.Mul(w, fwd.Gain())

	weight := sourceWeights(&gw, fwd.Sources, cfg)
	nCh, nSrc := gw.Dims()
	for j := 0; j < nSrc; j++ {
		for i := 0; i < nCh; i++ {
			gw.Set(i, j, gw.At(i, j)*weight[j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(&gw, mat.SVDThin) {
		return nil, errors.New("inverse: svd of whitened gain failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	return &Operator{
		names:    append([]string(nil), fwd.ChannelNames...),
		sources:  fwd.Sources,
		whitener: w,
		u:        &u,
		v:        &v,
		s:        svd.Values(nil),
		rank:     rank,
		weight:   weight,
	}, nil
}

// sourceWeights combines the depth compensation (gain column norm to
// the power -depth, scaled so the largest weight is one) with the loose
// orientation factor sqrt(c^2 + loose (1 - c^2)), c being the cosine
// between the source orientation and its radial direction.
func sourceWeights(gw *mat.Dense, sources []forward.Source, cfg operatorConfig) []float64 {
	nCh, nSrc := gw.Dims()
	weight := make([]float64, nSrc)
	for i := range weight {
		weight[i] = 1
	}

	if cfg.depth > 0 {
		maxW := 0.0
		for j := 0; j < nSrc; j++ {
			norm2 := 0.0
			for i := 0; i < nCh; i++ {
				v := gw.At(i, j)
				norm2 += v * v
			}
			if norm2 > 0 {
				weight[j] = math.Pow(norm2, -cfg.depth/2)
			}
			if weight[j] > maxW {
				maxW = weight[j]
			}
		}
		if maxW > 0 {
			for j := range weight {
				weight[j] /= maxW
			}
		}
	}

	if cfg.loose < 1 {
		for j, src := range sources {
			p := math.Sqrt(src.Pos.X*src.Pos.X + src.Pos.Y*src.Pos.Y + src.Pos.Z*src.Pos.Z)
			o := math.Sqrt(src.Ori.X*src.Ori.X + src.Ori.Y*src.Ori.Y + src.Ori.Z*src.Ori.Z)
			c := 1.0
			if p > 0 && o > 0 {
				dot := src.Pos.X*src.Ori.X + src.Pos.Y*src.Ori.Y + src.Pos.Z*src.Ori.Z
				c = math.Abs(dot) / (p * o)
			}
			weight[j] *= math.Sqrt(c*c + cfg.loose*(1-c*c))
		}
	}
	return weight
}

// NumSources returns the source count of the operator.
func (op *Operator) NumSources() int {
	return len(op.sources)
}

// kernel builds the source-from-whitened-data matrix
// V diag(s/(s^2+lambda2)) U^T for the given regularization.
func (op *Operator) kernel(lambda2 float64) *mat.Dense {
	nv, _ := op.v.Dims()
	k := len(op.s)

	scaled := mat.NewDense(nv, k, nil)
	for j := 0; j < k; j++ {
		g := op.s[j] / (op.s[j]*op.s[j] + lambda2)
		for i := 0; i < nv; i++ {
			scaled.Set(i, j, op.v.At(i, j)*g)
		}
	}
	var kern mat.Dense
	kern.Mul(scaled, op.u.T())

	// Undo the source weighting substitution: x = W z.
	rows, cols := kern.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			kern.Set(i, j, kern.At(i, j)*op.weight[i])
		}
	}
	return &kern
}

// SourceEstimate is source activity over time, sources by samples.
type SourceEstimate struct {
	// Method is the estimate flavor the data came from.
	Method Method
	// Sources lists the dipoles, in row order.
	Sources []forward.Source
	// Data holds the time courses, one row per source.
	Data [][]float64
	// Tmin is the time of the first sample.
	Tmin float64
	// SampleRate in Hz.
	SampleRate float64
}

// Times returns the sample times.
func (s *SourceEstimate) Times() []float64 {
	if len(s.Data) == 0 {
		return nil
	}
	return core.TimeVector(s.Tmin, s.SampleRate, len(s.Data[0]))
}

// Peak returns the source index and time of the largest absolute value.
func (s *SourceEstimate) Peak() (int, float64) {
	best := -1.0
	bi, bj := 0, 0
	for i, row := range s.Data {
		for j, v := range row {
			if a := math.Abs(v); a > best {
				best = a
				bi, bj = i, j
			}
		}
	}
	return bi, s.Tmin + float64(bj)/s.SampleRate
}

// Apply computes the source estimate of an evoked response. The
// regularization is lambda2 = 1/snr^2; snr 3 is the usual choice for
// averaged data.
func (op *Operator) Apply(ev *epochs.Evoked, method Method, snr float64) (*SourceEstimate, error) {
	data, err := op.matchChannels(ev.Info(), ev.Data())
	if err != nil {
		return nil, err
	}
	est, err := op.applyMatrix(data, method, snr)
	if err != nil {
		return nil, err
	}
	est.Tmin = ev.Tmin()
	est.SampleRate = ev.Info().SampleRate
	return est, nil
}

// ApplyEpochs computes one source estimate per epoch.
func (op *Operator) ApplyEpochs(e *epochs.Epochs, method Method, snr float64) ([]*SourceEstimate, error) {
	out := make([]*SourceEstimate, 0, e.NumEpochs())
	for i := range e.Data() {
		data, err := op.matchChannels(e.Info(), e.Data()[i])
		if err != nil {
			return nil, err
		}
		est, err := op.applyMatrix(data, method, snr)
		if err != nil {
			return nil, err
		}
		est.Tmin = e.Tmin()
		est.SampleRate = e.Info().SampleRate
		out = append(out, est)
	}
	return out, nil
}

// matchChannels reorders rows of data to the operator's channel order.
func (op *Operator) matchChannels(info *core.Info, data [][]float64) (*mat.Dense, error) {
	n := len(data[0])
	out := mat.NewDense(len(op.names), n, nil)
	for i, name := range op.names {
		idx, err := info.ChannelIndex(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrChannelMismatch, name)
		}
		out.SetRow(i, data[idx])
	}
	return out, nil
}

func (op *Operator) applyMatrix(data *mat.Dense, method Method, snr float64) (*SourceEstimate, error) {
	if snr <= 0 {
		return nil, ErrBadSNR
	}
	lambda2 := 1 / (snr * snr)
	kern := op.kernel(lambda2)

	var whitened, src mat.Dense
	whitened.Mul(op.whitener, data)
	src.Mul(kern, &whitened)

	nSrc, n := src.Dims()
	est := &SourceEstimate{
		Method:  method,
		Sources: op.sources,
		Data:    make([][]float64, nSrc),
	}

	norm, err := op.normalization(kern, method, lambda2)
	if err != nil {
		return nil, err
	}

	for i := 0; i < nSrc; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = src.At(i, j) * norm[i]
		}
		est.Data[i] = row
	}
	return est, nil
}

// normalization returns the per-source scale for the chosen method.
// Noise in whitened space is identity, so the dSPM denominator is the
// kernel row norm; sLORETA uses the modeled data covariance instead.
func (op *Operator) normalization(kern *mat.Dense, method Method, lambda2 float64) ([]float64, error) {
	nSrc, cols := kern.Dims()
	norm := make([]float64, nSrc)

	switch method {
	case MNE:
		for i := range norm {
			norm[i] = 1
		}
	case DSPM:
		for i := 0; i < nSrc; i++ {
			s := 0.0
			for j := 0; j < cols; j++ {
				v := kern.At(i, j)
				s += v * v
			}
			if s == 0 {
				return nil, errors.New("inverse: zero dSPM denominator")
			}
			norm[i] = 1 / math.Sqrt(s)
		}
	case SLORETA:
		// diag(K C K^T) with the modeled whitened data covariance
		// C = Gw Gw^T + lambda2 I reduces to
		// sum_j v_ij^2 s_j^2 / (s_j^2 + lambda2).
		for i := 0; i < nSrc; i++ {
			d := 0.0
			for j, s := range op.s {
				vij := op.v.At(i, j)
				d += vij * vij * s * s / (s*s + lambda2)
			}
			d *= op.weight[i] * op.weight[i]
			if d == 0 {
				return nil, errors.New("inverse: zero sLORETA denominator")
			}
			norm[i] = 1 / math.Sqrt(d)
		}
	default:
		return nil, fmt.Errorf("inverse: unknown method %d", int(method))
	}
	return norm, nil
}
