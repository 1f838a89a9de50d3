// Package neural provides feedforward network controllers and the learning
// algorithms that evolve them.
package neural

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/laop/game"
)

// Network dimensions (compile-time constants for array sizing).
// NumInputs must match game.NumInputs: one value per sensor plus speed.
const (
	NumInputs  = game.NumInputs
	NumHidden  = 8
	NumOutputs = 3 // acceleration, brake, steering
)

// FFNN is a simple two-layer feedforward neural network.
type FFNN struct {
	W1 [NumHidden][NumInputs]float64  // input -> hidden weights
	B1 [NumHidden]float64             // hidden biases
	W2 [NumOutputs][NumHidden]float64 // hidden -> output weights
	B2 [NumOutputs]float64            // output biases
}

// NewFFNN creates a randomly initialized network. The brake output starts
// biased off so fresh cars tend to move.
func NewFFNN(rng *rand.Rand) *FFNN {
	nn := &FFNN{}
	// Xavier initialization
	scale1 := math.Sqrt(2.0 / float64(NumInputs))
	scale2 := math.Sqrt(2.0 / float64(NumHidden))

	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = rng.NormFloat64() * scale1
		}
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = rng.NormFloat64() * scale2
		}
	}

	// The output activation is saturate01(raw*0.5 + 0.5), so raw=0 maps to 0.5.
	nn.B2[0] = 0.5  // acceleration: mostly on
	nn.B2[1] = -2.0 // brake: biased toward 0
	return nn
}

// Forward computes the network output.
// Returns: acceleration [0,1], brake [0,1], steering [-1,1]
func (nn *FFNN) Forward(inputs []float64) (accel, brake, steer float64) {
	_, out := nn.forward(inputs)
	return out[0], out[1], out[2]
}

func (nn *FFNN) forward(inputs []float64) (hidden [NumHidden]float64, out [NumOutputs]float64) {
	var in [NumInputs]float64
	copy(in[:], inputs)

	for i := 0; i < NumHidden; i++ {
		hidden[i] = tanh(nn.B1[i] + floats.Dot(nn.W1[i][:], in[:]))
	}
	for i := 0; i < NumOutputs; i++ {
		out[i] = nn.B2[i] + floats.Dot(nn.W2[i][:], hidden[:])
	}

	out[0] = saturate01(out[0]*0.5 + 0.5)
	out[1] = saturate01(out[1]*0.5 + 0.5)
	out[2] = tanh(out[2])
	return hidden, out
}

// Control implements game.Controller.
func (nn *FFNN) Control(inputs []float64) game.Controls {
	accel, brake, steer := nn.Forward(inputs)
	return game.Controls{Acceleration: accel, Brake: brake, Steering: steer}
}

// saturate01 clamps x to [0, 1].
func saturate01(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x
}

// Activations holds captured intermediate layer values.
type Activations struct {
	Inputs  []float64
	Hidden  []float64
	Outputs []float64 // [accel, brake, steer] after activation
}

// ForwardWithCapture computes the network output and captures all layer activations.
func (nn *FFNN) ForwardWithCapture(inputs []float64) *Activations {
	hidden, out := nn.forward(inputs)
	return &Activations{
		Inputs:  append([]float64(nil), inputs...),
		Hidden:  append([]float64(nil), hidden[:]...),
		Outputs: append([]float64(nil), out[:]...),
	}
}

// Mutate perturbs every weight and bias with Gaussian noise.
func (nn *FFNN) Mutate(rng *rand.Rand, strength float64) {
	nn.each(func(w *float64, _ bool) {
		*w += rng.NormFloat64() * strength
	})
}

// MutateSparse applies sparse per-weight mutation for stable lineages.
// rate: probability each weight mutates (e.g., 0.05)
// sigma: standard deviation of normal perturbation (e.g., 0.08)
// bigRate: probability of a large mutation (e.g., 0.01)
// bigSigma: sigma for large mutations (e.g., 0.4)
// Returns avgAbsDelta: the average absolute delta of all applied mutations.
func (nn *FFNN) MutateSparse(rng *rand.Rand, rate, sigma, bigRate, bigSigma float64) float64 {
	biasRate := rate * 0.5 // biases mutate at half the rate

	var totalDelta float64
	var count int
	nn.each(func(w *float64, bias bool) {
		r := rate
		if bias {
			r = biasRate
		}
		if rng.Float64() >= r {
			return
		}
		s := sigma
		if rng.Float64() < bigRate {
			s = bigSigma
		}
		delta := rng.NormFloat64() * s
		*w += delta
		totalDelta += math.Abs(delta)
		count++
	})

	if count == 0 {
		return 0
	}
	return totalDelta / float64(count)
}

// Crossover returns a child whose weights are drawn uniformly from nn and
// other; each weight comes from nn with probability bias.
func (nn *FFNN) Crossover(rng *rand.Rand, other *FFNN, bias float64) *FFNN {
	child := nn.Clone()
	src := other.flatten()
	i := 0
	child.each(func(w *float64, _ bool) {
		if rng.Float64() >= bias {
			*w = src[i]
		}
		i++
	})
	return child
}

// each visits every parameter in a fixed order: W1 rows with their hidden
// bias, then W2 rows with their output bias.
func (nn *FFNN) each(fn func(w *float64, bias bool)) {
	for i := range nn.W1 {
		for j := range nn.W1[i] {
			fn(&nn.W1[i][j], false)
		}
		fn(&nn.B1[i], true)
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			fn(&nn.W2[i][j], false)
		}
		fn(&nn.B2[i], true)
	}
}

// NumParams is the total number of weights and biases.
const NumParams = NumHidden*NumInputs + NumHidden + NumOutputs*NumHidden + NumOutputs

func (nn *FFNN) flatten() []float64 {
	out := make([]float64, 0, NumParams)
	nn.each(func(w *float64, _ bool) { out = append(out, *w) })
	return out
}

// Distance returns the Euclidean distance between the parameters of two networks.
func (nn *FFNN) Distance(other *FFNN) float64 {
	return floats.Distance(nn.flatten(), other.flatten(), 2)
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	clone := *nn
	return &clone
}

// tanh uses a fast rational approximation. It reaches ±1 at |x| = 3 and
// overshoots beyond, so it saturates there.
func tanh(x float64) float64 {
	if x >= 3 {
		return 1
	}
	if x <= -3 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// BrainWeights holds flattened network weights for serialization.
type BrainWeights struct {
	Inputs  []string  `json:"inputs,omitempty"`
	Outputs []string  `json:"outputs,omitempty"`
	W1      []float64 `json:"w1"` // [NumHidden * NumInputs]
	B1      []float64 `json:"b1"` // [NumHidden]
	W2      []float64 `json:"w2"` // [NumOutputs * NumHidden]
	B2      []float64 `json:"b2"` // [NumOutputs]
}

// MarshalWeights flattens the network weights for JSON serialization.
func (nn *FFNN) MarshalWeights() BrainWeights {
	bw := BrainWeights{
		Inputs:  InputLabels(),
		Outputs: OutputLabels(),
		W1:      make([]float64, NumHidden*NumInputs),
		B1:      make([]float64, NumHidden),
		W2:      make([]float64, NumOutputs*NumHidden),
		B2:      make([]float64, NumOutputs),
	}
	for i := 0; i < NumHidden; i++ {
		copy(bw.W1[i*NumInputs:], nn.W1[i][:])
	}
	copy(bw.B1, nn.B1[:])
	for i := 0; i < NumOutputs; i++ {
		copy(bw.W2[i*NumHidden:], nn.W2[i][:])
	}
	copy(bw.B2, nn.B2[:])
	return bw
}

// UnmarshalWeights restores network weights from flattened form. Missing
// trailing values leave the current weights in place.
func (nn *FFNN) UnmarshalWeights(bw BrainWeights) {
	for i := 0; i < NumHidden; i++ {
		for j := 0; j < NumInputs; j++ {
			if i*NumInputs+j < len(bw.W1) {
				nn.W1[i][j] = bw.W1[i*NumInputs+j]
			}
		}
	}
	for i := 0; i < NumHidden && i < len(bw.B1); i++ {
		nn.B1[i] = bw.B1[i]
	}
	for i := 0; i < NumOutputs; i++ {
		for j := 0; j < NumHidden; j++ {
			if i*NumHidden+j < len(bw.W2) {
				nn.W2[i][j] = bw.W2[i*NumHidden+j]
			}
		}
	}
	for i := 0; i < NumOutputs && i < len(bw.B2); i++ {
		nn.B2[i] = bw.B2[i]
	}
}

// WeightsOf returns the serialisable weights of c if it is an *FFNN.
func WeightsOf(c game.Controller) (BrainWeights, bool) {
	nn, ok := c.(*FFNN)
	if !ok || nn == nil {
		return BrainWeights{}, false
	}
	return nn.MarshalWeights(), true
}
