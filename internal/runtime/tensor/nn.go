package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Softmax normalizes x along axis. Exponentials are taken after subtracting
// the running maximum and summed in float64.
func Softmax(x *Tensor, axis int) (*Tensor, error) {
	if x == nil || len(x.shape) == 0 {
		return nil, errors.New("tensor: softmax needs a tensor of rank >= 1")
	}

	axis, err := normalizeAxis(axis, len(x.shape))
	if err != nil {
		return nil, fmt.Errorf("tensor: softmax: %w", err)
	}

	n := int(x.shape[axis])
	if n == 0 {
		return nil, fmt.Errorf("tensor: softmax over empty axis %d of %v", axis, x.shape)
	}

	inner := 1
	for _, d := range x.shape[axis+1:] {
		inner *= int(d)
	}

	out := x.Clone()
	y := out.data

	for base := 0; base < len(y); base += n * inner {
		for in := range inner {
			at := func(k int) int { return base + k*inner + in }

			peak := float32(math.Inf(-1))
			for k := range n {
				peak = max(peak, y[at(k)])
			}

			var sum float64

			for k := range n {
				e := math.Exp(float64(y[at(k)] - peak))
				y[at(k)] = float32(e)
				sum += e
			}

			scale := float32(1 / sum)
			for k := range n {
				y[at(k)] *= scale
			}
		}
	}

	return out, nil
}

// LayerNorm standardizes every row of the last axis and applies the optional
// per-feature weight and bias.
func LayerNorm(x, weight, bias *Tensor, eps float32) (*Tensor, error) {
	if x == nil || x.Rank() == 0 {
		return nil, errors.New("tensor: layernorm needs a tensor of rank >= 1")
	}

	if eps <= 0 {
		return nil, fmt.Errorf("tensor: layernorm eps %g must be positive", eps)
	}

	d := x.shape[len(x.shape)-1]
	if d == 0 {
		return nil, errors.New("tensor: layernorm over empty last axis")
	}

	for _, p := range []*Tensor{weight, bias} {
		if p != nil && (p.Rank() != 1 || p.shape[0] != d) {
			return nil, fmt.Errorf("tensor: layernorm parameter shape %v, want [%d]", p.shape, d)
		}
	}

	out := x.Clone()

	for row := range out.Rows(int(d)) {
		var mean, sq float64
		for _, v := range row {
			mean += float64(v)
		}

		mean /= float64(len(row))

		for _, v := range row {
			sq += (float64(v) - mean) * (float64(v) - mean)
		}

		inv := 1 / math.Sqrt(sq/float64(len(row))+float64(eps))

		for i, v := range row {
			n := float32((float64(v) - mean) * inv)
			if weight != nil {
				n *= weight.data[i]
			}

			if bias != nil {
				n += bias.data[i]
			}

			row[i] = n
		}
	}

	return out, nil
}

// Linear computes x·Wᵀ + bias over the last axis of x, with weight laid out
// as [out, in].
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if x == nil || weight == nil {
		return nil, errors.New("tensor: linear needs input and weight")
	}

	if x.Rank() == 0 || weight.Rank() != 2 {
		return nil, fmt.Errorf("tensor: linear shapes %v x %v", x.shape, weight.shape)
	}

	in, units := x.shape[x.Rank()-1], weight.shape[0]
	if weight.shape[1] != in {
		return nil, fmt.Errorf("tensor: linear input depth %d, weight %v", in, weight.shape)
	}

	if bias != nil && (bias.Rank() != 1 || bias.shape[0] != units) {
		return nil, fmt.Errorf("tensor: linear bias shape %v, want [%d]", bias.shape, units)
	}

	shape := append(append([]int64(nil), x.shape[:x.Rank()-1]...), units)

	if in == 0 {
		return Zeros(shape)
	}

	rows := len(x.data) / int(in)
	y := make([]float32, rows*int(units))

	for r := range rows {
		xr := x.data[r*int(in) : (r+1)*int(in)]

		for u := range int(units) {
			w := weight.data[u*int(in) : (u+1)*int(in)]

			var acc float32
			for i, v := range xr {
				acc += v * w[i]
			}

			if bias != nil {
				acc += bias.data[u]
			}

			y[r*int(units)+u] = acc
		}
	}

	return newOwned(y, shape), nil
}
