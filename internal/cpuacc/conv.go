package cpuacc

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// geometry is the resolved NHWC shape of a sliding-window operator.
type geometry struct {
	batch, inH, inW, inC int
	outH, outW, outC     int
	kH, kW               int
	strideH, strideW     int
	dilationH, dilationW int
	padTop, padLeft      int
}

func newGeometry(op *graph.Operator, in, out *backend.Buffer, kH, kW int32) (geometry, error) {
	if len(in.Shape) != 4 || len(out.Shape) != 4 {
		return geometry{}, fmt.Errorf("%w: %s needs NHWC tensors, got %v -> %v", graph.ErrInvalidShape, op.Kind, in.Shape, out.Shape)
	}

	sh, sw := op.Options.StridesOrDefault()
	dh, dw := op.Options.DilationsOrDefault()
	oh, pt := graph.WindowOutput(in.Shape[1], kH, sh, dh, op.Options.Padding)
	ow, pl := graph.WindowOutput(in.Shape[2], kW, sw, dw, op.Options.Padding)

	if oh != out.Shape[1] || ow != out.Shape[2] || in.Shape[0] != out.Shape[0] {
		return geometry{}, fmt.Errorf("%w: %s output %v, want %dx%dx%d", graph.ErrInvalidShape, op.Kind, out.Shape, in.Shape[0], oh, ow)
	}

	return geometry{
		batch: int(in.Shape[0]), inH: int(in.Shape[1]), inW: int(in.Shape[2]), inC: int(in.Shape[3]),
		outH: int(oh), outW: int(ow), outC: int(out.Shape[3]),
		kH: int(kH), kW: int(kW),
		strideH: int(sh), strideW: int(sw),
		dilationH: int(dh), dilationW: int(dw),
		padTop: int(pt), padLeft: int(pl),
	}, nil
}

func (g geometry) patchLen() int { return g.kH * g.kW * g.inC }

func (g geometry) pixels() int { return g.outH * g.outW }

// im2col fills patches [outH*outW, kH*kW*inC] for batch n. Out-of-bounds
// taps are left untouched, so the caller must pass a zeroed matrix.
func im2col[T float32 | int32](g geometry, x []T, n int, patches []T) {
	pl := g.patchLen()

	for oy := range g.outH {
		for ox := range g.outW {
			row := patches[(oy*g.outW+ox)*pl:]

			for ky := range g.kH {
				iy := oy*g.strideH - g.padTop + ky*g.dilationH
				if iy < 0 || iy >= g.inH {
					continue
				}

				for kx := range g.kW {
					ix := ox*g.strideW - g.padLeft + kx*g.dilationW
					if ix < 0 || ix >= g.inW {
						continue
					}

					src := x[((n*g.inH+iy)*g.inW+ix)*g.inC:][:g.inC]
					copy(row[(ky*g.kW+kx)*g.inC:], src)
				}
			}
		}
	}
}

// integerConv reports whether a conv-family operator runs in the integer
// domain: 8-bit activations and filters with int32 or absent bias.
func integerConv(in, out []*backend.Buffer) bool {
	is8 := func(t dtype.ElementType) bool { return t == dtype.Int8 || t == dtype.UInt8 }
	if !is8(in[0].Type) || !is8(in[1].Type) || !is8(out[0].Type) {
		return false
	}

	return len(in) < 3 || in[2] == nil || in[2].Type == dtype.Int32
}

// runConv2D computes an NHWC convolution with [outC, kH, kW, inC] filters
// as im2col followed by a GEMM against the filter matrix.
func runConv2D(op *graph.Operator, in, out []*backend.Buffer) error {
	f := in[1]
	if len(f.Shape) != 4 {
		return fmt.Errorf("%w: CONV_2D filter %v", graph.ErrInvalidShape, f.Shape)
	}

	g, err := newGeometry(op, in[0], out[0], f.Shape[1], f.Shape[2])
	if err != nil {
		return err
	}

	if int(f.Shape[0]) != g.outC || int(f.Shape[3]) != g.inC {
		return fmt.Errorf("%w: CONV_2D filter %v for %d -> %d channels", graph.ErrInvalidShape, f.Shape, g.inC, g.outC)
	}

	if integerConv(in, out) {
		return conv2DInt(op, g, in, out[0])
	}

	return conv2DFloat(op, g, in, out[0])
}

func conv2DFloat(op *graph.Operator, g geometry, in []*backend.Buffer, out *backend.Buffer) error {
	x := readFloat32(in[0])
	filter := readFloat32(in[1])

	bias, err := floatBias(in, g.outC)
	if err != nil {
		return err
	}

	pl := g.patchLen()
	res := make([]float32, g.batch*g.pixels()*g.outC)

	patches := getScratch(g.pixels() * pl)
	defer putScratch(patches)

	for n := range g.batch {
		if n > 0 {
			clear(patches)
		}

		im2col(g, x, n, patches)

		// res[n] = patches x filter^T : [pixels, pl] x [pl, outC].
		blas32.Gemm(blas.NoTrans, blas.Trans, 1,
			blas32.General{Rows: g.pixels(), Cols: pl, Stride: pl, Data: patches},
			blas32.General{Rows: g.outC, Cols: pl, Stride: pl, Data: filter},
			0,
			blas32.General{Rows: g.pixels(), Cols: g.outC, Stride: g.outC, Data: res[n*g.pixels()*g.outC:]},
		)
	}

	finishFloat(op.Options.Activation, res, bias, out)

	return nil
}

func conv2DInt(op *graph.Operator, g geometry, in []*backend.Buffer, out *backend.Buffer) error {
	x := readInt32(in[0])
	for i := range x {
		x[i] -= in[0].Quant.ZeroPoint
	}

	filter := readInt32(in[1])
	for i := range filter {
		filter[i] -= in[1].Quant.ZeroPoint
	}

	bias, ok := accumulatorBias(in, g.outC, in[0].Quant.Scale*in[1].Quant.Scale)
	if !ok {
		return fmt.Errorf("%w: CONV_2D bias does not match %d channels", graph.ErrInvalidShape, g.outC)
	}

	rq := newRequant(in[0].Quant.Scale, in[1].Quant.Scale, out, op.Options.Activation)
	pl := g.patchLen()
	res := make([]int32, g.batch*g.pixels()*g.outC)

	patches := getScratchInt32(g.pixels() * pl)
	defer putScratchInt32(patches)

	for n := range g.batch {
		if n > 0 {
			clear(patches)
		}

		im2col(g, x, n, patches)

		base := n * g.pixels() * g.outC
		parallelFor(g.pixels(), Workers(), func(lo, hi int) {
			for p := lo; p < hi; p++ {
				row := patches[p*pl : (p+1)*pl]
				for oc := range g.outC {
					res[base+p*g.outC+oc] = rq.apply(dotInt32(row, filter[oc*pl:(oc+1)*pl]) + bias[oc])
				}
			}
		})
	}

	writeInt32(out, res)

	return nil
}

// runDepthwiseConv2D computes a depthwise convolution with
// [1, kH, kW, inC*mult] filters, parallel over output rows.
func runDepthwiseConv2D(op *graph.Operator, in, out []*backend.Buffer) error {
	f := in[1]
	if len(f.Shape) != 4 {
		return fmt.Errorf("%w: DEPTHWISE_CONV_2D filter %v", graph.ErrInvalidShape, f.Shape)
	}

	g, err := newGeometry(op, in[0], out[0], f.Shape[1], f.Shape[2])
	if err != nil {
		return err
	}

	mult := g.outC / max(g.inC, 1)
	if mult*g.inC != g.outC || int(f.Shape[3]) != g.outC {
		return fmt.Errorf("%w: DEPTHWISE_CONV_2D %d output channels for %d input channels", graph.ErrInvalidShape, g.outC, g.inC)
	}

	if integerConv(in, out) {
		return depthwiseInt(op, g, mult, in, out[0])
	}

	x := readFloat32(in[0])
	filter := readFloat32(f)

	bias, err := floatBias(in, g.outC)
	if err != nil {
		return err
	}

	res := make([]float32, g.batch*g.pixels()*g.outC)
	depthwise(g, mult, x, filter, res)
	finishFloat(op.Options.Activation, res, bias, out[0])

	return nil
}

func depthwiseInt(op *graph.Operator, g geometry, mult int, in []*backend.Buffer, out *backend.Buffer) error {
	x := readInt32(in[0])
	for i := range x {
		x[i] -= in[0].Quant.ZeroPoint
	}

	filter := readInt32(in[1])
	for i := range filter {
		filter[i] -= in[1].Quant.ZeroPoint
	}

	bias, ok := accumulatorBias(in, g.outC, in[0].Quant.Scale*in[1].Quant.Scale)
	if !ok {
		return fmt.Errorf("%w: DEPTHWISE_CONV_2D bias does not match %d channels", graph.ErrInvalidShape, g.outC)
	}

	acc := make([]int32, g.batch*g.pixels()*g.outC)
	depthwise(g, mult, x, filter, acc)

	rq := newRequant(in[0].Quant.Scale, in[1].Quant.Scale, out, op.Options.Activation)
	for i := range acc {
		acc[i] = rq.apply(acc[i] + bias[i%g.outC])
	}

	writeInt32(out, acc)

	return nil
}

// depthwise accumulates the raw depthwise sums into res.
func depthwise[T float32 | int32](g geometry, mult int, x, filter, res []T) {
	rows := g.batch * g.outH

	parallelFor(rows, Workers(), func(lo, hi int) {
		for r := lo; r < hi; r++ {
			n, oy := r/g.outH, r%g.outH

			for ox := range g.outW {
				dst := res[((n*g.outH+oy)*g.outW+ox)*g.outC:][:g.outC]

				for ky := range g.kH {
					iy := oy*g.strideH - g.padTop + ky*g.dilationH
					if iy < 0 || iy >= g.inH {
						continue
					}

					for kx := range g.kW {
						ix := ox*g.strideW - g.padLeft + kx*g.dilationW
						if ix < 0 || ix >= g.inW {
							continue
						}

						src := x[((n*g.inH+iy)*g.inW+ix)*g.inC:]
						flt := filter[(ky*g.kW+kx)*g.outC:]

						for oc := range g.outC {
							dst[oc] += src[oc/mult] * flt[oc]
						}
					}
				}
			}
		}
	})
}

// runFullyConnected computes y = x * W^T + b with W of shape [units, depth].
func runFullyConnected(op *graph.Operator, in, out []*backend.Buffer) error {
	w := in[1]
	if len(w.Shape) != 2 {
		return fmt.Errorf("%w: FULLY_CONNECTED weights %v", graph.ErrInvalidShape, w.Shape)
	}

	units, depth := int(w.Shape[0]), int(w.Shape[1])
	if depth == 0 || in[0].Len()%depth != 0 {
		return fmt.Errorf("%w: FULLY_CONNECTED input of %d elements for depth %d", graph.ErrInvalidShape, in[0].Len(), depth)
	}

	batch := in[0].Len() / depth
	if batch*units != out[0].Len() {
		return fmt.Errorf("%w: FULLY_CONNECTED produces %dx%d, output holds %d elements", graph.ErrInvalidShape, batch, units, out[0].Len())
	}

	if integerConv(in, out) {
		return fullyConnectedInt(op, batch, units, depth, in, out[0])
	}

	x := readFloat32(in[0])
	weights := readFloat32(w)

	bias, err := floatBias(in, units)
	if err != nil {
		return err
	}

	res := make([]float32, batch*units)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: batch, Cols: depth, Stride: depth, Data: x},
		blas32.General{Rows: units, Cols: depth, Stride: depth, Data: weights},
		0,
		blas32.General{Rows: batch, Cols: units, Stride: units, Data: res},
	)

	finishFloat(op.Options.Activation, res, bias, out[0])

	return nil
}

func fullyConnectedInt(op *graph.Operator, batch, units, depth int, in []*backend.Buffer, out *backend.Buffer) error {
	x := readInt32(in[0])
	for i := range x {
		x[i] -= in[0].Quant.ZeroPoint
	}

	weights := readInt32(in[1])
	for i := range weights {
		weights[i] -= in[1].Quant.ZeroPoint
	}

	bias, ok := accumulatorBias(in, units, in[0].Quant.Scale*in[1].Quant.Scale)
	if !ok {
		return fmt.Errorf("%w: FULLY_CONNECTED bias does not match %d units", graph.ErrInvalidShape, units)
	}

	rq := newRequant(in[0].Quant.Scale, in[1].Quant.Scale, out, op.Options.Activation)
	res := make([]int32, batch*units)

	parallelFor(batch, Workers(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			row := x[b*depth : (b+1)*depth]
			for u := range units {
				res[b*units+u] = rq.apply(dotInt32(row, weights[u*depth:(u+1)*depth]) + bias[u])
			}
		}
	})

	writeInt32(out, res)

	return nil
}

func dotInt32(a, b []int32) int32 {
	var s int32
	for i, v := range a {
		s += v * b[i]
	}

	return s
}

func floatBias(in []*backend.Buffer, n int) ([]float32, error) {
	if len(in) < 3 || in[2] == nil {
		return make([]float32, n), nil
	}

	b := readFloat32(in[2])
	if len(b) != n {
		return nil, fmt.Errorf("%w: bias has %d values for %d channels", graph.ErrInvalidShape, len(b), n)
	}

	return b, nil
}

// finishFloat adds the per-channel bias, applies the fused activation and
// stores res into out.
func finishFloat(act graph.Activation, res, bias []float32, out *backend.Buffer) {
	fn := activation(act)

	if c := len(bias); c > 0 {
		for i := range res {
			res[i] = fn(res[i] + bias[i%c])
		}
	}

	writeFloat32Range(out, res, 0, len(res))
}
