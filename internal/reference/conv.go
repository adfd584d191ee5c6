package reference

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// window holds the resolved NHWC geometry of a convolution or pooling op.
type window struct {
	batch, inH, inW, inC int
	outH, outW, outC     int
	kH, kW               int
	strideH, strideW     int
	dilationH, dilationW int
	padTop, padLeft      int
}

func newWindow(op *graph.Operator, in, out *backend.Buffer, kH, kW int32) (window, error) {
	if len(in.Shape) != 4 || len(out.Shape) != 4 {
		return window{}, fmt.Errorf("%w: %s needs NHWC tensors, got %v -> %v", graph.ErrInvalidShape, op.Kind, in.Shape, out.Shape)
	}

	sh, sw := op.Options.StridesOrDefault()
	dh, dw := op.Options.DilationsOrDefault()
	oh, pt := graph.WindowOutput(in.Shape[1], kH, sh, dh, op.Options.Padding)
	ow, pl := graph.WindowOutput(in.Shape[2], kW, sw, dw, op.Options.Padding)

	if oh != out.Shape[1] || ow != out.Shape[2] {
		return window{}, fmt.Errorf("%w: %s output %v, want spatial %dx%d", graph.ErrInvalidShape, op.Kind, out.Shape, oh, ow)
	}

	return window{
		batch: int(in.Shape[0]), inH: int(in.Shape[1]), inW: int(in.Shape[2]), inC: int(in.Shape[3]),
		outH: int(oh), outW: int(ow), outC: int(out.Shape[3]),
		kH: int(kH), kW: int(kW),
		strideH: int(sh), strideW: int(sw),
		dilationH: int(dh), dilationW: int(dw),
		padTop: int(pt), padLeft: int(pl),
	}, nil
}

// each visits every in-bounds input position of output pixel (oy, ox).
func (w window) each(oy, ox int, fn func(ky, kx, iy, ix int)) {
	for ky := range w.kH {
		iy := oy*w.strideH - w.padTop + ky*w.dilationH
		if iy < 0 || iy >= w.inH {
			continue
		}

		for kx := range w.kW {
			ix := ox*w.strideW - w.padLeft + kx*w.dilationW
			if ix < 0 || ix >= w.inW {
				continue
			}

			fn(ky, kx, iy, ix)
		}
	}
}

func biasValues(in []*backend.Buffer, n int) ([]float32, error) {
	if len(in) < 3 || in[2] == nil {
		return make([]float32, n), nil
	}

	b := Dequantize(in[2]).RawData()
	if len(b) != n {
		return nil, fmt.Errorf("%w: bias has %d values for %d channels", graph.ErrInvalidShape, len(b), n)
	}

	return b, nil
}

// runConv2D computes an NHWC convolution with [outC, kH, kW, inC] filters.
func runConv2D(op *graph.Operator, in, out []*backend.Buffer) error {
	f := in[1]
	if len(f.Shape) != 4 {
		return fmt.Errorf("%w: CONV_2D filter %v", graph.ErrInvalidShape, f.Shape)
	}

	w, err := newWindow(op, in[0], out[0], f.Shape[1], f.Shape[2])
	if err != nil {
		return err
	}

	x := Dequantize(in[0]).RawData()
	filter := Dequantize(f).RawData()

	bias, err := biasValues(in, w.outC)
	if err != nil {
		return err
	}

	act := Activate(op.Options.Activation)
	res := make([]float32, w.batch*w.outH*w.outW*w.outC)

	for n := range w.batch {
		for oy := range w.outH {
			for ox := range w.outW {
				for oc := range w.outC {
					var sum float64
					w.each(oy, ox, func(ky, kx, iy, ix int) {
						src := x[((n*w.inH+iy)*w.inW+ix)*w.inC:]
						flt := filter[((oc*w.kH+ky)*w.kW+kx)*w.inC:]
						for ic := range w.inC {
							sum += float64(src[ic]) * float64(flt[ic])
						}
					})

					res[((n*w.outH+oy)*w.outW+ox)*w.outC+oc] = act(float32(sum) + bias[oc])
				}
			}
		}
	}

	Requantize(out[0], res)

	return nil
}

// runDepthwiseConv2D computes a depthwise convolution with [1, kH, kW, inC*mult] filters.
func runDepthwiseConv2D(op *graph.Operator, in, out []*backend.Buffer) error {
	f := in[1]
	if len(f.Shape) != 4 {
		return fmt.Errorf("%w: DEPTHWISE_CONV_2D filter %v", graph.ErrInvalidShape, f.Shape)
	}

	w, err := newWindow(op, in[0], out[0], f.Shape[1], f.Shape[2])
	if err != nil {
		return err
	}

	mult := w.outC / w.inC
	if mult*w.inC != w.outC {
		return fmt.Errorf("%w: DEPTHWISE_CONV_2D %d output channels for %d input channels", graph.ErrInvalidShape, w.outC, w.inC)
	}

	x := Dequantize(in[0]).RawData()
	filter := Dequantize(f).RawData()

	bias, err := biasValues(in, w.outC)
	if err != nil {
		return err
	}

	act := Activate(op.Options.Activation)
	res := make([]float32, w.batch*w.outH*w.outW*w.outC)

	for n := range w.batch {
		for oy := range w.outH {
			for ox := range w.outW {
				for oc := range w.outC {
					ic := oc / mult

					var sum float64
					w.each(oy, ox, func(ky, kx, iy, ix int) {
						sum += float64(x[((n*w.inH+iy)*w.inW+ix)*w.inC+ic]) * float64(filter[(ky*w.kW+kx)*w.outC+oc])
					})

					res[((n*w.outH+oy)*w.outW+ox)*w.outC+oc] = act(float32(sum) + bias[oc])
				}
			}
		}
	}

	Requantize(out[0], res)

	return nil
}

// runFullyConnected flattens the input to [batch, depth] and applies
// y = x * W^T + b with W of shape [units, depth].
func runFullyConnected(op *graph.Operator, in, out []*backend.Buffer) error {
	wt := Dequantize(in[1])
	ws := wt.Shape()
	if len(ws) != 2 {
		return fmt.Errorf("%w: FULLY_CONNECTED weights %v", graph.ErrInvalidShape, ws)
	}

	x := Dequantize(in[0])
	depth := ws[1]

	if int64(x.ElemCount())%depth != 0 {
		return fmt.Errorf("%w: FULLY_CONNECTED input of %d elements for depth %d", graph.ErrInvalidShape, x.ElemCount(), depth)
	}

	x2, err := x.Reshape([]int64{int64(x.ElemCount()) / depth, depth})
	if err != nil {
		return err
	}

	var bias *tensor.Tensor
	if len(in) > 2 && in[2] != nil {
		bias = Dequantize(in[2])
	}

	y, err := tensor.Linear(x2, wt, bias)
	if err != nil {
		return err
	}

	if y.ElemCount() != out[0].Len() {
		return fmt.Errorf("%w: FULLY_CONNECTED produces %v, output holds %d elements", graph.ErrInvalidShape, y.Shape(), out[0].Len())
	}

	Requantize(out[0], y.Map(Activate(op.Options.Activation)).RawData())

	return nil
}

// runPool computes average, max or L2 pooling. Averages count only
// in-bounds positions.
func runPool(op *graph.Operator, in, out []*backend.Buffer) error {
	w, err := newWindow(op, in[0], out[0], op.Options.FilterH, op.Options.FilterW)
	if err != nil {
		return err
	}

	if w.outC != w.inC {
		return fmt.Errorf("%w: %s changes depth %d -> %d", graph.ErrInvalidShape, op.Kind, w.inC, w.outC)
	}

	x := Dequantize(in[0]).RawData()
	act := Activate(op.Options.Activation)
	res := make([]float32, w.batch*w.outH*w.outW*w.outC)

	for n := range w.batch {
		for oy := range w.outH {
			for ox := range w.outW {
				for c := range w.outC {
					var (
						acc   float64
						count int
					)

					peak := math.Inf(-1)

					w.each(oy, ox, func(_, _, iy, ix int) {
						v := float64(x[((n*w.inH+iy)*w.inW+ix)*w.inC+c])
						if op.Kind == graph.OpL2Pool2D {
							acc += v * v
						} else {
							acc += v
						}

						peak = math.Max(peak, v)
						count++
					})

					var v float64
					switch {
					case count == 0:
						v = 0
					case op.Kind == graph.OpMaxPool2D:
						v = peak
					case op.Kind == graph.OpL2Pool2D:
						v = math.Sqrt(acc / float64(count))
					default:
						v = acc / float64(count)
					}

					res[((n*w.outH+oy)*w.outW+ox)*w.outC+c] = act(float32(v))
				}
			}
		}
	}

	Requantize(out[0], res)

	return nil
}
