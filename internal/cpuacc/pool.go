package cpuacc

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
)

// runPool computes max, average or L2 pooling. Max and average pooling stay
// in the raw integer domain when input and output share their encoding;
// averages round half away from zero and count only in-bounds taps.
func runPool(op *graph.Operator, in, out []*backend.Buffer) error {
	g, err := newGeometry(op, in[0], out[0], op.Options.FilterH, op.Options.FilterW)
	if err != nil {
		return err
	}

	if g.outC != g.inC {
		return fmt.Errorf("%w: %s changes depth %d -> %d", graph.ErrInvalidShape, op.Kind, g.inC, g.outC)
	}

	src, dst := in[0], out[0]
	if op.Kind != graph.OpL2Pool2D && src.Type.IsInteger() && src.Type == dst.Type && src.Quant == dst.Quant {
		return poolInt(op, g, src, dst)
	}

	x := readFloat32(src)
	act := activation(op.Options.Activation)
	res := make([]float32, g.batch*g.pixels()*g.outC)

	parallelFor(g.batch*g.outH, Workers(), func(lo, hi int) {
		for r := lo; r < hi; r++ {
			n, oy := r/g.outH, r%g.outH
			for ox := range g.outW {
				for c := range g.outC {
					acc, peak, count := 0.0, math.Inf(-1), 0

					g.taps(oy, ox, func(iy, ix int) {
						v := float64(x[((n*g.inH+iy)*g.inW+ix)*g.inC+c])
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
					case op.Kind == graph.OpMaxPool2D:
						v = peak
					case op.Kind == graph.OpL2Pool2D:
						v = math.Sqrt(acc / float64(count))
					default:
						v = acc / float64(count)
					}

					res[((n*g.outH+oy)*g.outW+ox)*g.outC+c] = act(float32(v))
				}
			}
		}
	})

	writeFloat32Range(dst, res, 0, len(res))

	return nil
}

func poolInt(op *graph.Operator, g geometry, src, dst *backend.Buffer) error {
	x := readInt32(src)
	lo, hi := activationRange(dst, op.Options.Activation)
	res := make([]int32, g.batch*g.pixels()*g.outC)

	for n := range g.batch {
		for oy := range g.outH {
			for ox := range g.outW {
				for c := range g.outC {
					var (
						sum   int64
						count int64
						peak  int32 = math.MinInt32
					)

					g.taps(oy, ox, func(iy, ix int) {
						v := x[((n*g.inH+iy)*g.inW+ix)*g.inC+c]
						sum += int64(v)
						peak = max(peak, v)
						count++
					})

					var v int32
					switch {
					case count == 0:
						v = dst.Quant.ZeroPoint
					case op.Kind == graph.OpMaxPool2D:
						v = peak
					default:
						v = int32(roundDiv(sum, count))
					}

					res[((n*g.outH+oy)*g.outW+ox)*g.outC+c] = min(max(v, lo), hi)
				}
			}
		}
	}

	writeInt32(dst, res)

	return nil
}

// roundDiv divides with rounding half away from zero.
func roundDiv(num, den int64) int64 {
	if num >= 0 {
		return (num + den/2) / den
	}

	return (num - den/2) / den
}

// taps visits every in-bounds input position of output pixel (oy, ox).
func (g geometry) taps(oy, ox int, fn func(iy, ix int)) {
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

			fn(iy, ix)
		}
	}
}
