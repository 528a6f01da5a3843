package mangle

import (
	"math"

	"github.com/benoitkugler/pdfmangle/config"
	"github.com/benoitkugler/pdfmangle/graphics"
)

// segment is a maximal run of path construction operators, from an
// `m` (or `re`) up to the next subpath start, clip or painting
// operator.
type segment struct {
	start, end int // operation index range, end exclusive
	length     float64
	minX, minY float64
	maxX, maxY float64
}

func dist(x0, y0, x1, y1 float64) float64 {
	return math.Hypot(x1-x0, y1-y0)
}

// analyzeSegment measures the run ops[start:end]: cumulated chord
// length and bounding box of the on-curve points. Control points are
// ignored for the metrics; they are still perturbed later.
func analyzeSegment(ops []graphics.Operation, start, end int) segment {
	seg := segment{
		start: start, end: end,
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
	}
	var cx, cy, sx, sy float64 // current point, subpath start
	grow := func(x, y float64) {
		seg.minX = math.Min(seg.minX, x)
		seg.minY = math.Min(seg.minY, y)
		seg.maxX = math.Max(seg.maxX, x)
		seg.maxY = math.Max(seg.maxY, y)
	}
	for _, op := range ops[start:end] {
		switch op := op.(type) {
		case graphics.OpMoveTo:
			cx, cy = op.X, op.Y
			sx, sy = op.X, op.Y
			grow(cx, cy)
		case graphics.OpLineTo:
			seg.length += dist(cx, cy, op.X, op.Y)
			cx, cy = op.X, op.Y
			grow(cx, cy)
		case graphics.OpCubicTo:
			seg.length += dist(cx, cy, op.X3, op.Y3)
			cx, cy = op.X3, op.Y3
			grow(cx, cy)
		case graphics.OpCurveTo1:
			seg.length += dist(cx, cy, op.X3, op.Y3)
			cx, cy = op.X3, op.Y3
			grow(cx, cy)
		case graphics.OpCurveTo:
			seg.length += dist(cx, cy, op.X3, op.Y3)
			cx, cy = op.X3, op.Y3
			grow(cx, cy)
		case graphics.OpRectangle:
			seg.length += 2 * (math.Abs(op.W) + math.Abs(op.H))
			grow(op.X, op.Y)
			grow(op.X+op.W, op.Y+op.H)
			cx, cy = op.X, op.Y
			sx, sy = op.X, op.Y
		case graphics.OpClosePath:
			seg.length += dist(cx, cy, sx, sy)
			cx, cy = sx, sy
		}
	}
	return seg
}

// borderLike reports whether the segment spans at least `keep` of the
// page size in either direction. Such segments are typically borders
// or separators, part of the layout rather than the content.
func borderLike(seg segment, keep, pageWidth, pageHeight float64) bool {
	if seg.maxX < seg.minX { // empty
		return false
	}
	return seg.maxX-seg.minX >= keep*pageWidth ||
		seg.maxY-seg.minY >= keep*pageHeight
}

// tweakSegment adds a Gaussian offset to every coordinate of the
// segment, with standard deviation max(MinTweak, PercentTweak×length).
// The starting point only moves when TweakStart is set, so connected
// figures keep their anchor.
func tweakSegment(src *Source, cfg config.Path, ops []graphics.Operation, seg segment) {
	sigma := cfg.PercentTweak * seg.length
	if sigma < cfg.MinTweak {
		sigma = cfg.MinTweak
	}
	t := func(v float64) float64 { return v + src.Normal(sigma) }

	for i := seg.start; i < seg.end; i++ {
		switch op := ops[i].(type) {
		case graphics.OpMoveTo:
			if i == seg.start && !cfg.TweakStart {
				continue
			}
			ops[i] = graphics.OpMoveTo{X: t(op.X), Y: t(op.Y)}
		case graphics.OpLineTo:
			ops[i] = graphics.OpLineTo{X: t(op.X), Y: t(op.Y)}
		case graphics.OpCubicTo:
			ops[i] = graphics.OpCubicTo{
				X1: t(op.X1), Y1: t(op.Y1),
				X2: t(op.X2), Y2: t(op.Y2),
				X3: t(op.X3), Y3: t(op.Y3),
			}
		case graphics.OpCurveTo1:
			ops[i] = graphics.OpCurveTo1{
				X2: t(op.X2), Y2: t(op.Y2),
				X3: t(op.X3), Y3: t(op.Y3),
			}
		case graphics.OpCurveTo:
			ops[i] = graphics.OpCurveTo{
				X1: t(op.X1), Y1: t(op.Y1),
				X3: t(op.X3), Y3: t(op.Y3),
			}
		case graphics.OpRectangle:
			x, y := op.X, op.Y
			if cfg.TweakStart || i != seg.start {
				x, y = t(x), t(y)
			}
			ops[i] = graphics.OpRectangle{X: x, Y: y, W: t(op.W), H: t(op.H)}
		}
	}
}
