package mangle

import (
	"math"
	"testing"

	"github.com/benoitkugler/pdfmangle/config"
	"github.com/benoitkugler/pdfmangle/graphics"
)

func inchLine() []graphics.Operation {
	return []graphics.Operation{
		graphics.OpMoveTo{X: 72, Y: 72},
		graphics.OpLineTo{X: 144, Y: 72},
	}
}

func TestAnalyzeSegment(t *testing.T) {
	ops := inchLine()
	seg := analyzeSegment(ops, 0, len(ops))
	if seg.length != 72 {
		t.Fatalf("expected length 72, got %g", seg.length)
	}
	if seg.minX != 72 || seg.maxX != 144 || seg.minY != 72 || seg.maxY != 72 {
		t.Fatalf("unexpected bounding box %+v", seg)
	}

	rect := []graphics.Operation{graphics.OpRectangle{X: 10, Y: 20, W: 100, H: 50}}
	seg = analyzeSegment(rect, 0, 1)
	if seg.length != 300 {
		t.Fatalf("expected perimeter 300, got %g", seg.length)
	}
	if seg.maxX != 110 || seg.maxY != 70 {
		t.Fatalf("unexpected bounding box %+v", seg)
	}
}

// a one-inch line with the default settings: sigma is
// max(2, 0.25 x 72) = 18
func TestTweakSigmaBound(t *testing.T) {
	cfg := config.Default().Path
	const sigma = 18.0

	for seed := int64(0); seed < 200; seed++ {
		ops := inchLine()
		seg := analyzeSegment(ops, 0, len(ops))
		tweakSegment(NewSource(seed), cfg, ops, seg)

		start := ops[0].(graphics.OpMoveTo)
		if start.X != 72 || start.Y != 72 {
			t.Fatalf("seed %d: start point moved without tweak_start: %+v", seed, start)
		}
		end := ops[1].(graphics.OpLineTo)
		if math.Abs(end.X-144) > 6*sigma || math.Abs(end.Y-72) > 6*sigma {
			t.Fatalf("seed %d: offset beyond 6 sigma: %+v", seed, end)
		}
	}

	// with tweak_start, the anchor moves too (almost surely)
	cfg.TweakStart = true
	ops := inchLine()
	tweakSegment(NewSource(3), cfg, ops, analyzeSegment(ops, 0, len(ops)))
	if start := ops[0].(graphics.OpMoveTo); start.X == 72 && start.Y == 72 {
		t.Fatalf("start point not moved with tweak_start: %+v", start)
	}
}

func TestTweakZeroLengthUsesMinTweak(t *testing.T) {
	cfg := config.Path{PercentTweak: 0.25, MinTweak: 2}
	moved := false
	for seed := int64(0); seed < 50; seed++ {
		ops := []graphics.Operation{
			graphics.OpMoveTo{X: 10, Y: 10},
			graphics.OpLineTo{X: 10, Y: 10},
		}
		tweakSegment(NewSource(seed), cfg, ops, analyzeSegment(ops, 0, 2))
		end := ops[1].(graphics.OpLineTo)
		if math.Abs(end.X-10) > 6*2 || math.Abs(end.Y-10) > 6*2 {
			t.Fatalf("seed %d: offset beyond 6 x min_tweak: %+v", seed, end)
		}
		if end.X != 10 || end.Y != 10 {
			moved = true
		}
	}
	if !moved {
		t.Fatal("zero length segment never moved")
	}
}

func TestTweakIsDeterministic(t *testing.T) {
	cfg := config.Default().Path
	a, b := inchLine(), inchLine()
	tweakSegment(NewSource(99), cfg, a, analyzeSegment(a, 0, 2))
	tweakSegment(NewSource(99), cfg, b, analyzeSegment(b, 0, 2))
	if a[1] != b[1] {
		t.Fatalf("same seed, different tweaks: %v != %v", a[1], b[1])
	}
}

// a rectangle spanning 80% of a 612 wide page, with percent_page_keep
// at 0.75: treated as a border, never touched
func TestBorderLike(t *testing.T) {
	ops := []graphics.Operation{graphics.OpRectangle{X: 61, Y: 100, W: 0.8 * 612, H: 10}}
	seg := analyzeSegment(ops, 0, 1)
	if !borderLike(seg, 0.75, 612, 792) {
		t.Fatalf("80%% rectangle not detected as border: %+v", seg)
	}

	small := analyzeSegment(inchLine(), 0, 2)
	if borderLike(small, 0.75, 612, 792) {
		t.Fatalf("one-inch line detected as border: %+v", small)
	}

	// tall separators count through the vertical extent
	tall := []graphics.Operation{
		graphics.OpMoveTo{X: 300, Y: 10},
		graphics.OpLineTo{X: 300, Y: 780},
	}
	if !borderLike(analyzeSegment(tall, 0, 2), 0.75, 612, 792) {
		t.Fatal("vertical separator not detected as border")
	}
}
