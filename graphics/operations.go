package graphics

import (
	"bytes"
	"fmt"
)

// Operation is one command of a content stream, with its operands.
type Operation interface {
	// Add appends the operation to `out`.
	Add(out *bytes.Buffer)
}

// WriteOperations serializes the given operations, adding a newline
// between each.
func WriteOperations(ops ...Operation) []byte {
	var out bytes.Buffer
	for _, op := range ops {
		op.Add(&out)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// assert interface conformance
var _ = map[string]Operation{
	"m":  OpMoveTo{},
	"l":  OpLineTo{},
	"c":  OpCubicTo{},
	"v":  OpCurveTo1{},
	"y":  OpCurveTo{},
	"re": OpRectangle{},
	"h":  OpClosePath{},
	"W":  OpClip{},
	"Tf": OpSetFont{},
	"Tj": OpShowText{},
	"TJ": OpShowSpaceText{},
	"'":  OpMoveShowText{},
	"\"": OpMoveSetShowText{},
	"BI": OpInlineImage{},
	"":   OpRaw{},
}

// OpMoveTo begins a new subpath: `x y m`.
type OpMoveTo struct {
	X, Y Fl
}

func (o OpMoveTo) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g m", o.X, o.Y)
}

// OpLineTo appends a straight segment: `x y l`.
type OpLineTo struct {
	X, Y Fl
}

func (o OpLineTo) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g l", o.X, o.Y)
}

// OpCubicTo appends a cubic Bézier with both control points given:
// `x1 y1 x2 y2 x3 y3 c`.
type OpCubicTo struct {
	X1, Y1, X2, Y2, X3, Y3 Fl
}

func (o OpCubicTo) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g %g %g %g %g c", o.X1, o.Y1, o.X2, o.Y2, o.X3, o.Y3)
}

// OpCurveTo1 appends a cubic Bézier whose first control point is the
// current point: `x2 y2 x3 y3 v`.
type OpCurveTo1 struct {
	X2, Y2, X3, Y3 Fl
}

func (o OpCurveTo1) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g %g %g v", o.X2, o.Y2, o.X3, o.Y3)
}

// OpCurveTo appends a cubic Bézier whose second control point is the
// final point: `x1 y1 x3 y3 y`.
type OpCurveTo struct {
	X1, Y1, X3, Y3 Fl
}

func (o OpCurveTo) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g %g %g y", o.X1, o.Y1, o.X3, o.Y3)
}

// OpRectangle appends a complete rectangle subpath: `x y w h re`.
type OpRectangle struct {
	X, Y, W, H Fl
}

func (o OpRectangle) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g %g %g re", o.X, o.Y, o.W, o.H)
}

// OpClosePath closes the current subpath: `h`.
type OpClosePath struct{}

func (o OpClosePath) Add(out *bytes.Buffer) {
	out.WriteString("h")
}

// OpClip intersects the clipping path with the current path:
// `W` (nonzero winding) or `W*` (even-odd).
type OpClip struct {
	EvenOdd bool
}

func (o OpClip) Add(out *bytes.Buffer) {
	if o.EvenOdd {
		out.WriteString("W*")
	} else {
		out.WriteString("W")
	}
}

// OpSetFont selects the text font and size: `/font size Tf`.
type OpSetFont struct {
	Font Name
	Size Fl
}

func (o OpSetFont) Add(out *bytes.Buffer) {
	o.Font.write(out)
	fmt.Fprintf(out, " %g Tf", o.Size)
}

// OpShowText paints a string: `(text) Tj`.
type OpShowText struct {
	Text TextString
}

func (o OpShowText) Add(out *bytes.Buffer) {
	o.Text.write(out)
	out.WriteString(" Tj")
}

// OpShowSpaceText paints strings interleaved with kerning adjustments:
// `[...] TJ`. Items holds TextString and Number/Integer elements in
// their original order.
type OpShowSpaceText struct {
	Items Array
}

func (o OpShowSpaceText) Add(out *bytes.Buffer) {
	o.Items.write(out)
	out.WriteString(" TJ")
}

// OpMoveShowText moves to the next line and paints a string:
// `(text) '`.
type OpMoveShowText struct {
	Text TextString
}

func (o OpMoveShowText) Add(out *bytes.Buffer) {
	o.Text.write(out)
	out.WriteString(" '")
}

// OpMoveSetShowText sets the spacings, moves to the next line and
// paints a string: `aw ac (text) "`.
type OpMoveSetShowText struct {
	WordSpacing, CharacterSpacing Fl
	Text                          TextString
}

func (o OpMoveSetShowText) Add(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g %g ", o.WordSpacing, o.CharacterSpacing)
	o.Text.write(out)
	out.WriteString(` "`)
}

// OpInlineImage is a whole BI ... ID ... EI block, kept verbatim.
// Counts as a single operation.
type OpInlineImage struct {
	Raw []byte
}

func (o OpInlineImage) Add(out *bytes.Buffer) {
	out.Write(o.Raw)
}

// OpRaw is any other operation, emitted untouched: either an operator
// the mangler has no interest in, or one whose operands did not match
// the expected shape.
type OpRaw struct {
	Command  string
	Operands []Operand
}

func (o OpRaw) Add(out *bytes.Buffer) {
	for _, arg := range o.Operands {
		arg.write(out)
		out.WriteByte(' ')
	}
	out.WriteString(o.Command)
}
