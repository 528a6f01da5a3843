package mangle

import (
	"log"

	"github.com/benoitkugler/pdfmangle/graphics"
)

// pageState carries what the content walk needs from the enclosing
// page: its dimensions and the substitution pools of its fonts.
type pageState struct {
	fonts         map[graphics.Name]FontMap
	width, height float64
	src           *Source
}

// mangleContent walks one decoded content stream and rewrites text and
// path operands. The operator sequence is preserved exactly; when the
// stream cannot be tokenized it is returned unchanged.
func (m *Mangler) mangleContent(data []byte, page pageState) ([]byte, bool) {
	ops, err := graphics.ParseContent(data)
	if err != nil {
		log.Printf("unreadable content stream, kept unchanged: %s", err)
		return data, false
	}

	w := walker{Mangler: m, page: page, ops: ops, segStart: -1}
	w.walk()
	if !w.changed {
		return data, false
	}
	return graphics.WriteOperations(ops...), true
}

type walker struct {
	*Mangler
	page pageState
	ops  []graphics.Operation

	font graphics.Name // current font, set by Tf

	// segments of the path being constructed
	segStart int
	segments []segment
	clip     bool

	changed bool
}

func (w *walker) walk() {
	for i, op := range w.ops {
		switch op := op.(type) {
		case graphics.OpMoveTo, graphics.OpRectangle:
			// starts a new segment
			w.closeSegment(i)
			w.segStart = i
		case graphics.OpLineTo, graphics.OpCubicTo, graphics.OpCurveTo1,
			graphics.OpCurveTo, graphics.OpClosePath:
			if w.segStart == -1 { // stray construction op
				w.segStart = i
			}
		case graphics.OpClip:
			// applies to the whole path below the coming painting op
			w.closeSegment(i)
			w.clip = true
		case graphics.OpSetFont:
			w.font = op.Font
		case graphics.OpShowText:
			w.flushPath(i)
			if w.conf.Mangle.Text {
				op.Text.Bytes = w.replaceText(op.Text.Bytes)
				w.ops[i] = op
				w.changed = true
			}
		case graphics.OpMoveShowText:
			w.flushPath(i)
			if w.conf.Mangle.Text {
				op.Text.Bytes = w.replaceText(op.Text.Bytes)
				w.ops[i] = op
				w.changed = true
			}
		case graphics.OpMoveSetShowText:
			w.flushPath(i)
			if w.conf.Mangle.Text {
				op.Text.Bytes = w.replaceText(op.Text.Bytes)
				w.ops[i] = op
				w.changed = true
			}
		case graphics.OpShowSpaceText:
			w.flushPath(i)
			if w.conf.Mangle.Text {
				for j, item := range op.Items {
					if s, ok := item.(graphics.TextString); ok {
						s.Bytes = w.replaceText(s.Bytes)
						op.Items[j] = s
					}
				}
				w.changed = true
			}
		case graphics.OpInlineImage:
			w.flushPath(i)
			log.Printf("inline image kept unchanged (%d bytes)", len(op.Raw))
		default:
			// every other operator ends the current path: state
			// changes are not legal inside a path object, so this is
			// either a painting operator or recovery from a broken
			// stream
			w.flushPath(i)
		}
	}
	w.flushPath(len(w.ops))
}

// closeSegment ends the segment under construction, if any.
func (w *walker) closeSegment(i int) {
	if w.segStart == -1 {
		return
	}
	w.segments = append(w.segments, analyzeSegment(w.ops, w.segStart, i))
	w.segStart = -1
}

// flushPath perturbs and forgets the pending path segments.
func (w *walker) flushPath(i int) {
	w.closeSegment(i)
	segs := w.segments
	w.segments = w.segments[:0]
	clip := w.clip
	w.clip = false

	if !w.conf.Mangle.Paths {
		return
	}
	cfg := w.conf.Path
	for _, seg := range segs {
		if clip && cfg.ExcludeClip {
			continue
		}
		if borderLike(seg, cfg.PercentPageKeep, w.page.width, w.page.height) {
			continue
		}
		tweakSegment(w.page.src, cfg, w.ops, seg)
		w.changed = true
	}
}

// replaceText substitutes the bytes of a string operand using the
// pools of the current font.
func (w *walker) replaceText(b []byte) []byte {
	return ReplaceBytes(w.page.src, b, w.page.fonts[w.font])
}
