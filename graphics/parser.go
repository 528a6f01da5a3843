package graphics

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	tok "github.com/benoitkugler/pstokenizer"
)

// ParseContent parses a decoded content stream into its operations.
// Commands with unexpected operands are kept as OpRaw (and logged), so
// that re-encoding the returned slice preserves the operator sequence;
// a non-nil error is only returned when the token stream itself is
// unreadable.
func ParseContent(content []byte) ([]Operation, error) {
	pr := parser{tokens: tok.NewTokenizer(content)}
	var out []Operation
	for {
		if pr.tokens.IsEOF() {
			return out, nil
		}
		op, err := pr.parseOperation()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
}

type parser struct {
	tokens *tok.Tokenizer
	stack  []Operand
}

// parseOperation accumulates operands until a command is found.
func (pr *parser) parseOperation() (Operation, error) {
	for {
		if pr.tokens.IsEOF() {
			return nil, errors.New("unexpected end of content stream")
		}
		obj, cmd, err := pr.parseObject()
		if err != nil {
			return nil, err
		}
		if cmd == "" {
			pr.stack = append(pr.stack, obj)
			continue
		}

		var op Operation
		if cmd == "BI" {
			op, err = pr.parseInlineImage()
			if err != nil {
				return nil, err
			}
		} else {
			op = buildOperation(cmd, pr.stack)
		}
		pr.stack = pr.stack[:0] // keep the capacity
		return op, nil
	}
}

// parseObject reads one operand, or a command (returned as `cmd`).
func (pr *parser) parseObject() (Operand, string, error) {
	tk, err := pr.tokens.NextToken()
	if err != nil {
		return nil, "", err
	}
	switch tk.Kind {
	case tok.EOF:
		return nil, "", errors.New("unexpected EOF in content stream")
	case tok.Integer:
		v, err := tk.Int()
		return Integer(v), "", err
	case tok.Float:
		v, err := tk.Float()
		return Number(v), "", err
	case tok.Name:
		return Name(tk.Value), "", nil
	case tok.String:
		return TextString{Bytes: []byte(string(tk.Value))}, "", nil
	case tok.StringHex:
		return TextString{Bytes: []byte(string(tk.Value)), Hex: true}, "", nil
	case tok.StartArray:
		arr, err := pr.parseArray()
		return arr, "", err
	case tok.StartDic:
		dict, err := pr.parseDict()
		return dict, "", err
	case tok.EndArray, tok.EndDic:
		return nil, "", errors.New("unexpected end of container")
	case tok.Other:
		switch v := string(tk.Value); v {
		case "true":
			return Bool(true), "", nil
		case "false":
			return Bool(false), "", nil
		case "null":
			return Null{}, "", nil
		default:
			return nil, v, nil
		}
	default:
		return nil, "", fmt.Errorf("unexpected token %v in content stream", tk)
	}
}

func (pr *parser) parseArray() (Array, error) {
	var out Array
	for {
		next, err := pr.tokens.PeekToken()
		if err != nil {
			return nil, err
		}
		switch next.Kind {
		case tok.EOF:
			return nil, errors.New("unterminated array")
		case tok.EndArray:
			_, _ = pr.tokens.NextToken() // consume it
			return out, nil
		}
		obj, cmd, err := pr.parseObject()
		if err != nil {
			return nil, err
		}
		if cmd != "" {
			return nil, fmt.Errorf("unexpected command %s in array", cmd)
		}
		out = append(out, obj)
	}
}

func (pr *parser) parseDict() (Dict, error) {
	out := Dict{}
	for {
		next, err := pr.tokens.PeekToken()
		if err != nil {
			return nil, err
		}
		switch next.Kind {
		case tok.EOF:
			return nil, errors.New("unterminated dictionary")
		case tok.EndDic:
			_, _ = pr.tokens.NextToken() // consume it
			return out, nil
		case tok.Name:
			_, _ = pr.tokens.NextToken()
			key := Name(next.Value)
			value, cmd, err := pr.parseObject()
			if err != nil {
				return nil, err
			}
			if cmd != "" {
				return nil, fmt.Errorf("unexpected command %s in dictionary", cmd)
			}
			out[key] = value
		default:
			return nil, fmt.Errorf("unexpected token %v in dictionary", next)
		}
	}
}

// parseInlineImage captures a whole BI ... ID ... EI block verbatim.
// The BI command has already been consumed. The binary payload is
// found by scanning for a whitespace-delimited EI marker: this is how
// most real-world writers terminate unfiltered data as well.
func (pr *parser) parseInlineImage() (OpInlineImage, error) {
	var buf bytes.Buffer
	buf.WriteString("BI")
	for {
		if pr.tokens.IsEOF() {
			// the tokenizer stops after the ID command
			break
		}
		obj, cmd, err := pr.parseObject()
		if err != nil {
			return OpInlineImage{}, err
		}
		if cmd == "ID" {
			break
		}
		if cmd != "" {
			return OpInlineImage{}, fmt.Errorf("unexpected command %s in inline image dictionary", cmd)
		}
		buf.WriteByte(' ')
		obj.write(&buf)
	}
	buf.WriteString(" ID")

	// binary data, including the single whitespace after ID
	rest := pr.tokens.Bytes()
	end := indexEI(rest)
	if end == -1 {
		return OpInlineImage{}, errors.New("unterminated inline image data")
	}
	buf.Write(pr.tokens.SkipBytes(end + 2))
	return OpInlineImage{Raw: buf.Bytes()}, nil
}

// indexEI returns the offset of the first EI marker bounded by
// whitespace or EOF, or -1.
func indexEI(data []byte) int {
	for i := 1; i+1 < len(data); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		if !tok.IsAsciiWhitespace(data[i-1]) {
			continue
		}
		if i+2 == len(data) || tok.IsAsciiWhitespace(data[i+2]) {
			return i
		}
	}
	return -1
}

// buildOperation maps a command and its operands to a typed operation,
// falling back to a verbatim OpRaw when the operands do not have the
// expected shape.
func buildOperation(cmd string, stack []Operand) Operation {
	op, err := typedOperation(cmd, stack)
	if err != nil {
		log.Printf("content stream: command %s: %s (kept verbatim)", cmd, err)
		return rawOperation(cmd, stack)
	}
	return op
}

func rawOperation(cmd string, stack []Operand) OpRaw {
	ops := make([]Operand, len(stack))
	copy(ops, stack)
	return OpRaw{Command: cmd, Operands: ops}
}

var errOperands = errors.New("unexpected operands")

func typedOperation(cmd string, stack []Operand) (Operation, error) {
	switch cmd {
	case "m":
		nbs, ok := numberArgs(stack, 2)
		if !ok {
			return nil, errOperands
		}
		return OpMoveTo{X: nbs[0], Y: nbs[1]}, nil
	case "l":
		nbs, ok := numberArgs(stack, 2)
		if !ok {
			return nil, errOperands
		}
		return OpLineTo{X: nbs[0], Y: nbs[1]}, nil
	case "c":
		nbs, ok := numberArgs(stack, 6)
		if !ok {
			return nil, errOperands
		}
		return OpCubicTo{X1: nbs[0], Y1: nbs[1], X2: nbs[2], Y2: nbs[3], X3: nbs[4], Y3: nbs[5]}, nil
	case "v":
		nbs, ok := numberArgs(stack, 4)
		if !ok {
			return nil, errOperands
		}
		return OpCurveTo1{X2: nbs[0], Y2: nbs[1], X3: nbs[2], Y3: nbs[3]}, nil
	case "y":
		nbs, ok := numberArgs(stack, 4)
		if !ok {
			return nil, errOperands
		}
		return OpCurveTo{X1: nbs[0], Y1: nbs[1], X3: nbs[2], Y3: nbs[3]}, nil
	case "re":
		nbs, ok := numberArgs(stack, 4)
		if !ok {
			return nil, errOperands
		}
		return OpRectangle{X: nbs[0], Y: nbs[1], W: nbs[2], H: nbs[3]}, nil
	case "h":
		if len(stack) != 0 {
			return nil, errOperands
		}
		return OpClosePath{}, nil
	case "W", "W*":
		if len(stack) != 0 {
			return nil, errOperands
		}
		return OpClip{EvenOdd: cmd == "W*"}, nil
	case "Tf":
		if len(stack) != 2 {
			return nil, errOperands
		}
		font, ok := stack[0].(Name)
		if !ok {
			return nil, errOperands
		}
		size, ok := numberArg(stack[1])
		if !ok {
			return nil, errOperands
		}
		return OpSetFont{Font: font, Size: size}, nil
	case "Tj", "'":
		if len(stack) != 1 {
			return nil, errOperands
		}
		text, ok := stack[0].(TextString)
		if !ok {
			return nil, errOperands
		}
		if cmd == "'" {
			return OpMoveShowText{Text: text}, nil
		}
		return OpShowText{Text: text}, nil
	case `"`:
		if len(stack) != 3 {
			return nil, errOperands
		}
		aw, ok1 := numberArg(stack[0])
		ac, ok2 := numberArg(stack[1])
		text, ok3 := stack[2].(TextString)
		if !ok1 || !ok2 || !ok3 {
			return nil, errOperands
		}
		return OpMoveSetShowText{WordSpacing: aw, CharacterSpacing: ac, Text: text}, nil
	case "TJ":
		if len(stack) != 1 {
			return nil, errOperands
		}
		items, ok := stack[0].(Array)
		if !ok {
			return nil, errOperands
		}
		for _, item := range items {
			switch item.(type) {
			case TextString, Integer, Number:
			default:
				return nil, errOperands
			}
		}
		return OpShowSpaceText{Items: items}, nil
	default:
		return rawOperation(cmd, stack), nil
	}
}

func numberArg(arg Operand) (Fl, bool) {
	switch arg := arg.(type) {
	case Integer:
		return Fl(arg), true
	case Number:
		return Fl(arg), true
	}
	return 0, false
}

func numberArgs(stack []Operand, count int) ([]Fl, bool) {
	if len(stack) != count {
		return nil, false
	}
	out := make([]Fl, count)
	for i, arg := range stack {
		v, ok := numberArg(arg)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
