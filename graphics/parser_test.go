package graphics

import (
	"bytes"
	"testing"
)

const sample = `q
0.5 0 0 0.5 0 0 cm
BT
/F1 12 Tf
(Hello, World! 123) Tj
[(kern) -120 (ing)] TJ
ET
72 72 m
144 72 l
100 100 150 150 200 100 c
h
W n
10 10 100 50 re
f
Q`

func TestParseContent(t *testing.T) {
	ops, err := ParseContent([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 16 {
		t.Fatalf("expected 16 operations, got %d: %v", len(ops), ops)
	}

	if op, ok := ops[3].(OpSetFont); !ok || op.Font != "F1" || op.Size != 12 {
		t.Fatalf("unexpected Tf: %v", ops[3])
	}
	if op, ok := ops[4].(OpShowText); !ok || string(op.Text.Bytes) != "Hello, World! 123" {
		t.Fatalf("unexpected Tj: %v", ops[4])
	}
	if op, ok := ops[5].(OpShowSpaceText); !ok || len(op.Items) != 3 {
		t.Fatalf("unexpected TJ: %v", ops[5])
	}
	if op, ok := ops[7].(OpMoveTo); !ok || op.X != 72 || op.Y != 72 {
		t.Fatalf("unexpected m: %v", ops[7])
	}
	if op, ok := ops[9].(OpCubicTo); !ok || op.X3 != 200 {
		t.Fatalf("unexpected c: %v", ops[9])
	}
	if _, ok := ops[10].(OpClosePath); !ok {
		t.Fatalf("unexpected h: %v", ops[10])
	}
	if op, ok := ops[11].(OpClip); !ok || op.EvenOdd {
		t.Fatalf("unexpected W: %v", ops[11])
	}
	if op, ok := ops[13].(OpRectangle); !ok || op.W != 100 || op.H != 50 {
		t.Fatalf("unexpected re: %v", ops[13])
	}
	// untouched operators survive as raw commands
	if op, ok := ops[0].(OpRaw); !ok || op.Command != "q" {
		t.Fatalf("unexpected q: %v", ops[0])
	}
	if op, ok := ops[1].(OpRaw); !ok || op.Command != "cm" || len(op.Operands) != 6 {
		t.Fatalf("unexpected cm: %v", ops[1])
	}
}

func TestRoundTrip(t *testing.T) {
	ops, err := ParseContent([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	encoded := WriteOperations(ops...)
	ops2, err := ParseContent(encoded)
	if err != nil {
		t.Fatalf("re-parsing %q: %s", encoded, err)
	}
	if len(ops2) != len(ops) {
		t.Fatalf("operation count changed: %d != %d", len(ops2), len(ops))
	}
	// a second encoding must be stable
	if !bytes.Equal(encoded, WriteOperations(ops2...)) {
		t.Fatalf("unstable encoding: %q", encoded)
	}
}

func TestMalformedOperands(t *testing.T) {
	// a string operand where numbers are expected: the operator is
	// kept verbatim instead of being dropped
	ops, err := ParseContent([]byte("(lost) 12 m 5 6 l"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %v", ops)
	}
	raw, ok := ops[0].(OpRaw)
	if !ok || raw.Command != "m" || len(raw.Operands) != 2 {
		t.Fatalf("unexpected recovery: %v", ops[0])
	}
	out := WriteOperations(ops...)
	if string(out) != "(lost) 12 m\n5 6 l\n" {
		t.Fatalf("unexpected encoding %q", out)
	}
}

func TestInlineImage(t *testing.T) {
	content := []byte("q\nBI /W 2 /H 2 /BPC 8 /CS /G ID \x00\x01\xfe\xff EI\nQ")
	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 operations, got %v", ops)
	}
	img, ok := ops[1].(OpInlineImage)
	if !ok {
		t.Fatalf("unexpected operation %v", ops[1])
	}
	if !bytes.Contains(img.Raw, []byte{0x00, 0x01, 0xfe, 0xff}) {
		t.Fatalf("payload lost: %q", img.Raw)
	}
	if !bytes.HasPrefix(img.Raw, []byte("BI")) || !bytes.HasSuffix(img.Raw, []byte("EI")) {
		t.Fatalf("invalid block: %q", img.Raw)
	}

	// the block must survive a round trip
	ops2, err := ParseContent(WriteOperations(ops...))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops2) != 3 {
		t.Fatalf("expected 3 operations after round trip, got %v", ops2)
	}
}

func TestStringEscapes(t *testing.T) {
	ops, err := ParseContent([]byte(`(with \(escaped\) parens and \\ slash) Tj <48656C6C6F> Tj`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %v", ops)
	}
	if got := string(ops[0].(OpShowText).Text.Bytes); got != `with (escaped) parens and \ slash` {
		t.Fatalf("unexpected unescaping %q", got)
	}
	hexOp := ops[1].(OpShowText)
	if got := string(hexOp.Text.Bytes); got != "Hello" || !hexOp.Text.Hex {
		t.Fatalf("unexpected hex string %q", got)
	}

	encoded := WriteOperations(ops...)
	ops2, err := ParseContent(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(ops2[0].(OpShowText).Text.Bytes); got != `with (escaped) parens and \ slash` {
		t.Fatalf("string broken by round trip: %q", got)
	}
}
