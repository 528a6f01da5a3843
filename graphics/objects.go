// Package graphics models the operators and operands of PDF content
// streams, with a parser and a writer which round-trip the operator
// sequence exactly. The operand model is deliberately small: operators
// the mangler rewrites get typed variants, everything else is kept as
// an opaque run of operands.
package graphics

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fl is the numeric type of coordinates and operands.
type Fl = float64

// Operand is an object appearing before a command in a content stream.
type Operand interface {
	write(out *bytes.Buffer)
}

// Integer is an integral number operand.
type Integer int

func (i Integer) write(out *bytes.Buffer) {
	fmt.Fprintf(out, "%d", int(i))
}

// Number is a real number operand.
type Number Fl

func (n Number) write(out *bytes.Buffer) {
	fmt.Fprintf(out, "%g", Fl(n))
}

// Name is a name operand, stored without the leading slash.
type Name string

func (n Name) write(out *bytes.Buffer) {
	out.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if isNameRegular(c) {
			out.WriteByte(c)
		} else {
			fmt.Fprintf(out, "#%02X", c)
		}
	}
}

func isNameRegular(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32: // whitespace
		return false
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return false
	}
	return 0x21 <= c && c <= 0x7e
}

// TextString is a string operand, already unescaped. Hex records the
// original spelling so round-trips keep the same flavour.
type TextString struct {
	Bytes []byte
	Hex   bool
}

func (s TextString) write(out *bytes.Buffer) {
	if s.Hex {
		out.WriteByte('<')
		out.WriteString(hex.EncodeToString(s.Bytes))
		out.WriteByte('>')
		return
	}
	out.WriteByte('(')
	out.Write(EscapeString(s.Bytes))
	out.WriteByte(')')
}

// EscapeString escapes a byte string for inclusion in a literal
// string object, without the enclosing parentheses.
func EscapeString(s []byte) []byte {
	var out bytes.Buffer
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteByte(c)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		case '\b':
			out.WriteString(`\b`)
		case '\f':
			out.WriteString(`\f`)
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}

// Bool is a boolean operand.
type Bool bool

func (b Bool) write(out *bytes.Buffer) {
	if b {
		out.WriteString("true")
	} else {
		out.WriteString("false")
	}
}

// Null is the null object.
type Null struct{}

func (Null) write(out *bytes.Buffer) { out.WriteString("null") }

// Array is an array operand, as in TJ arguments.
type Array []Operand

func (a Array) write(out *bytes.Buffer) {
	out.WriteByte('[')
	for i, item := range a {
		if i > 0 {
			out.WriteByte(' ')
		}
		item.write(out)
	}
	out.WriteByte(']')
}

// Dict is a dictionary operand, as in gs or BDC arguments.
type Dict map[Name]Operand

func (d Dict) write(out *bytes.Buffer) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out.WriteString("<<")
	for _, k := range keys {
		Name(k).write(out)
		out.WriteByte(' ')
		d[Name(k)].write(out)
	}
	out.WriteString(">>")
}
