package mangle

import (
	"encoding/hex"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// inertScript replaces JavaScript actions: same trigger, no behavior.
const inertScript = `app.alert("script removed");`

// decodeString returns the text of a string object, handling both
// literal and hexadecimal spellings, and both PDFDoc and UTF-16BE
// encodings.
func (m *Mangler) decodeString(o pdfcpu.Object) (string, bool) {
	var b []byte
	switch o := m.resolve(o).(type) {
	case pdfcpu.StringLiteral:
		var err error
		b, err = pdfcpu.Unescape(o.Value())
		if err != nil {
			log.Printf("error unescaping string literal %s: %s", o.Value(), err)
			return "", false
		}
	case pdfcpu.HexLiteral:
		var err error
		b, err = hex.DecodeString(o.Value())
		if err != nil {
			return "", false
		}
	default:
		return "", false
	}
	if pdfcpu.IsUTF16BE(b) {
		out, err := pdfcpu.DecodeUTF16String(string(b))
		if err != nil {
			log.Printf("error decoding UTF16 string: %s", err)
			return "", false
		}
		return out, true
	}
	// PDFDoc encoding differs from Latin-1 only in a handful of
	// codes, none of which matters for class-preserving replacement
	out := make([]rune, len(b))
	for i, by := range b {
		out[i] = charmap.ISO8859_1.DecodeByte(by)
	}
	return string(out), true
}

// encodeString builds a string object spelling out `s`, as a hex
// literal: those need no escaping.
func encodeString(s string) pdfcpu.Object {
	simple := true
	for _, r := range s {
		if r > 0xff {
			simple = false
			break
		}
	}
	var b []byte
	if simple {
		b = make([]byte, 0, len(s))
		for _, r := range s {
			by, _ := charmap.ISO8859_1.EncodeRune(r)
			b = append(b, by)
		}
	} else {
		var err error
		b, err = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
		if err != nil {
			log.Printf("error encoding UTF16 string: %s", err)
			return pdfcpu.HexLiteral("")
		}
	}
	return pdfcpu.HexLiteral(hex.EncodeToString(b))
}

// replaceStringEntry randomizes the string value of dict[key], if any,
// preserving the character classes.
func (m *Mangler) replaceStringEntry(dict pdfcpu.Dict, key string, src *Source) {
	o, present := dict[key]
	if !present {
		return
	}
	s, ok := m.decodeString(o)
	if !ok {
		return
	}
	mangled := ReplaceString(src, s, Latin)
	if ref, isRef := o.(pdfcpu.IndirectRef); isRef {
		if entry, found := m.xref.Table[ref.ObjectNumber.Value()]; found {
			entry.Object = encodeString(mangled)
			return
		}
	}
	dict[key] = encodeString(mangled)
}

// mangleOutlines randomizes every outline title, walking the
// First/Next tree.
func (m *Mangler) mangleOutlines(catalog pdfcpu.Dict, src *Source) {
	outlines, ok := m.resolve(catalog["Outlines"]).(pdfcpu.Dict)
	if !ok {
		return
	}
	seen := map[int]bool{}
	m.mangleOutlineList(outlines["First"], seen, src)
}

func (m *Mangler) mangleOutlineList(first pdfcpu.Object, seen map[int]bool, src *Source) {
	for item := first; item != nil; {
		if ref, ok := item.(pdfcpu.IndirectRef); ok {
			n := ref.ObjectNumber.Value()
			if seen[n] { // malformed loop
				return
			}
			seen[n] = true
		}
		dict, ok := m.resolve(item).(pdfcpu.Dict)
		if !ok {
			return
		}
		m.replaceStringEntry(dict, "Title", src)
		m.mangleOutlineList(dict["First"], seen, src)
		item = dict["Next"]
	}
}

// mangleOCGs randomizes the names of optional content groups, both on
// the groups themselves and in the default configuration display tree.
func (m *Mangler) mangleOCGs(catalog pdfcpu.Dict, src *Source) {
	props, ok := m.resolve(catalog["OCProperties"]).(pdfcpu.Dict)
	if !ok {
		return
	}
	if ocgs, ok := m.resolve(props["OCGs"]).(pdfcpu.Array); ok {
		for _, o := range ocgs {
			if dict, ok := m.resolve(o).(pdfcpu.Dict); ok {
				m.replaceStringEntry(dict, "Name", src)
			}
		}
	}
	if d, ok := m.resolve(props["D"]).(pdfcpu.Dict); ok {
		if order, ok := m.resolve(d["Order"]).(pdfcpu.Array); ok {
			m.mangleOrderArray(order, src)
		}
	}
}

// mangleOrderArray handles the nested Order arrays, where plain
// strings label groups of OCGs.
func (m *Mangler) mangleOrderArray(order pdfcpu.Array, src *Source) {
	for i, item := range order {
		switch item := item.(type) {
		case pdfcpu.StringLiteral, pdfcpu.HexLiteral:
			if s, ok := m.decodeString(item); ok {
				order[i] = encodeString(ReplaceString(src, s, Latin))
			}
		case pdfcpu.Array:
			m.mangleOrderArray(item, src)
		default:
			if sub, ok := m.resolve(item).(pdfcpu.Array); ok {
				m.mangleOrderArray(sub, src)
			}
			// OCG references are handled through OCGs
		}
	}
}

// replaceJavaScript neutralizes the JS entry of an action dictionary.
// The script may be a string or a stream; either way the reference
// structure is kept and only the code is replaced.
func (m *Mangler) replaceJavaScript(action pdfcpu.Dict) {
	switch js := m.resolve(action["JS"]).(type) {
	case pdfcpu.StringLiteral, pdfcpu.HexLiteral:
		target := encodeString(inertScript)
		if ref, ok := action["JS"].(pdfcpu.IndirectRef); ok {
			if entry, found := m.xref.Table[ref.ObjectNumber.Value()]; found {
				entry.Object = target
				return
			}
		}
		action["JS"] = target
	case pdfcpu.StreamDict:
		if err := m.setStreamContent(&js, []byte(inertScript)); err != nil {
			log.Printf("replacing JavaScript stream: %s", err)
			return
		}
		m.writeBack(action, "JS", js)
	}
}

// text annotation entries holding free text, per annotation type
var annotTextKeys = []string{"T", "Contents", "RC", "Subj", "CA", "AC"}

// mangleAnnotations randomizes the textual payload of the page
// annotations, and the target of link annotations.
func (m *Mangler) mangleAnnotations(page pdfcpu.Dict, src *Source) {
	annots, ok := m.resolve(page["Annots"]).(pdfcpu.Array)
	if !ok {
		return
	}
	for _, o := range annots {
		annot, ok := m.resolve(o).(pdfcpu.Dict)
		if !ok {
			continue
		}
		subtype, _ := m.resolve(annot["Subtype"]).(pdfcpu.Name)
		if subtype == "Link" {
			if action, ok := m.resolve(annot["A"]).(pdfcpu.Dict); ok {
				m.replaceStringEntry(action, "URI", src)
			}
			m.replaceStringEntry(annot, "Dest", src)
			continue
		}
		for _, key := range annotTextKeys {
			m.replaceStringEntry(annot, key, src)
		}
	}
}
