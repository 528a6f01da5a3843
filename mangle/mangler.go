package mangle

import (
	"crypto/md5"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/benoitkugler/pdfmangle/config"
	"github.com/benoitkugler/pdfmangle/graphics"
)

// Mangler anonymizes one document. It owns the decoded object graph
// and mutates it in place: objects are never added or removed, so the
// written file has the same structure as the input.
type Mangler struct {
	ctx  *pdfcpu.Context
	xref *pdfcpu.XRefTable
	conf config.Config
	src  *Source

	visitedForms map[int]bool
}

// New reads the document and prepares a mangler. The source `src`
// fixes the randomness of the whole run.
func New(rs io.ReadSeeker, conf config.Config, src *Source) (*Mangler, error) {
	pdfConfig := pdfcpu.NewDefaultConfiguration()
	pdfConfig.DecodeAllStreams = true

	ctx, err := pdfcpu.Read(rs, pdfConfig)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	return &Mangler{
		ctx:          ctx,
		xref:         ctx.XRefTable,
		conf:         conf,
		src:          src,
		visitedForms: map[int]bool{},
	}, nil
}

// NewFromFile is a convenience wrapper around New.
func NewFromFile(filename string, conf config.Config, src *Source) (*Mangler, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return New(f, conf, src)
}

// resolve replaces an indirect reference by the object it points to.
func (m *Mangler) resolve(o pdfcpu.Object) pdfcpu.Object {
	// despite the signature, Dereference always returns a nil error
	out, _ := m.xref.Dereference(o)
	return out
}

func (m *Mangler) resolveInt(o pdfcpu.Object) (int, bool) {
	switch o := m.resolve(o).(type) {
	case pdfcpu.Integer:
		return o.Value(), true
	case pdfcpu.Float:
		return int(o.Value()), true
	}
	return 0, false
}

func errType(label string, o pdfcpu.Object) error {
	return fmt.Errorf("unexpected type for %s: %T", label, o)
}

// Mangle applies every enabled pass, in place.
func (m *Mangler) Mangle() error {
	if m.conf.Mangle.Metadata {
		m.stripMetadata()
	}
	m.mangleRoot()
	m.mangleObjects()

	pages, err := m.collectPages()
	if err != nil {
		return err
	}
	for i, page := range pages {
		m.manglePage(i, page)
	}
	return nil
}

// mangleRoot handles the document level resources hanging off the
// catalog.
func (m *Mangler) mangleRoot() {
	catalog, err := m.xref.Catalog()
	if err != nil {
		log.Printf("no document catalog: %s", err)
		return
	}
	if m.conf.Mangle.Outlines {
		m.mangleOutlines(catalog, m.src)
	}
	if m.conf.Mangle.OCGNames {
		m.mangleOCGs(catalog, m.src)
	}
}

// mangleObjects scans the whole object table for the targets which
// are reachable from many places: JavaScript actions and image
// XObjects (including soft masks).
func (m *Mangler) mangleObjects() {
	numbers := make([]int, 0, len(m.xref.Table))
	for n := range m.xref.Table {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers) // deterministic order

	for _, n := range numbers {
		entry := m.xref.Table[n]
		if entry == nil || entry.Free {
			continue
		}
		switch o := entry.Object.(type) {
		case pdfcpu.Dict:
			if m.conf.Mangle.JavaScript && o["JS"] != nil {
				m.replaceJavaScript(o)
			}
		case pdfcpu.StreamDict:
			subtype, _ := o.Dict["Subtype"].(pdfcpu.Name)
			if m.conf.Mangle.Images && subtype == "Image" {
				if err := m.mangleImage(&o); err != nil {
					log.Printf("object %d: image kept unchanged: %s", n, err)
					continue
				}
				entry.Object = o
			}
		}
	}
}

// page is a leaf of the page tree, with its inherited attributes
// already applied.
type page struct {
	dict          pdfcpu.Dict
	resources     pdfcpu.Dict
	width, height float64
}

// collectPages walks the page tree, carrying the inheritable
// Resources and MediaBox attributes down to the leaves.
func (m *Mangler) collectPages() ([]page, error) {
	catalog, err := m.xref.Catalog()
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	root, ok := m.resolve(catalog["Pages"]).(pdfcpu.Dict)
	if !ok {
		return nil, errType("Pages", catalog["Pages"])
	}
	var out []page
	m.appendPageNode(root, nil, nil, &out)
	return out, nil
}

func (m *Mangler) appendPageNode(node pdfcpu.Dict, resources pdfcpu.Dict, mediaBox pdfcpu.Array, out *[]page) {
	if res, ok := m.resolve(node["Resources"]).(pdfcpu.Dict); ok {
		resources = res
	}
	if mb, ok := m.resolve(node["MediaBox"]).(pdfcpu.Array); ok {
		mediaBox = mb
	}

	kind, _ := m.resolve(node["Type"]).(pdfcpu.Name)
	if kind == "Page" {
		w, h := m.pageDims(node, mediaBox)
		*out = append(*out, page{dict: node, resources: resources, width: w, height: h})
		return
	}

	kids, _ := m.resolve(node["Kids"]).(pdfcpu.Array)
	for _, kid := range kids {
		child, ok := m.resolve(kid).(pdfcpu.Dict)
		if !ok {
			log.Printf("invalid page tree node: %v", kid)
			continue
		}
		m.appendPageNode(child, resources, mediaBox, out)
	}
}

// pageDims returns the page extent as the smallest width and height
// over its box entries, so that the border detection uses the visible
// area rather than an oversized media box.
func (m *Mangler) pageDims(pageDict pdfcpu.Dict, inherited pdfcpu.Array) (float64, float64) {
	// US Letter, the historical default
	width, height := 612., 792.

	boxes := []pdfcpu.Object{inherited}
	for _, key := range []string{"MediaBox", "CropBox", "BleedBox", "TrimBox", "ArtBox"} {
		boxes = append(boxes, pageDict[key])
	}
	first := true
	for _, box := range boxes {
		rect, ok := m.resolve(box).(pdfcpu.Array)
		if !ok || len(rect) != 4 {
			continue
		}
		coords := make([]float64, 4)
		valid := true
		for i, o := range rect {
			switch v := m.resolve(o).(type) {
			case pdfcpu.Integer:
				coords[i] = float64(v.Value())
			case pdfcpu.Float:
				coords[i] = v.Value()
			default:
				valid = false
			}
		}
		if !valid {
			continue
		}
		w := coords[2] - coords[0]
		h := coords[3] - coords[1]
		if w <= 0 || h <= 0 {
			continue
		}
		if first || w < width {
			width = w
		}
		if first || h < height {
			height = h
		}
		first = false
	}
	return width, height
}

// manglePage runs the content walk and the page-level reference
// cleanup. Failures are logged and leave the page unchanged: one
// broken page should not lose the work on the others.
func (m *Mangler) manglePage(index int, p page) {
	src := m.src.ForPage(index)

	if m.conf.Mangle.Content {
		state := pageState{
			fonts:  m.pageFonts(p.resources),
			width:  p.width,
			height: p.height,
			src:    src,
		}
		m.mangleContents(p.dict, state)
		m.mangleFormXObjects(p.resources, state)
	}

	if m.conf.Mangle.Thumbnails {
		delete(p.dict, "Thumb")
	}
	if m.conf.Mangle.Metadata {
		delete(p.dict, "PieceInfo")
		delete(p.dict, "Metadata")
	}
	if m.conf.Mangle.Annotations {
		m.mangleAnnotations(p.dict, src)
	}
}

// mangleContents rewrites the content stream(s) of a page. A split
// stream array is parsed as a whole, since operators may span the
// parts: the result goes to the first stream and the others are
// emptied, keeping every object in place. No operator is lost in the
// move: the page still paints the same sequence, only the split
// points between its streams change.
func (m *Mangler) mangleContents(pageDict pdfcpu.Dict, state pageState) {
	switch contents := m.resolve(pageDict["Contents"]).(type) {
	case pdfcpu.StreamDict:
		data, err := m.decodedStream(&contents)
		if err != nil {
			log.Printf("unreadable page contents: %s", err)
			return
		}
		out, changed := m.mangleContent(data, state)
		if !changed {
			return
		}
		if err := m.setStreamContent(&contents, out); err != nil {
			log.Printf("rewriting page contents: %s", err)
			return
		}
		m.writeBack(pageDict, "Contents", contents)

	case pdfcpu.Array:
		var whole []byte
		streams := make([]pdfcpu.StreamDict, 0, len(contents))
		refs := make([]pdfcpu.Object, 0, len(contents))
		for _, o := range contents {
			sd, ok := m.resolve(o).(pdfcpu.StreamDict)
			if !ok {
				log.Printf("invalid Contents element: %v", o)
				return
			}
			data, err := m.decodedStream(&sd)
			if err != nil {
				log.Printf("unreadable page contents: %s", err)
				return
			}
			// the parts are glued with a separator: PDF specifies
			// stream boundaries count as token boundaries
			whole = append(whole, data...)
			whole = append(whole, '\n')
			streams = append(streams, sd)
			refs = append(refs, o)
		}
		out, changed := m.mangleContent(whole, state)
		if !changed {
			return
		}
		for i := range streams {
			content := []byte(nil)
			if i == 0 {
				content = out
			}
			if err := m.setStreamContent(&streams[i], content); err != nil {
				log.Printf("rewriting page contents: %s", err)
				return
			}
			if ref, ok := refs[i].(pdfcpu.IndirectRef); ok {
				if entry, found := m.xref.Table[ref.ObjectNumber.Value()]; found {
					entry.Object = streams[i]
				}
			}
		}
	}
}

// mangleFormXObjects recurses into the form XObjects of a resource
// dictionary, whose streams hold content like the page itself.
func (m *Mangler) mangleFormXObjects(resources pdfcpu.Dict, state pageState) {
	xobjects, ok := m.resolve(resources["XObject"]).(pdfcpu.Dict)
	if !ok {
		return
	}
	for name, o := range xobjects {
		ref, isRef := o.(pdfcpu.IndirectRef)
		if isRef {
			n := ref.ObjectNumber.Value()
			if m.visitedForms[n] { // shared or recursive forms
				continue
			}
			m.visitedForms[n] = true
		}
		sd, ok := m.resolve(o).(pdfcpu.StreamDict)
		if !ok {
			continue
		}
		subtype, _ := sd.Dict["Subtype"].(pdfcpu.Name)
		if subtype != "Form" {
			continue
		}

		inner := state
		if res, ok := m.resolve(sd.Dict["Resources"]).(pdfcpu.Dict); ok {
			inner.fonts = m.pageFonts(res)
			m.mangleFormXObjects(res, inner)
		}

		data, err := m.decodedStream(&sd)
		if err != nil {
			log.Printf("unreadable form XObject %s: %s", name, err)
			continue
		}
		out, changed := m.mangleContent(data, inner)
		if !changed {
			continue
		}
		if err := m.setStreamContent(&sd, out); err != nil {
			log.Printf("rewriting form XObject %s: %s", name, err)
			continue
		}
		m.writeBack(xobjects, name, sd)
	}
}

// pageFonts builds the substitution pools of the fonts of a resource
// dictionary, from the font descriptor character set when present, or
// the character code range of simple fonts.
func (m *Mangler) pageFonts(resources pdfcpu.Dict) map[graphics.Name]FontMap {
	out := map[graphics.Name]FontMap{}
	fonts, ok := m.resolve(resources["Font"]).(pdfcpu.Dict)
	if !ok {
		return out
	}
	for name, o := range fonts {
		font, ok := m.resolve(o).(pdfcpu.Dict)
		if !ok {
			continue
		}
		out[graphics.Name(name)] = m.fontMap(font)
	}
	return out
}

func (m *Mangler) fontMap(font pdfcpu.Dict) FontMap {
	if desc, ok := m.resolve(font["FontDescriptor"]).(pdfcpu.Dict); ok {
		if s, ok := m.decodeString(desc["CharSet"]); ok && s != "" {
			return MapCharSet(s)
		}
	}
	first, ok1 := m.resolveInt(font["FirstChar"])
	last, ok2 := m.resolveInt(font["LastChar"])
	if ok1 && ok2 && first <= last {
		return MapCodeRange(first, last)
	}
	return Latin
}

// HashName returns a name for the output derived from the mangled
// content streams, handy to anonymize the file name as well.
func (m *Mangler) HashName() string {
	h := md5.New()
	pages, err := m.collectPages()
	if err != nil {
		return "mangled"
	}
	for _, p := range pages {
		switch contents := m.resolve(p.dict["Contents"]).(type) {
		case pdfcpu.StreamDict:
			h.Write(contents.Raw)
		case pdfcpu.Array:
			for _, o := range contents {
				if sd, ok := m.resolve(o).(pdfcpu.StreamDict); ok {
					h.Write(sd.Raw)
				}
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Write serializes the mangled document.
func (m *Mangler) Write(w io.Writer) error {
	if err := api.WriteContext(m.ctx, w); err != nil {
		return fmt.Errorf("writing PDF: %w", err)
	}
	return nil
}

// WriteFile writes the document through a temporary file, so a failed
// run leaves no partial output behind.
func (m *Mangler) WriteFile(filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".pdfmangle-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := m.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
