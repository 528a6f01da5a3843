package mangle

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/benoitkugler/pdfmangle/config"
)

func TestBoxBlurFlattens(t *testing.T) {
	// a hard step: blurring must smooth the transition
	const w, h = 16, 4
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			data[y*w+x] = 255
		}
	}
	boxBlur(data, w, h, 1, 3)

	if data[0] == 0 && data[w-1] == 255 && data[w/2-1] == 0 {
		t.Fatalf("step not smoothed: %v", data[:w])
	}
	for x := 1; x < w; x++ {
		if data[x] < data[x-1] {
			t.Fatalf("blur not monotonic over a step: %v", data[:w])
		}
	}

	// uniform input stays uniform
	flat := bytes.Repeat([]byte{0x55}, w*h)
	boxBlur(flat, w, h, 1, 2)
	for i, v := range flat {
		if v != 0x55 {
			t.Fatalf("uniform input changed at %d: %d", i, v)
		}
	}
}

func TestBoxBlurInterleaved(t *testing.T) {
	// two components with distinct uniform values: no bleed between
	// channels
	const w, h, ncomp = 8, 8, 2
	data := make([]byte, w*h*ncomp)
	for i := 0; i < len(data); i += 2 {
		data[i], data[i+1] = 10, 200
	}
	boxBlur(data, w, h, ncomp, 2)
	for i := 0; i < len(data); i += 2 {
		if data[i] != 10 || data[i+1] != 200 {
			t.Fatalf("channels bled at %d: %d %d", i, data[i], data[i+1])
		}
	}
}

func TestBlurImageKeepsBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 37, 23))
	out := blurImage(img, 5)
	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
}

func newImageStream(t *testing.T, dict pdfcpu.Dict, raw []byte) pdfcpu.StreamDict {
	t.Helper()
	return pdfcpu.StreamDict{Dict: dict, Raw: raw}
}

func TestGreyFill(t *testing.T) {
	m := testMangler(config.Default())
	m.xref = &pdfcpu.XRefTable{}

	sd := newImageStream(t, pdfcpu.Dict{
		"Subtype":          pdfcpu.Name("Image"),
		"Width":            pdfcpu.Integer(10),
		"Height":           pdfcpu.Integer(4),
		"BitsPerComponent": pdfcpu.Integer(8),
		"ColorSpace":       pdfcpu.Name("DeviceRGB"),
	}, nil)

	if err := m.greyFill(&sd, 10, 4, 8, 3); err != nil {
		t.Fatal(err)
	}
	if len(sd.Content) != 10*4*3 {
		t.Fatalf("unexpected sample count %d", len(sd.Content))
	}
	for _, b := range sd.Content {
		if b != 0x80 {
			t.Fatalf("unexpected sample %d", b)
		}
	}
	// the dimensions are never touched
	if sd.Dict["Width"] != pdfcpu.Integer(10) || sd.Dict["ColorSpace"] != pdfcpu.Name("DeviceRGB") {
		t.Fatalf("image dictionary modified: %v", sd.Dict)
	}
	if sd.Dict["Filter"] != pdfcpu.Name("FlateDecode") {
		t.Fatalf("unexpected filter %v", sd.Dict["Filter"])
	}
}

func TestMangleImageJPEG(t *testing.T) {
	m := testMangler(config.Default())
	m.xref = &pdfcpu.XRefTable{}

	// a checkerboard, so the blur has sharp edges to destroy
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			i := src.PixOffset(x, y)
			v := byte(0x20)
			if (x/8+y/8)%2 == 0 {
				v = 0xe0
			}
			src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = v, v, v, 0xff
		}
	}
	var payload bytes.Buffer
	if err := jpeg.Encode(&payload, src, nil); err != nil {
		t.Fatal(err)
	}

	sd := newImageStream(t, pdfcpu.Dict{
		"Subtype":          pdfcpu.Name("Image"),
		"Width":            pdfcpu.Integer(32),
		"Height":           pdfcpu.Integer(32),
		"BitsPerComponent": pdfcpu.Integer(8),
		"ColorSpace":       pdfcpu.Name("DeviceRGB"),
		"Filter":           pdfcpu.Name("DCTDecode"),
	}, payload.Bytes())

	if err := m.mangleImage(&sd); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(sd.Raw, payload.Bytes()) {
		t.Fatal("payload unchanged")
	}
	if sd.Dict["Filter"] != pdfcpu.Name("DCTDecode") {
		t.Fatalf("unexpected filter %v", sd.Dict["Filter"])
	}
	img, err := jpeg.Decode(bytes.NewReader(sd.Raw))
	if err != nil {
		t.Fatalf("mangled payload is not a JPEG: %s", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Fatalf("dimensions changed: %v", img.Bounds())
	}
}

// a tiny flat image: the blurred re-encode may reproduce the input
// bytes, in which case the grey fill must take over. Either way the
// payload changes.
func TestMangleImageTinyFlatJPEG(t *testing.T) {
	m := testMangler(config.Default())
	m.xref = &pdfcpu.XRefTable{}

	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 0x7f
	}
	var payload bytes.Buffer
	if err := jpeg.Encode(&payload, src, &jpeg.Options{Quality: 75}); err != nil {
		t.Fatal(err)
	}

	sd := newImageStream(t, pdfcpu.Dict{
		"Subtype":          pdfcpu.Name("Image"),
		"Width":            pdfcpu.Integer(8),
		"Height":           pdfcpu.Integer(8),
		"BitsPerComponent": pdfcpu.Integer(8),
		"ColorSpace":       pdfcpu.Name("DeviceRGB"),
		"Filter":           pdfcpu.Name("DCTDecode"),
	}, payload.Bytes())

	if err := m.mangleImage(&sd); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(sd.Raw, payload.Bytes()) {
		t.Fatal("flat image payload unchanged")
	}
	if sd.Dict["Width"] != pdfcpu.Integer(8) || sd.Dict["ColorSpace"] != pdfcpu.Name("DeviceRGB") {
		t.Fatalf("image dictionary modified: %v", sd.Dict)
	}
}

func TestColorComponents(t *testing.T) {
	m := testMangler(config.Default())
	m.xref = &pdfcpu.XRefTable{}

	for _, test := range []struct {
		cs       pdfcpu.Object
		expected int
	}{
		{pdfcpu.Name("DeviceGray"), 1},
		{pdfcpu.Name("DeviceRGB"), 3},
		{pdfcpu.Name("DeviceCMYK"), 4},
		{pdfcpu.Array{pdfcpu.Name("Indexed"), pdfcpu.Name("DeviceRGB"), pdfcpu.Integer(255)}, 1},
		{pdfcpu.Array{pdfcpu.Name("ICCBased"), pdfcpu.StreamDict{Dict: pdfcpu.Dict{"N": pdfcpu.Integer(4)}}}, 4},
		{pdfcpu.Array{pdfcpu.Name("DeviceN"), pdfcpu.Array{pdfcpu.Name("C1"), pdfcpu.Name("C2")}}, 2},
	} {
		n, err := m.colorComponents(pdfcpu.Dict{"ColorSpace": test.cs})
		if err != nil {
			t.Fatalf("%v: %s", test.cs, err)
		}
		if n != test.expected {
			t.Fatalf("%v: expected %d components, got %d", test.cs, test.expected, n)
		}
	}

	n, err := m.colorComponents(pdfcpu.Dict{"ImageMask": pdfcpu.Boolean(true)})
	if err != nil || n != 1 {
		t.Fatalf("image mask: %d, %s", n, err)
	}
}
