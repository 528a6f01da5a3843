package mangle

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	xdraw "golang.org/x/image/draw"
)

// mangleImage replaces the payload of an image XObject, keeping its
// dimensions, color space and bit depth. Depending on the configured
// style and the encoding, the image is either blurred beyond
// recognition or filled with a flat grey.
func (m *Mangler) mangleImage(sd *pdfcpu.StreamDict) error {
	width, _ := m.resolveInt(sd.Dict["Width"])
	height, _ := m.resolveInt(sd.Dict["Height"])
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	bpc, ok := m.resolveInt(sd.Dict["BitsPerComponent"])
	if !ok {
		bpc = 8
	}
	ncomp, err := m.colorComponents(sd.Dict)
	if err != nil {
		return err
	}

	if m.conf.Image.Style == "blur" {
		if err := m.blurStream(sd, width, height, bpc, ncomp); err == nil {
			return nil
		} else {
			log.Printf("image %dx%d: blur not applicable (%s), using grey fill", width, height, err)
		}
	}
	return m.greyFill(sd, width, height, bpc, ncomp)
}

// colorComponents returns the number of color components of an image
// dictionary.
func (m *Mangler) colorComponents(dict pdfcpu.Dict) (int, error) {
	if mask, ok := m.resolve(dict["ImageMask"]).(pdfcpu.Boolean); ok && mask.Value() {
		return 1, nil
	}
	cs := m.resolve(dict["ColorSpace"])
	switch cs := cs.(type) {
	case pdfcpu.Name:
		return componentsOfName(string(cs))
	case pdfcpu.Array:
		if len(cs) == 0 {
			return 0, errType("image ColorSpace", cs)
		}
		family, _ := m.resolve(cs[0]).(pdfcpu.Name)
		switch family {
		case "Indexed", "Separation":
			return 1, nil
		case "ICCBased":
			if len(cs) < 2 {
				return 0, errType("ICCBased color space", cs)
			}
			profile, ok := m.resolve(cs[1]).(pdfcpu.StreamDict)
			if !ok {
				return 0, errType("ICC profile", cs[1])
			}
			n, ok := m.resolveInt(profile.Dict["N"])
			if !ok {
				return 0, errType("ICC profile N", profile.Dict["N"])
			}
			return n, nil
		case "DeviceN":
			if len(cs) < 2 {
				return 0, errType("DeviceN color space", cs)
			}
			names, ok := m.resolve(cs[1]).(pdfcpu.Array)
			if !ok {
				return 0, errType("DeviceN names", cs[1])
			}
			return len(names), nil
		case "CalGray":
			return 1, nil
		case "CalRGB", "Lab":
			return 3, nil
		default:
			return 0, fmt.Errorf("unsupported color space family %s", family)
		}
	default:
		return 0, errType("image ColorSpace", cs)
	}
}

func componentsOfName(name string) (int, error) {
	switch name {
	case "DeviceGray", "CalGray", "G", "I", "Indexed":
		return 1, nil
	case "DeviceRGB", "CalRGB", "RGB", "Lab":
		return 3, nil
	case "DeviceCMYK", "CMYK":
		return 4, nil
	}
	return 0, fmt.Errorf("unsupported color space %s", name)
}

// blurStream blurs the image payload in place. It handles the two
// encodings covering most real-world images: plain JPEG payloads, and
// 8-bit samples behind Flate (or no filter at all).
func (m *Mangler) blurStream(sd *pdfcpu.StreamDict, width, height, bpc, ncomp int) error {
	fils, err := m.streamFilters(sd.Dict)
	if err != nil {
		return err
	}
	if len(fils) == 1 && fils[0].Name == filter.DCT {
		return m.blurJPEG(sd)
	}

	if bpc != 8 {
		return fmt.Errorf("%d bits per component", bpc)
	}
	for _, f := range fils {
		if f.Name != filter.Flate {
			return fmt.Errorf("%s encoding", f.Name)
		}
	}
	plain, err := m.decodedStream(sd)
	if err != nil {
		return err
	}
	if len(plain) < width*height*ncomp {
		return fmt.Errorf("truncated samples (%d bytes)", len(plain))
	}
	samples := make([]byte, len(plain))
	copy(samples, plain)
	boxBlur(samples, width, height, ncomp, m.conf.Image.RadiusFor(width, height))
	return m.setStreamContent(sd, samples)
}

// blurJPEG decodes, blurs and re-encodes a DCT payload.
func (m *Mangler) blurJPEG(sd *pdfcpu.StreamDict) error {
	img, err := jpeg.Decode(bytes.NewReader(sd.Raw))
	if err != nil {
		return fmt.Errorf("broken JPEG payload: %w", err)
	}
	if _, ok := img.(*image.CMYK); ok {
		// encoding CMYK JPEG is not supported
		return fmt.Errorf("CMYK JPEG")
	}
	_, isGray := img.(*image.Gray)

	b := img.Bounds()
	blurred := blurImage(img, m.conf.Image.RadiusFor(b.Dx(), b.Dy()))
	if isGray {
		gray := image.NewGray(b)
		xdraw.Draw(gray, b, blurred, b.Min, xdraw.Src)
		blurred = gray
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, blurred, &jpeg.Options{Quality: 75}); err != nil {
		return err
	}
	if bytes.Equal(out.Bytes(), sd.Raw) {
		// quantization absorbed the whole perturbation (small or flat
		// image): the payload must not survive unchanged
		return fmt.Errorf("blur left the payload unchanged")
	}
	return m.setStreamRaw(sd, out.Bytes(), filter.DCT)
}

// blurImage approximates a Gaussian blur of the given radius by
// resampling: scale down by the radius, then back up with a smooth
// kernel.
func blurImage(img image.Image, radius int) image.Image {
	b := img.Bounds()
	if radius < 2 {
		// a unit radius would make the resampling a no-op
		radius = 2
	}
	dw, dh := b.Dx()/radius, b.Dy()/radius
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, xdraw.Src, nil)
	out := image.NewRGBA(b)
	xdraw.CatmullRom.Scale(out, b, small, small.Bounds(), xdraw.Src, nil)
	return out
}

// boxBlur runs a separable box blur over interleaved 8-bit samples,
// in place.
func boxBlur(data []byte, width, height, ncomp, radius int) {
	if radius < 1 || width*height == 0 {
		return
	}
	stride := width * ncomp
	line := make([]byte, stride)

	// horizontal passes
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for c := 0; c < ncomp; c++ {
			blurLine(row, line, width, c, ncomp, radius)
		}
		copy(row, line)
	}
	// vertical passes
	col := make([]byte, height*ncomp)
	out := make([]byte, height*ncomp)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			copy(col[y*ncomp:(y+1)*ncomp], data[y*stride+x*ncomp:y*stride+(x+1)*ncomp])
		}
		for c := 0; c < ncomp; c++ {
			blurLine(col, out, height, c, ncomp, radius)
		}
		for y := 0; y < height; y++ {
			copy(data[y*stride+x*ncomp:y*stride+(x+1)*ncomp], out[y*ncomp:(y+1)*ncomp])
		}
	}
}

// blurLine averages component `c` of `src` over a sliding window of
// 2×radius+1 samples, writing into `dst`. Both slices hold `count`
// interleaved pixels of `ncomp` components.
func blurLine(src, dst []byte, count, c, ncomp, radius int) {
	if radius >= count {
		radius = count - 1
	}
	sum, window := 0, 0
	for i := 0; i <= radius && i < count; i++ {
		sum += int(src[i*ncomp+c])
		window++
	}
	for i := 0; i < count; i++ {
		dst[i*ncomp+c] = byte(sum / window)
		if next := i + radius + 1; next < count {
			sum += int(src[next*ncomp+c])
			window++
		}
		if prev := i - radius; prev >= 0 {
			sum -= int(src[prev*ncomp+c])
			window--
		}
	}
}

// greyFill replaces the payload with flat grey samples of the same
// dimensions and depth.
func (m *Mangler) greyFill(sd *pdfcpu.StreamDict, width, height, bpc, ncomp int) error {
	rowBytes := (width*ncomp*bpc + 7) / 8
	samples := make([]byte, rowBytes*height)
	fill := byte(0x80)
	if bpc < 8 {
		fill = 0xaa // alternating bits, a 50% pattern
	}
	for i := range samples {
		samples[i] = fill
	}
	return m.setStreamContent(sd, samples)
}
