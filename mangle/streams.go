package mangle

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// streamFilter is one step of a stream filter pipeline.
type streamFilter struct {
	Name  string
	Parms map[string]int
}

// streamFilters resolves the Filter and DecodeParms entries of a
// stream dictionary.
func (m *Mangler) streamFilters(dict pdfcpu.Dict) ([]streamFilter, error) {
	fils := m.resolve(dict["Filter"])
	parms := m.resolve(dict["DecodeParms"])
	if parms == nil {
		parms = m.resolve(dict["DP"])
	}

	var out []streamFilter
	switch fils := fils.(type) {
	case nil:
		return nil, nil
	case pdfcpu.Name:
		out = append(out, streamFilter{Name: string(fils), Parms: m.filterParms(parms)})
	case pdfcpu.Array:
		parmsArray, _ := m.resolve(parms).(pdfcpu.Array)
		for i, f := range fils {
			name, ok := m.resolve(f).(pdfcpu.Name)
			if !ok {
				return nil, errType("stream Filter element", f)
			}
			var fp pdfcpu.Object
			if i < len(parmsArray) {
				fp = parmsArray[i]
			}
			out = append(out, streamFilter{Name: string(name), Parms: m.filterParms(fp)})
		}
	default:
		return nil, errType("stream Filter", fils)
	}
	return out, nil
}

// filterParms flattens a DecodeParms dict into the map expected by the
// filter package.
func (m *Mangler) filterParms(o pdfcpu.Object) map[string]int {
	dict, ok := m.resolve(o).(pdfcpu.Dict)
	if !ok {
		return nil
	}
	parms := map[string]int{}
	for name, v := range dict {
		switch v := m.resolve(v).(type) {
		case pdfcpu.Integer:
			parms[name] = v.Value()
		case pdfcpu.Boolean:
			if v.Value() {
				parms[name] = 1
			}
		}
	}
	return parms
}

// decodedStream returns the plain content of a stream, decoding the
// raw payload through its filter pipeline when the reader has not
// already done so.
func (m *Mangler) decodedStream(sd *pdfcpu.StreamDict) ([]byte, error) {
	if len(sd.Content) != 0 {
		return sd.Content, nil
	}
	fils, err := m.streamFilters(sd.Dict)
	if err != nil {
		return nil, err
	}
	var current io.Reader = bytes.NewReader(sd.Raw)
	for _, f := range fils {
		fp, err := filter.NewFilter(f.Name, f.Parms)
		if err != nil {
			return nil, err
		}
		current, err = fp.Decode(current)
		if err != nil {
			return nil, fmt.Errorf("decoding %s stream: %w", f.Name, err)
		}
	}
	return ioutil.ReadAll(current)
}

// setStreamContent replaces the payload of a stream with `plain`,
// Flate-compressed. The previous filter pipeline is dropped: a new
// pipeline would not reproduce the original bytes anyway, and Flate is
// valid for every stream type.
func (m *Mangler) setStreamContent(sd *pdfcpu.StreamDict, plain []byte) error {
	fp, err := filter.NewFilter(filter.Flate, nil)
	if err != nil {
		return err
	}
	enc, err := fp.Encode(bytes.NewReader(plain))
	if err != nil {
		return err
	}
	raw, err := ioutil.ReadAll(enc)
	if err != nil {
		return err
	}

	if err := m.setStreamRaw(sd, raw, filter.Flate); err != nil {
		return err
	}
	sd.Content = plain
	return nil
}

// setStreamRaw installs an already encoded payload and its single
// filter.
func (m *Mangler) setStreamRaw(sd *pdfcpu.StreamDict, raw []byte, filterName string) error {
	sd.Content = nil
	sd.Raw = raw
	length := int64(len(raw))
	sd.StreamLength = &length

	sd.Dict["Filter"] = pdfcpu.Name(filterName)
	delete(sd.Dict, "DecodeParms")
	delete(sd.Dict, "DP")
	m.setStreamLength(sd, length)
	return nil
}

// setStreamLength updates the Length entry, following an indirect
// reference when the original dictionary used one.
func (m *Mangler) setStreamLength(sd *pdfcpu.StreamDict, length int64) {
	if ref, ok := sd.Dict["Length"].(pdfcpu.IndirectRef); ok {
		if entry, ok := m.xref.Table[ref.ObjectNumber.Value()]; ok {
			entry.Object = pdfcpu.Integer(length)
			return
		}
	}
	sd.Dict["Length"] = pdfcpu.Integer(length)
}
