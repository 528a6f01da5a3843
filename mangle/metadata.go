package mangle

import (
	"bytes"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"seehuhn.de/go/xmp"
)

// stripMetadata filters the document information dictionary and the
// XMP metadata stream against the keep list. Keys survive only on an
// exact match; the values of surviving keys are left untouched.
func (m *Mangler) stripMetadata() {
	if ref := m.xref.Info; ref != nil {
		if info, ok := m.resolve(*ref).(pdfcpu.Dict); ok {
			m.filterInfoDict(info)
		}
	}

	catalog, err := m.xref.Catalog()
	if err != nil {
		log.Printf("no document catalog: %s", err)
		return
	}
	delete(catalog, "PieceInfo")
	if sd, ok := m.resolve(catalog["Metadata"]).(pdfcpu.StreamDict); ok {
		m.filterXMP(&sd)
		m.writeBack(catalog, "Metadata", sd)
	}
}

func (m *Mangler) filterInfoDict(info pdfcpu.Dict) {
	for key := range info {
		if !m.conf.Metadata.Keeps(key) {
			delete(info, key)
		}
	}
}

// filterXMP rewrites the XMP packet, keeping only the allowed
// properties. A packet which cannot be parsed is replaced by an empty
// one: better to lose metadata than to leak it.
func (m *Mangler) filterXMP(sd *pdfcpu.StreamDict) {
	packet := m.readXMP(sd)

	for name := range packet.Properties {
		if !m.conf.Metadata.Keeps(name.Local) {
			delete(packet.Properties, name)
		}
	}

	var buf bytes.Buffer
	if err := packet.Write(&buf, nil); err != nil {
		log.Printf("serializing XMP metadata: %s", err)
		return
	}
	// metadata streams are traditionally left uncompressed, so that
	// non-PDF tools can find the packet
	if err := m.setStreamRaw(sd, buf.Bytes(), ""); err != nil {
		log.Printf("rewriting XMP metadata: %s", err)
		return
	}
	delete(sd.Dict, "Filter")
}

func (m *Mangler) readXMP(sd *pdfcpu.StreamDict) *xmp.Packet {
	plain, err := m.decodedStream(sd)
	if err != nil {
		log.Printf("unreadable XMP metadata, replacing with an empty packet: %s", err)
		return xmp.NewPacket()
	}
	packet, err := xmp.Read(bytes.NewReader(plain))
	if err != nil {
		log.Printf("malformed XMP metadata, replacing with an empty packet: %s", err)
		return xmp.NewPacket()
	}
	return packet
}

// writeBack stores a mutated stream dict under `key`: stream dicts are
// values, so the change must be written either to the object table or
// to the owning dictionary.
func (m *Mangler) writeBack(owner pdfcpu.Dict, key string, sd pdfcpu.StreamDict) {
	if ref, ok := owner[key].(pdfcpu.IndirectRef); ok {
		if entry, found := m.xref.Table[ref.ObjectNumber.Value()]; found {
			entry.Object = sd
			return
		}
	}
	owner[key] = sd
}
