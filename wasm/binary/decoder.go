package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

type reader struct {
	binary []byte
	read   int
	buffer *bytes.Buffer
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.buffer.Read(p)
	r.read += n
	return
}

// DecodeModule decodes a WebAssembly 1.0 (MVP) Binary Format module into the in-memory representation.
// See https://www.w3.org/TR/wasm-core-1/#binary-format%E2%91%A0
func DecodeModule(binary []byte) (*wasm.Module, error) {
	r := &reader{binary: binary, buffer: bytes.NewBuffer(binary)}

	// Magic number.
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, magic) {
		return nil, wasm.ErrInvalidMagicNumber
	}

	// Version.
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, version) {
		return nil, wasm.ErrInvalidVersion
	}

	m := &wasm.Module{}
	for {
		sectionID := make([]byte, 1)
		if _, err := io.ReadFull(r, sectionID); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}

		sectionSize, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("get size of %s section: %v", wasm.SectionIDName(sectionID[0]), err)
		}

		sectionContentStart := r.read
		switch sectionID[0] {
		case wasm.SectionIDCustom:
			// First, validate the section and determine if the section for this name has already been set
			name, dataSize, decodeErr := decodeCustomSectionNameAndDataSize(r, sectionSize)
			if decodeErr != nil {
				err = decodeErr
				break
			} else if name == "name" && m.NameSection != nil {
				err = fmt.Errorf("redundant custom section %s", name)
				break
			} else if _, ok := m.CustomSections[name]; ok {
				err = fmt.Errorf("redundant custom section %s", name)
				break
			}

			// Now, either decode the NameSection or store an unsupported one
			data, dataErr := readCustomSectionData(r, dataSize)
			if dataErr != nil {
				err = dataErr
			} else if name == "name" {
				m.NameSection, err = decodeNameSection(data)
			} else {
				if m.CustomSections == nil {
					m.CustomSections = map[string][]byte{name: data}
				} else {
					m.CustomSections[name] = data
				}
			}
		case wasm.SectionIDType:
			m.TypeSection, err = decodeTypeSection(r)
		case wasm.SectionIDImport:
			m.ImportSection, err = decodeImportSection(r)
		case wasm.SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(r)
		case wasm.SectionIDTable:
			m.TableSection, err = decodeTableSection(r)
		case wasm.SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(r)
		case wasm.SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(r)
		case wasm.SectionIDExport:
			m.ExportSection, err = decodeExportSection(r)
		case wasm.SectionIDStart:
			m.StartSection, err = decodeStartSection(r)
		case wasm.SectionIDElement:
			m.ElementSection, err = decodeElementSection(r)
		case wasm.SectionIDCode:
			m.CodeSection, err = decodeCodeSection(r)
		case wasm.SectionIDData:
			m.DataSection, err = decodeDataSection(r)
		default:
			err = wasm.ErrInvalidSectionID
		}

		if err == nil && sectionContentStart+int(sectionSize) != r.read {
			err = fmt.Errorf("invalid section length: expected to be %d but got %d", sectionSize, r.read-sectionContentStart)
		}

		if err != nil {
			return nil, fmt.Errorf("%s section: %v", wasm.SectionIDName(sectionID[0]), err)
		}
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths")
	}
	return m, nil
}

func decodeCustomSectionNameAndDataSize(r *reader, sectionSize uint32) (name string, dataSize uint32, err error) {
	nameStart := r.read
	name, _, err = decodeUTF8(r, "custom section name")
	if err != nil {
		return
	}

	nameSize := r.read - nameStart
	if uint32(nameSize) > sectionSize {
		err = fmt.Errorf("malformed custom section %s", name)
		return
	}
	dataSize = sectionSize - uint32(nameSize)
	return
}

func readCustomSectionData(r *reader, dataSize uint32) ([]byte, error) {
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("cannot read custom section data: %w", err)
	}
	return data, nil
}
