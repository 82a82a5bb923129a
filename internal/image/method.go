package image

import "encoding/binary"

// Method header layout (chosen by this port; bytecode emission is out of
// scope for the analyzer, so the exact encoding only has to be internally
// consistent):
//
//	byte 0    arity
//	byte 1    flags (bit 0: is-block)
//	bytes 2-3 max stack height, little-endian uint16
//	bytes 4-5 selector offset, little-endian uint16 (0xFFFF => not a
//	          dispatch target, e.g. a top-level or block method)
//	byte 6..  body bytecode
const (
	MethodHeaderSize = 6
	NoSelectorOffset = 0xFFFF

	flagIsBlock = 1 << 0
)

// Method is a method or block body identified by the bcp of its header.
type Method struct {
	HeaderBCP      int
	Arity          int
	MaxHeight      int
	SelectorOffset int
	IsBlock        bool
}

// Body returns the bcp of the method's first body instruction.
func (m Method) Body() int { return m.HeaderBCP + MethodHeaderSize }

// DecodeMethod reads the header at headerBCP.
func DecodeMethod(p Program, headerBCP int) Method {
	bytecodes := p.Bytecodes()
	flags := bytecodes[headerBCP+1]
	return Method{
		HeaderBCP:      headerBCP,
		Arity:          int(bytecodes[headerBCP]),
		MaxHeight:      int(binary.LittleEndian.Uint16(bytecodes[headerBCP+2 : headerBCP+4])),
		SelectorOffset: int(binary.LittleEndian.Uint16(bytecodes[headerBCP+4 : headerBCP+6])),
		IsBlock:        flags&flagIsBlock != 0,
	}
}
