package codec

import "errors"

// ErrEncodingError is the sentinel wrapped by every decode-time failure:
// malformed instruction word, unknown opcode, or illegal register reference.
// It is fatal at decode time (spec taxonomy: EncodingError).
var ErrEncodingError = errors.New("encoding error")

// ErrUnimplementedInstruction marks opcodes that are recognised as a name
// but deliberately unimplemented (the source's STRING/REF/#if-0 IO handlers).
var ErrUnimplementedInstruction = errors.New("unimplemented instruction")
