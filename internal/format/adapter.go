// Package format defines the contract every binary script format (ANM,
// STD, MSG, ECL) implements to plug into the shared compile/decompile
// core. The core never hard-codes
// table layouts or instruction framing; it asks an Adapter. Only STD is
// implemented as a worked example.
//
// Grounded on Consensys-go-corset/pkg/binfile/binfile.go's
// MarshalBinary/UnmarshalBinary split (a fixed-layout header decoded by
// hand, variable-length sections decoded by a per-section loop) and on
// original_source/src/core_mapfiles/std.rs for the STD adapter's mapfile
// content.
package format

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/lower"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/meta"
)

// Sub is one compiled/raised instruction stream of a script file; STD
// has exactly one (the stage script), ANM/ECL have many.
type Sub struct {
	Instrs []instr.Instr
}

// File is a decoded binary script file: header metadata plus zero or
// more instruction-stream subs, format adapters translate to and from
// this shape and the core never looks past it into raw bytes.
type File struct {
	// Header carries whatever format-declared table content doesn't fit
	// the Subs model (STD's object/quad/instance tables).
	Header meta.Value
	Subs   []Sub
}

// Adapter is the per-format glue: which mapfiles to preload for a given
// game, how registers/scratch pools are declared, how instructions are
// framed and sized, and how the surrounding file serializes.
type Adapter interface {
	// Language names the script-format family this adapter implements
	//; Game varies per invocation.
	Language(game string) ast.Language

	// BuiltinMapfile returns the format's built-in instruction/register
	// mapfile for game, merged ahead of any user-supplied `-m` mapfiles
	// unless `--no-builtin-mapfiles` is set.
	BuiltinMapfile(game string) (*mapfile.Mapfile, error)

	// ScratchPool returns the ordered general-use register pools this
	// format declares for game.
	ScratchPool(game string) lower.ScratchPool

	// Sizer returns the InstrSizer the lowerer needs to resolve
	// jump-offset arguments to byte offsets, or nil for formats whose
	// signatures never use a jump-offset encoding.
	Sizer(mf *mapfile.Mapfile) lower.InstrSizer

	// Decode parses a complete binary file into the adapter-neutral File
	// shape. game selects which on-disk generation to expect, since a
	// format's table/instruction layout can change between releases.
	Decode(game string, data []byte) (*File, error)

	// Encode serialises a File back into the format's on-disk bytes for
	// game.
	Encode(game string, f *File) ([]byte, error)
}
