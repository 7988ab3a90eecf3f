package context

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/mapfile"
)

// LoadMapfile merges mf into the context for language lang: every
// register alias becomes a RegisterAliasDef bound into a permanent Vars
// Mapfile rib, every instruction alias becomes an InstructionAliasDef
// bound into a permanent Funcs Mapfile rib, and the raw Mapfile itself is retained so that
// internal/intrinsic and internal/lower can look up signatures and
// intrinsic bindings by opcode.
//
// These ribs are pushed once, at the bottom of the stack just above
// DummyRoot, and are never popped: they represent the initial rib set
// populated from mapfiles that the Context owns for its whole lifetime.
func (c *Context) LoadMapfile(mf *mapfile.Mapfile, lang ast.Language) {
	if c.Mapfiles == nil {
		c.Mapfiles = map[ast.Language]*mapfile.Mapfile{}
	}
	if existing, ok := c.Mapfiles[lang]; ok {
		existing.Merge(mf, c.Root.Emitter)
	} else {
		c.Mapfiles[lang] = mf
	}

	varRib := &Rib{Kind: Mapfile, Language: lang}
	for reg, name := range mf.GvarNames {
		ty := ast.Int
		if t, ok := mf.GvarTypes[reg]; ok {
			ty = t
		}
		id := c.Interner.Intern(name)
		def := c.DefineRegisterAlias(ast.RegID(reg), ty, lang)
		varRib.Bind(id, def)
	}
	c.Vars.insertNearBottom(varRib)

	funcRib := &Rib{Kind: Mapfile, Language: lang}
	for opcode, name := range mf.InsNames {
		id := c.Interner.Intern(name)
		def := c.DefineInstructionAlias(opcode, lang)
		funcRib.Bind(id, def)
	}
	c.Funcs.insertNearBottom(funcRib)
}

// insertNearBottom inserts r just above the DummyRoot sentinel, so
// mapfile ribs always sit below every Items/Locals/Params rib a block
// introduces, keeping them part of the Context's initial rib set.
func (n *Namespace) insertNearBottom(r *Rib) {
	if len(n.stack) == 0 {
		n.stack = append(n.stack, r)
		return
	}
	n.stack = append(n.stack, nil)
	copy(n.stack[2:], n.stack[1:len(n.stack)-1])
	n.stack[1] = r
}
