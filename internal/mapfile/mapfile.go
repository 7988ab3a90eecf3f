// Package mapfile parses the text mapfile format: a `!name` magic line,
// `!section` headers, and `KEY VALUE` rows with `#`-to-end-of-line
// comments.
//
// Grounded on the hand-rolled recursive-descent line/token scanning idiom
// of Consensys-go-corset/pkg/sexp/parser.go and pkg/asm/parser.go (no
// parser-generator or lexer library appears anywhere in the retrieval
// pack, so this is carried forward as stdlib-only); exact section/
// signature/intrinsic vocabulary confirmed against original_source/
// core_mapfiles/std.rs and original_source/src/llir/intrinsic.rs.
package mapfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/pos"
)

// Section names recognised in a mapfile.
const (
	SecInsSignatures         = "ins_signatures"
	SecInsNames              = "ins_names"
	SecInsIntrinsics         = "ins_intrinsics"
	SecGvarNames             = "gvar_names"
	SecGvarTypes             = "gvar_types"
	SecTimelineInsSignatures = "timeline_ins_signatures"
	SecTimelineInsNames      = "timeline_ins_names"
	SecDifficultyFlags       = "difficulty_flags"
)

var knownSections = map[string]bool{
	SecInsSignatures: true, SecInsNames: true, SecInsIntrinsics: true,
	SecGvarNames: true, SecGvarTypes: true, SecTimelineInsSignatures: true,
	SecTimelineInsNames: true, SecDifficultyFlags: true,
}

// IntrinsicBinding is a parsed `OPCODE NAME(attr=val;...)` row. Attrs holds the raw attribute strings; internal/intrinsic
// interprets them against ast operator kinds and ast.ScalarType.
type IntrinsicBinding struct {
	Name  string
	Attrs map[string]string
}

// Mapfile is the fully-parsed, merged content of one or more mapfile
// sources sharing one magic (e.g. all `!anmmap` fragments supplied via
// repeated `-m` flags).
type Mapfile struct {
	Magic string // e.g. "anmmap", "stdmap", "msgmap", "eclmap"

	InsSignatures         map[int]Signature
	InsNames              map[int]string
	InsIntrinsics         map[int]IntrinsicBinding
	GvarNames             map[int]string
	GvarTypes             map[int]ast.ScalarType
	TimelineInsSignatures map[int]Signature
	TimelineInsNames      map[int]string
	// DifficultyFlags maps a single letter (e.g. 'E') to its flag name
	// (e.g. "EASY"), in declaration order for round-tripping.
	DifficultyFlags     map[byte]string
	DifficultyFlagOrder []byte
}

func newMapfile(magic string) *Mapfile {
	return &Mapfile{
		Magic:                 magic,
		InsSignatures:         map[int]Signature{},
		InsNames:              map[int]string{},
		InsIntrinsics:         map[int]IntrinsicBinding{},
		GvarNames:             map[int]string{},
		GvarTypes:             map[int]ast.ScalarType{},
		TimelineInsSignatures: map[int]Signature{},
		TimelineInsNames:      map[int]string{},
		DifficultyFlags:       map[byte]string{},
	}
}

// Parse parses one mapfile's text, emitting diagnostics against the given
// file id through emitter. Returns the parsed Mapfile even if errors were
// emitted, so a caller testing a mapfile standalone can still inspect
// whatever was recovered.
func Parse(file *pos.File, fileID pos.FileID, emitter diag.Emitter) (*Mapfile, error) {
	flag := diag.NewErrorFlag(emitter)
	p := &parser{file: file, fileID: fileID, emit: flag}
	mf := p.parse()
	if err := flag.AsResult(); err != nil {
		return mf, err
	}
	return mf, nil
}

type parser struct {
	file   *pos.File
	fileID pos.FileID
	emit   diag.Emitter
}

type line struct {
	text   string
	offset uint32 // byte offset of the start of text within the file
}

func (p *parser) splitLines() []line {
	src := string(p.file.Src)
	var out []line
	offset := uint32(0)
	for _, raw := range strings.Split(src, "\n") {
		trimmed := strings.TrimSuffix(raw, "\r")
		out = append(out, line{text: trimmed, offset: offset})
		offset += uint32(len(raw)) + 1
	}
	return out
}

func (p *parser) span(l line) pos.Span {
	return pos.NewSpan(p.fileID, l.offset, l.offset+uint32(len(l.text)))
}

func stripComment(s string) string {
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func (p *parser) parse() *Mapfile {
	lines := p.splitLines()

	// Find first non-blank line -> magic.
	idx := 0
	for idx < len(lines) && strings.TrimSpace(stripComment(lines[idx].text)) == "" {
		idx++
	}
	if idx == len(lines) {
		p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "empty mapfile: missing !name magic"))
		return newMapfile("")
	}
	magicLine := strings.TrimSpace(stripComment(lines[idx].text))
	if !strings.HasPrefix(magicLine, "!") {
		p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "expected '!name' magic as the first line").
			WithPrimary(p.span(lines[idx]), "expected e.g. !anmmap here"))
		return newMapfile("")
	}
	magic := magicLine[1:]
	mf := newMapfile(magic)
	idx++

	var curSection string
	for ; idx < len(lines); idx++ {
		l := lines[idx]
		text := strings.TrimSpace(stripComment(l.text))
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "!") {
			name := text[1:]
			if !knownSections[name] {
				p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "unrecognised section %q", name).
					WithPrimary(p.span(l), "not a known mapfile section"))
				curSection = ""
				continue
			}
			curSection = name
			continue
		}
		if curSection == "" {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "row outside of any !section").
				WithPrimary(p.span(l), "expected a !section header before this row"))
			continue
		}
		key, value, ok := splitRow(text)
		if !ok {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "malformed row %q", text).
				WithPrimary(p.span(l), "expected 'KEY VALUE'"))
			continue
		}
		p.applyRow(mf, curSection, key, value, l)
	}
	return mf
}

func splitRow(text string) (key, value string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}

func (p *parser) applyRow(mf *Mapfile, section, key, value string, l line) {
	switch section {
	case SecInsSignatures:
		opcode := p.mustOpcode(key, l)
		sig, err := ParseSignature(value)
		if err != nil {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "%s", err.Error()).WithPrimary(p.span(l), "in this signature"))
			return
		}
		putLastWins(mf.InsSignatures, opcode, sig, signaturesEqual, p, l, "instruction signature")
	case SecInsNames:
		opcode := p.mustOpcode(key, l)
		putLastWins(mf.InsNames, opcode, value, strEq, p, l, "instruction name")
	case SecInsIntrinsics:
		opcode := p.mustOpcode(key, l)
		binding, err := parseIntrinsicBinding(value)
		if err != nil {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "%s", err.Error()).WithPrimary(p.span(l), "in this intrinsic binding"))
			return
		}
		putLastWins(mf.InsIntrinsics, opcode, binding, bindingEq, p, l, "intrinsic binding")
	case SecGvarNames:
		reg := p.mustOpcode(key, l)
		putLastWins(mf.GvarNames, reg, value, strEq, p, l, "register alias")
	case SecGvarTypes:
		reg := p.mustOpcode(key, l)
		ty, err := parseScalarType(value)
		if err != nil {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "%s", err.Error()).WithPrimary(p.span(l), "in register type"))
			return
		}
		putLastWins(mf.GvarTypes, reg, ty, func(a, b ast.ScalarType) bool { return a == b }, p, l, "register type")
	case SecTimelineInsSignatures:
		opcode := p.mustOpcode(key, l)
		sig, err := ParseSignature(value)
		if err != nil {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "%s", err.Error()).WithPrimary(p.span(l), "in this signature"))
			return
		}
		putLastWins(mf.TimelineInsSignatures, opcode, sig, signaturesEqual, p, l, "timeline instruction signature")
	case SecTimelineInsNames:
		opcode := p.mustOpcode(key, l)
		putLastWins(mf.TimelineInsNames, opcode, value, strEq, p, l, "timeline instruction name")
	case SecDifficultyFlags:
		if len(key) != 1 {
			p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "difficulty flag letter must be a single character, got %q", key).
				WithPrimary(p.span(l), "bad letter"))
			return
		}
		letter := key[0]
		if _, exists := mf.DifficultyFlags[letter]; !exists {
			mf.DifficultyFlagOrder = append(mf.DifficultyFlagOrder, letter)
		}
		putLastWins(mf.DifficultyFlags, letter, value, strEq, p, l, "difficulty flag")
	}
}

func (p *parser) mustOpcode(key string, l line) int {
	n, err := strconv.Atoi(key)
	if err != nil {
		p.emit.Emit(diag.New(diag.Error, diag.CategoryMapfile, "expected an integer key, got %q", key).
			WithPrimary(p.span(l), "not a valid opcode/register number"))
		return 0
	}
	return n
}

func strEq(a, b string) bool { return a == b }

func signaturesEqual(a, b Signature) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bindingEq(a, b IntrinsicBinding) bool {
	if a.Name != b.Name || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for k, v := range a.Attrs {
		if b.Attrs[k] != v {
			return false
		}
	}
	return true
}

// putLastWins applies last-wins semantics for duplicate keys in a
// section: the later value replaces the earlier one, but a warning is
// emitted when the values differ.
func putLastWins[K comparable, V any](m map[K]V, key K, value V, eq func(a, b V) bool, p *parser, l line, descr string) {
	if old, exists := m[key]; exists && !eq(old, value) {
		p.emit.Emit(diag.New(diag.Warning, diag.CategoryMapfile, "duplicate %s for key %v with differing value; using the later one", descr, key).
			WithPrimary(p.span(l), "this value wins"))
	}
	m[key] = value
}

func parseScalarType(s string) (ast.ScalarType, error) {
	switch s {
	case "int":
		return ast.Int, nil
	case "float":
		return ast.Float, nil
	case "string":
		return ast.String, nil
	default:
		return 0, fmt.Errorf("mapfile: unrecognised register type %q", s)
	}
}

// parseIntrinsicBinding decodes `Name(attr=val;attr=val;...)` or a
// bare `Name` with no attributes.
func parseIntrinsicBinding(s string) (IntrinsicBinding, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return IntrinsicBinding{Name: s, Attrs: map[string]string{}}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return IntrinsicBinding{}, fmt.Errorf("mapfile: unterminated attribute list in %q", s)
	}
	name := s[:open]
	body := s[open+1 : len(s)-1]
	attrs := map[string]string{}
	if strings.TrimSpace(body) != "" {
		for _, kv := range strings.Split(body, ";") {
			kv = strings.TrimSpace(kv)
			if kv == "" {
				continue
			}
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				return IntrinsicBinding{}, fmt.Errorf("mapfile: malformed attribute %q", kv)
			}
			attrs[strings.TrimSpace(kv[:eq])] = strings.TrimSpace(kv[eq+1:])
		}
	}
	return IntrinsicBinding{Name: name, Attrs: attrs}, nil
}

// Merge folds other into mf, applying the same last-wins-with-warning
// semantics as within a single file (used when multiple `-m` mapfiles are
// supplied; later mapfiles win).
func (mf *Mapfile) Merge(other *Mapfile, emitter diag.Emitter) {
	for k, v := range other.InsSignatures {
		mergeOne(mf.InsSignatures, k, v, signaturesEqual, emitter, "instruction signature")
	}
	for k, v := range other.InsNames {
		mergeOne(mf.InsNames, k, v, strEq, emitter, "instruction name")
	}
	for k, v := range other.InsIntrinsics {
		mergeOne(mf.InsIntrinsics, k, v, bindingEq, emitter, "intrinsic binding")
	}
	for k, v := range other.GvarNames {
		mergeOne(mf.GvarNames, k, v, strEq, emitter, "register alias")
	}
	for k, v := range other.GvarTypes {
		mergeOne(mf.GvarTypes, k, v, func(a, b ast.ScalarType) bool { return a == b }, emitter, "register type")
	}
	for k, v := range other.TimelineInsSignatures {
		mergeOne(mf.TimelineInsSignatures, k, v, signaturesEqual, emitter, "timeline instruction signature")
	}
	for k, v := range other.TimelineInsNames {
		mergeOne(mf.TimelineInsNames, k, v, strEq, emitter, "timeline instruction name")
	}
	for _, letter := range other.DifficultyFlagOrder {
		if _, exists := mf.DifficultyFlags[letter]; !exists {
			mf.DifficultyFlagOrder = append(mf.DifficultyFlagOrder, letter)
		}
		mergeOne(mf.DifficultyFlags, letter, other.DifficultyFlags[letter], strEq, emitter, "difficulty flag")
	}
}

func mergeOne[K comparable, V any](m map[K]V, key K, value V, eq func(a, b V) bool, emitter diag.Emitter, descr string) {
	if old, exists := m[key]; exists && !eq(old, value) {
		emitter.Emit(diag.New(diag.Warning, diag.CategoryMapfile, "duplicate %s for key %v across mapfiles with differing value; using the later one", descr, key))
	}
	m[key] = value
}
