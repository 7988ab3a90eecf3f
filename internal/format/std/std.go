// Package std implements the STD (stage geometry) format adapter: object/
// quad/instance tables plus an instruction stream, in one of two header/
// framing generations depending on the target game.
//
// Grounded on original_source/src/core_mapfiles/std.rs for the builtin
// mapfile content and original_source/tests/integration/std_features.rs
// for which games use which header/framing generation; the hand-rolled
// fixed-layout-header-then-variable-sections decode/encode split is
// carried over from Consensys-go-corset/pkg/binfile/binfile.go's
// Header.MarshalBinary/UnmarshalBinary, translated from that package's
// big-endian gob framing to STD's little-endian fixed-field framing.
package std

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/format"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/lower"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/meta"
	"github.com/zero318/truth/internal/pos"
)

// quadSentinelKind/quadSentinelSize mark the end of an object's quad
// stream.
const (
	quadSentinelKind = -1
	quadSentinelSize = 4
)

// Quad kinds.
const (
	QuadRect  = 0
	QuadStrip = 1
)

const (
	quadRectSize  = 0x1c
	quadStripSize = 0x24
)

// Profile distinguishes the two STD generations this adapter supports.
type Profile struct {
	// NewHeader selects the TH10+ 128-byte ANM-path trailer; false
	// selects the TH06-TH09 stage-name + 4 BGM-pair trailer.
	NewHeader bool
	// NewFraming selects TH095+'s `total_size`-prefixed instruction
	// encoding; false selects the pre-TH095 fixed 12-byte argsize.
	NewFraming bool
	// Strips reports whether quad kind 1 (strip) is legal, true only
	// for TH08/TH09.
	Strips bool
}

// profiles maps a game identifier (as passed via the CLI's `-g` flag) to
// its STD generation. Unlisted games default to the newest generation,
// matching later titles' STD format staying stable since TH10.
var profiles = map[string]Profile{
	"06":  {NewHeader: false, NewFraming: false, Strips: false},
	"07":  {NewHeader: false, NewFraming: false, Strips: false},
	"08":  {NewHeader: false, NewFraming: false, Strips: true},
	"09":  {NewHeader: false, NewFraming: false, Strips: true},
	"095": {NewHeader: false, NewFraming: true, Strips: false},
	"10":  {NewHeader: true, NewFraming: true, Strips: false},
}

func profileFor(game string) Profile {
	if p, ok := profiles[game]; ok {
		return p
	}
	return Profile{NewHeader: true, NewFraming: true}
}

// Adapter implements format.Adapter for the STD language family.
type Adapter struct{}

var _ format.Adapter = Adapter{}

func (Adapter) Language(game string) ast.Language {
	return ast.Language{Format: "std", Game: game}
}

// BuiltinMapfile parses this format's bundled instruction/register
// mapfile text. The builtin mapfile content itself is sourced from
// original_source/src/core_mapfiles/std.rs and is loaded as an ordinary
// mapfile source, so it goes through the exact same parser as a
// user-supplied `-m` file.
func (Adapter) BuiltinMapfile(game string) (*mapfile.Mapfile, error) {
	files := pos.NewFiles()
	id := files.Add("<builtin stdmap>", []byte(builtinMapfile))
	return mapfile.Parse(files.Get(id), id, noopEmitter{})
}

// ScratchPool reports that STD declares no registers at all.
func (Adapter) ScratchPool(game string) lower.ScratchPool {
	return lower.ScratchPool{}
}

// Sizer returns a sizer that counts each instruction as its 8-byte
// header plus four bytes per argument, its encoded size in the TH095+
// framing, so jump-offset arguments resolve to byte offsets from the
// start of the script, the same positions decodeScript stamps.
func (Adapter) Sizer(mf *mapfile.Mapfile) lower.InstrSizer { return stdSizer{} }

type stdSizer struct{}

func (stdSizer) InstrSize(opcode int, args []instr.RawArg) (int, error) { return 8 + 4*len(args), nil }

func (a Adapter) Decode(game string, data []byte) (*format.File, error) {
	return decode(data, profileFor(game))
}

func (a Adapter) Encode(game string, f *format.File) ([]byte, error) {
	return encode(f, profileFor(game))
}

// header is the fixed-layout STD file prefix.
type header struct {
	NumObjects      uint16 `meta:"num_objects"`
	NumQuads        uint16 `meta:"num_quads"`
	InstancesOffset uint32 `meta:"instances_offset"`
	ScriptOffset    uint32 `meta:"script_offset"`
	Unknown         uint32 `meta:"unknown"`
	StageName       string `meta:"stage_name,optional"`
	BGMNames        []string `meta:"bgm_names,optional"`
	BGMPaths        []string `meta:"bgm_paths,optional"`
	AnmPath         string `meta:"anm_path,optional"`
}

// object is one STD stage object: a layer-tagged transform
// plus a stream of quads.
type object struct {
	ID       uint16
	Layer    uint16
	Position [3]float32
	Size     [3]float32
	Quads    []quad
}

type quad struct {
	Kind      int16
	AnmScript uint16
	Payload   meta.Value // variant-shaped: rect (pos+size) or strip (pos+size+unk)
}

type instance struct {
	ObjectIndex uint16
	Unknown     uint16
	Position    [3]float32
}

// decode reads data (the file's STD bytes in full) using p to pick the
// header trailer shape and instruction framing, since STD itself carries
// no format-version tag: the caller's `-g GAME` flag is the only source
// of truth for which generation a file uses.
func decode(data []byte, p Profile) (*format.File, error) {
	r := bytes.NewReader(data)
	var h header
	var fixed struct {
		NumObjects      uint16
		NumQuads        uint16
		InstancesOffset uint32
		ScriptOffset    uint32
		Unknown         uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("std: reading header: %w", err)
	}
	h.NumObjects, h.NumQuads, h.InstancesOffset, h.ScriptOffset, h.Unknown = fixed.NumObjects, fixed.NumQuads, fixed.InstancesOffset, fixed.ScriptOffset, fixed.Unknown
	return decodeBody(data, h, p)
}

func decodeBody(data []byte, h header, p Profile) (*format.File, error) {
	r := bytes.NewReader(data[16:])
	if p.NewHeader {
		path, err := readFixedString(r, 128)
		if err != nil {
			return nil, fmt.Errorf("std: reading anm path: %w", err)
		}
		h.AnmPath = path
	} else {
		name, err := readFixedString(r, 128)
		if err != nil {
			return nil, fmt.Errorf("std: reading stage name: %w", err)
		}
		h.StageName = name
		for i := 0; i < 4; i++ {
			bgmName, err := readFixedString(r, 128)
			if err != nil {
				return nil, fmt.Errorf("std: reading bgm name %d: %w", i, err)
			}
			bgmPath, err := readFixedString(r, 128)
			if err != nil {
				return nil, fmt.Errorf("std: reading bgm path %d: %w", i, err)
			}
			h.BGMNames = append(h.BGMNames, bgmName)
			h.BGMPaths = append(h.BGMPaths, bgmPath)
		}
	}

	objOffsets := make([]uint32, h.NumObjects)
	if err := binary.Read(r, binary.LittleEndian, objOffsets); err != nil {
		return nil, fmt.Errorf("std: reading object offset table: %w", err)
	}

	objects := make([]object, 0, h.NumObjects)
	for i, off := range objOffsets {
		obj, err := decodeObject(data, int(off), p)
		if err != nil {
			return nil, fmt.Errorf("std: decoding object %d: %w", i, err)
		}
		// Warning on a non-sequential object id belongs to the core's
		// diagnostics layer; format adapters only decode/encode bytes, so a
		// non-sequential id is carried through as-is rather than checked
		// here.
		objects = append(objects, *obj)
	}

	instances, err := decodeInstances(data, int(h.InstancesOffset))
	if err != nil {
		return nil, fmt.Errorf("std: decoding instances: %w", err)
	}

	instrs, err := decodeScript(data, int(h.ScriptOffset), p)
	if err != nil {
		return nil, fmt.Errorf("std: decoding script: %w", err)
	}

	headerMeta, err := headerToMeta(h, objects, instances)
	if err != nil {
		return nil, err
	}

	return &format.File{
		Header: headerMeta,
		Subs:   []format.Sub{{Instrs: instrs}},
	}, nil
}

func readFixedString(r *bytes.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		end = n
	}
	return string(buf[:end]), nil
}

func decodeObject(data []byte, off int, p Profile) (*object, error) {
	r := bytes.NewReader(data[off:])
	var fixed struct {
		ID       uint16
		Layer    uint16
		Position [3]float32
		Size     [3]float32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, err
	}
	obj := &object{ID: fixed.ID, Layer: fixed.Layer, Position: fixed.Position, Size: fixed.Size}
	for {
		var kindSize struct {
			Kind int16
			Size uint16
		}
		if err := binary.Read(r, binary.LittleEndian, &kindSize); err != nil {
			return nil, err
		}
		if kindSize.Kind == quadSentinelKind && kindSize.Size == quadSentinelSize {
			break
		}
		var anmPad struct {
			AnmScript uint16
			_         uint16
		}
		if err := binary.Read(r, binary.LittleEndian, &anmPad); err != nil {
			return nil, err
		}
		q := quad{Kind: kindSize.Kind, AnmScript: anmPad.AnmScript}
		switch kindSize.Kind {
		case QuadRect:
			var body struct {
				Position [3]float32
				Size     [2]float32
			}
			if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
				return nil, err
			}
			q.Payload = meta.Variant("rect", meta.Array([]meta.Value{
				floatArr(body.Position[:]), floatArr(body.Size[:]),
			}))
		case QuadStrip:
			if !p.Strips {
				return nil, fmt.Errorf("std: strip quad (kind 1) illegal outside TH08/TH09")
			}
			var body struct {
				Position [3]float32
				Size     [3]float32
				Unknown  float32
			}
			if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
				return nil, err
			}
			q.Payload = meta.Variant("strip", meta.Array([]meta.Value{
				floatArr(body.Position[:]), floatArr(body.Size[:]), meta.Float(float64(body.Unknown)),
			}))
		default:
			return nil, fmt.Errorf("std: unknown quad kind %d", kindSize.Kind)
		}
		obj.Quads = append(obj.Quads, q)
	}
	return obj, nil
}

func decodeInstances(data []byte, off int) ([]instance, error) {
	buf := data[off:]
	var out []instance
	pos := 0
	for {
		if pos+16 <= len(buf) {
			var term [4]int32
			if err := binary.Read(bytes.NewReader(buf[pos:pos+16]), binary.LittleEndian, &term); err == nil &&
				term[0] == -1 && term[1] == -1 && term[2] == -1 && term[3] == -1 {
				break
			}
		}
		var inst instance
		r := bytes.NewReader(buf[pos:])
		if err := binary.Read(r, binary.LittleEndian, &inst); err != nil {
			return nil, err
		}
		pos += 16
		out = append(out, inst)
	}
	return out, nil
}

func decodeScript(data []byte, off int, p Profile) ([]instr.Instr, error) {
	r := bytes.NewReader(data[off:])
	var out []instr.Instr
	streamLen := len(data) - off
	for {
		pos := streamLen - r.Len()
		var time int32
		var opcode int16
		if err := binary.Read(r, binary.LittleEndian, &time); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &opcode); err != nil {
			return nil, err
		}
		if opcode == -1 {
			break
		}
		var argBytes []byte
		if p.NewFraming {
			var totalSize uint16
			if err := binary.Read(r, binary.LittleEndian, &totalSize); err != nil {
				return nil, err
			}
			argBytes = make([]byte, int(totalSize)-8)
		} else {
			var argSize uint16
			if err := binary.Read(r, binary.LittleEndian, &argSize); err != nil {
				return nil, err
			}
			argBytes = make([]byte, argSize)
		}
		if _, err := r.Read(argBytes); err != nil {
			return nil, err
		}
		args := make([]instr.RawArg, 0, len(argBytes)/4)
		for i := 0; i+4 <= len(argBytes); i += 4 {
			bits := binary.LittleEndian.Uint32(argBytes[i : i+4])
			args = append(args, instr.RawArg{Bits: bits})
		}
		out = append(out, instr.Instr{
			Time:   time,
			Opcode: int(opcode),
			Args:   args,
			Offset: pos,
		})
	}
	return out, nil
}

func floatArr(fs []float32) meta.Value {
	vs := make([]meta.Value, len(fs))
	for i, f := range fs {
		vs[i] = meta.Float(float64(f))
	}
	return meta.Array(vs)
}

func headerToMeta(h header, objects []object, instances []instance) (meta.Value, error) {
	hm, err := meta.ToMeta(h)
	if err != nil {
		return meta.Value{}, fmt.Errorf("std: header to meta: %w", err)
	}
	objVals := make([]meta.Value, len(objects))
	for i, o := range objects {
		objVals[i] = objectToMeta(o)
	}
	instVals := make([]meta.Value, len(instances))
	for i, inst := range instances {
		instVals[i] = instanceToMeta(inst)
	}
	keys := append([]string(nil), hm.Keys()...)
	vals := make([]meta.Value, 0, len(keys)+2)
	for _, k := range keys {
		v, _ := hm.Field(k)
		vals = append(vals, v)
	}
	keys = append(keys, "objects", "instances")
	vals = append(vals, meta.Array(objVals), meta.Array(instVals))
	return meta.NewObject(keys, vals), nil
}

func objectToMeta(o object) meta.Value {
	quadVals := make([]meta.Value, len(o.Quads))
	for i, q := range o.Quads {
		quadVals[i] = meta.NewObject(
			[]string{"kind", "anm_script", "payload"},
			[]meta.Value{meta.Int(int64(q.Kind)), meta.Int(int64(q.AnmScript)), q.Payload},
		)
	}
	return meta.NewObject(
		[]string{"id", "layer", "position", "size", "quads"},
		[]meta.Value{
			meta.Int(int64(o.ID)), meta.Int(int64(o.Layer)),
			floatArr(o.Position[:]), floatArr(o.Size[:]),
			meta.Array(quadVals),
		},
	)
}

func instanceToMeta(inst instance) meta.Value {
	return meta.NewObject(
		[]string{"object_index", "unknown", "position"},
		[]meta.Value{meta.Int(int64(inst.ObjectIndex)), meta.Int(int64(inst.Unknown)), floatArr(inst.Position[:])},
	)
}

func instanceFromMeta(v meta.Value) (instance, error) {
	var inst instance
	idxVal, ok := v.Field("object_index")
	if !ok {
		return inst, fmt.Errorf("missing object_index")
	}
	unkVal, _ := v.Field("unknown")
	posVal, _ := v.Field("position")
	idx, _ := idxVal.Int()
	unk, _ := unkVal.Int()
	inst.ObjectIndex, inst.Unknown = uint16(idx), uint16(unk)
	copyFloats(posVal, inst.Position[:])
	return inst, nil
}

func encode(f *format.File, p Profile) ([]byte, error) {
	var h header
	if err := meta.FromMeta(f.Header, &h); err != nil {
		return nil, fmt.Errorf("std: header from meta: %w", err)
	}
	objectsVal, _ := f.Header.Field("objects")
	instancesVal, _ := f.Header.Field("instances")
	objArr, _ := objectsVal.Array()
	instArr, _ := instancesVal.Array()

	var out bytes.Buffer
	// Reserve the fixed header; backpatched once offsets are known.
	out.Write(make([]byte, 16))
	if p.NewHeader {
		writeFixedString(&out, h.AnmPath, 128)
	} else {
		writeFixedString(&out, h.StageName, 128)
		for i := 0; i < 4; i++ {
			name, path := "", ""
			if i < len(h.BGMNames) {
				name = h.BGMNames[i]
			}
			if i < len(h.BGMPaths) {
				path = h.BGMPaths[i]
			}
			writeFixedString(&out, name, 128)
			writeFixedString(&out, path, 128)
		}
	}

	objTableOff := out.Len()
	out.Write(make([]byte, 4*len(objArr)))

	objOffsets := make([]uint32, len(objArr))
	for i, ov := range objArr {
		objOffsets[i] = uint32(out.Len())
		if err := encodeObject(&out, ov); err != nil {
			return nil, fmt.Errorf("std: encoding object %d: %w", i, err)
		}
	}
	outBytes := out.Bytes()
	for i, o := range objOffsets {
		binary.LittleEndian.PutUint32(outBytes[objTableOff+4*i:], o)
	}

	instancesOffset := uint32(out.Len())
	for _, iv := range instArr {
		inst, err := instanceFromMeta(iv)
		if err != nil {
			return nil, fmt.Errorf("std: instance from meta: %w", err)
		}
		binary.Write(&out, binary.LittleEndian, inst)
	}
	binary.Write(&out, binary.LittleEndian, [4]int32{-1, -1, -1, -1})

	scriptOffset := uint32(out.Len())
	if len(f.Subs) > 0 {
		if err := encodeScript(&out, f.Subs[0].Instrs, p); err != nil {
			return nil, fmt.Errorf("std: encoding script: %w", err)
		}
	}

	final := out.Bytes()
	binary.LittleEndian.PutUint16(final[0:], uint16(len(objArr)))
	binary.LittleEndian.PutUint16(final[2:], countQuads(objArr))
	binary.LittleEndian.PutUint32(final[4:], instancesOffset)
	binary.LittleEndian.PutUint32(final[8:], scriptOffset)
	binary.LittleEndian.PutUint32(final[12:], h.Unknown)
	return final, nil
}

func countQuads(objArr []meta.Value) uint16 {
	var n uint16
	for _, ov := range objArr {
		quadsVal, ok := ov.Field("quads")
		if !ok {
			continue
		}
		qs, _ := quadsVal.Array()
		n += uint16(len(qs))
	}
	return n
}

func writeFixedString(out *bytes.Buffer, s string, n int) {
	buf := make([]byte, n)
	copy(buf, s)
	out.Write(buf)
}

func encodeObject(out *bytes.Buffer, ov meta.Value) error {
	var o object
	idVal, _ := ov.Field("id")
	layerVal, _ := ov.Field("layer")
	posVal, _ := ov.Field("position")
	sizeVal, _ := ov.Field("size")
	quadsVal, _ := ov.Field("quads")
	id, _ := idVal.Int()
	layer, _ := layerVal.Int()
	o.ID, o.Layer = uint16(id), uint16(layer)
	copyFloats(posVal, o.Position[:])
	copyFloats(sizeVal, o.Size[:])

	var fixed struct {
		ID       uint16
		Layer    uint16
		Position [3]float32
		Size     [3]float32
	}
	fixed.ID, fixed.Layer, fixed.Position, fixed.Size = o.ID, o.Layer, o.Position, o.Size
	if err := binary.Write(out, binary.LittleEndian, fixed); err != nil {
		return err
	}

	quads, _ := quadsVal.Array()
	for _, qv := range quads {
		kindVal, _ := qv.Field("kind")
		anmVal, _ := qv.Field("anm_script")
		payloadVal, _ := qv.Field("payload")
		kind, _ := kindVal.Int()
		anm, _ := anmVal.Int()

		tag, elem, _ := payloadVal.VariantTag()
		var size uint16
		switch tag {
		case "rect":
			size = quadRectSize
		case "strip":
			size = quadStripSize
		}
		binary.Write(out, binary.LittleEndian, int16(kind))
		binary.Write(out, binary.LittleEndian, size)
		binary.Write(out, binary.LittleEndian, uint16(anm))
		binary.Write(out, binary.LittleEndian, uint16(0))

		parts, _ := elem.Array()
		switch tag {
		case "rect":
			var pos, sz [3]float32
			copyFloats(parts[0], pos[:])
			copyFloats(parts[1], sz[:2])
			binary.Write(out, binary.LittleEndian, pos)
			binary.Write(out, binary.LittleEndian, sz[:2])
		case "strip":
			var pos, sz [3]float32
			copyFloats(parts[0], pos[:])
			copyFloats(parts[1], sz[:])
			unk, _ := parts[2].Float()
			binary.Write(out, binary.LittleEndian, pos)
			binary.Write(out, binary.LittleEndian, sz)
			binary.Write(out, binary.LittleEndian, float32(unk))
		}
	}
	binary.Write(out, binary.LittleEndian, int16(quadSentinelKind))
	binary.Write(out, binary.LittleEndian, uint16(quadSentinelSize))
	return nil
}

func copyFloats(v meta.Value, dst []float32) {
	arr, ok := v.Array()
	if !ok {
		return
	}
	for i := 0; i < len(dst) && i < len(arr); i++ {
		f, _ := arr[i].Float()
		dst[i] = float32(f)
	}
}

func encodeScript(out *bytes.Buffer, instrs []instr.Instr, p Profile) error {
	for _, in := range instrs {
		argBytes := make([]byte, 0, len(in.Args)*4)
		for _, a := range in.Args {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], a.Bits)
			argBytes = append(argBytes, b[:]...)
		}
		binary.Write(out, binary.LittleEndian, in.Time)
		binary.Write(out, binary.LittleEndian, int16(in.Opcode))
		if p.NewFraming {
			binary.Write(out, binary.LittleEndian, uint16(len(argBytes)+8))
		} else {
			for len(argBytes) < 12 {
				argBytes = append(argBytes, 0)
			}
			binary.Write(out, binary.LittleEndian, uint16(len(argBytes)))
		}
		out.Write(argBytes)
	}
	binary.Write(out, binary.LittleEndian, int32(-1))
	binary.Write(out, binary.LittleEndian, int16(-1))
	binary.Write(out, binary.LittleEndian, uint16(0))
	binary.Write(out, binary.LittleEndian, [3]int32{-1, -1, -1})
	return nil
}

// noopEmitter discards every diagnostic; used only while parsing the
// builtin mapfile, which is fixed content checked in alongside this
// package and should never itself produce diagnostics.
type noopEmitter struct{}

func (noopEmitter) Emit(d *diag.Diagnostic) {}

// builtinMapfile is STD's bundled signature/intrinsic set for the
// TH095-TH18 instruction family, transcribed from
// original_source/src/core_mapfiles/std.rs's STD_095_18 table.
const builtinMapfile = `!stdmap

!ins_signatures
0 _
1 ot
2 fff
3 SSfff
4 fff
5 SSfff
6 fff
7 f
8 Cff
9 SSCff
10 SSfffffffff
11 SSfffffffff
12 S
13 C
14 SSS
16 S
17 S
18 SSfff
19 S
20 f
21 SSf

!ins_intrinsics
1 Jmp()
16 InterruptLabel()

!ins_names
0 anim_clear
1 jmp
2 set_pos
3 set_pos_interp
4 move_to
5 move_to_interp
6 face_pos
7 delay
8 set_fog
9 set_fog_interp
10 set_fog_curve
11 set_fog_curve2
12 set_anim
13 set_facing
14 set_layer
16 interrupt
17 unknown_17
18 unknown_18
19 unknown_19
20 unknown_20
21 unknown_21

!gvar_types

!difficulty_flags
E easy
N normal
H hard
L lunatic
X extra
`
