package mapfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zero318/truth/internal/ast"
)

// EncodingChar identifies one argument encoding.
type EncodingChar byte

const (
	EncInt32       EncodingChar = 'S'
	EncInt16       EncodingChar = 's'
	EncInt8        EncodingChar = 'b'
	EncFloat       EncodingChar = 'f'
	EncColor       EncodingChar = 'C'
	EncJumpOffset  EncodingChar = 'o'
	EncJumpTime    EncodingChar = 't'
	EncPadding     EncodingChar = '_'
	EncFixedString EncodingChar = 'z'
	EncVarString   EncodingChar = 'm'
)

// Descr returns a human-readable name for a diagnostic message.
func (c EncodingChar) Descr() string {
	switch c {
	case EncInt32:
		return "32-bit int"
	case EncInt16:
		return "16-bit int"
	case EncInt8:
		return "8-bit int"
	case EncFloat:
		return "float"
	case EncColor:
		return "color"
	case EncJumpOffset:
		return "jump offset"
	case EncJumpTime:
		return "jump time"
	case EncPadding:
		return "padding"
	case EncFixedString:
		return "fixed string"
	case EncVarString:
		return "masked string"
	default:
		return "?"
	}
}

// ArgEncoding is one element of an instruction ABI signature.
type ArgEncoding struct {
	Char EncodingChar
	// BlockSize is the `bs=N` parameter of z/m encodings.
	BlockSize int
	// Mask/Slot/Round are the `mask=M,S,R` parameters of the m encoding.
	Mask, Slot, Round int64
}

// Signature is an ordered ABI: one ArgEncoding per argument, first to last.
type Signature []ArgEncoding

// ParseSignature decodes a signature string such as "SSSfo_z(bs=40)" into
// a Signature. z and m encodings must be last; a z/m appearing mid-string
// is rejected because the variable-length z or m encoding consumes the
// rest of the instruction's raw bytes.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	i := 0
	for i < len(s) {
		c := EncodingChar(s[i])
		switch c {
		case EncInt32, EncInt16, EncInt8, EncFloat, EncColor, EncJumpOffset, EncJumpTime, EncPadding:
			sig = append(sig, ArgEncoding{Char: c})
			i++
		case EncFixedString:
			enc, next, err := parseParenEncoding(s, i, c)
			if err != nil {
				return nil, err
			}
			if next != len(s) {
				return nil, fmt.Errorf("mapfile: fixed-length string encoding 'z' must be the last argument")
			}
			sig = append(sig, enc)
			i = next
		case EncVarString:
			enc, next, err := parseParenEncoding(s, i, c)
			if err != nil {
				return nil, err
			}
			if next != len(s) {
				return nil, fmt.Errorf("mapfile: masked string encoding 'm' must be the last argument")
			}
			sig = append(sig, enc)
			i = next
		default:
			return nil, fmt.Errorf("mapfile: unrecognised signature character %q", s[i])
		}
	}
	return sig, nil
}

// parseParenEncoding parses the `(key=val;key=val,val,val)` suffix that
// follows a 'z' or 'm' character, returning the decoded ArgEncoding and the
// index immediately after the closing paren.
func parseParenEncoding(s string, i int, c EncodingChar) (ArgEncoding, int, error) {
	if i+1 >= len(s) || s[i+1] != '(' {
		return ArgEncoding{}, 0, fmt.Errorf("mapfile: %q encoding requires parameters, e.g. %c(bs=N)", c, c)
	}
	end := strings.IndexByte(s[i+1:], ')')
	if end < 0 {
		return ArgEncoding{}, 0, fmt.Errorf("mapfile: unterminated %q encoding parameter list", c)
	}
	end += i + 1
	params := s[i+2 : end]
	enc := ArgEncoding{Char: c}
	for _, kv := range strings.Split(params, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return ArgEncoding{}, 0, fmt.Errorf("mapfile: malformed parameter %q", kv)
		}
		key, val := kv[:eq], kv[eq+1:]
		switch key {
		case "bs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return ArgEncoding{}, 0, fmt.Errorf("mapfile: bad bs value %q: %w", val, err)
			}
			enc.BlockSize = n
		case "mask":
			if c != EncVarString {
				return ArgEncoding{}, 0, fmt.Errorf("mapfile: unrecognised attribute %q for %c encoding", key, c)
			}
			parts := strings.Split(val, ",")
			if len(parts) != 3 {
				return ArgEncoding{}, 0, fmt.Errorf("mapfile: mask= requires exactly 3 comma-separated values (M,S,R)")
			}
			nums := make([]int64, 3)
			for k, p := range parts {
				n, err := strconv.ParseInt(strings.TrimSpace(p), 0, 64)
				if err != nil {
					return ArgEncoding{}, 0, fmt.Errorf("mapfile: bad mask component %q: %w", p, err)
				}
				nums[k] = n
			}
			enc.Mask, enc.Slot, enc.Round = nums[0], nums[1], nums[2]
		default:
			return ArgEncoding{}, 0, fmt.Errorf("mapfile: unrecognised attribute %q", key)
		}
	}
	return enc, end + 1, nil
}

// ScalarType reports the scalar type a user writes at a raw `ins_N(...)`
// call site for this encoding, or false for padding, which never
// corresponds to a user-supplied argument. Jump offset/time encodings
// report Int: in a raw call they are written as plain integers.
func (c EncodingChar) ScalarType() (ast.ScalarType, bool) {
	switch c {
	case EncInt32, EncInt16, EncInt8, EncColor, EncJumpOffset, EncJumpTime:
		return ast.Int, true
	case EncFloat:
		return ast.Float, true
	case EncFixedString, EncVarString:
		return ast.String, true
	default:
		return 0, false
	}
}

// TrailingPadding returns the count of trailing '_' encodings and the
// signature with them stripped.
func (sig Signature) TrailingPadding() (stripped Signature, count int) {
	end := len(sig)
	for end > 0 && sig[end-1].Char == EncPadding {
		end--
	}
	return sig[:end], len(sig) - end
}
