package instr_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zero318/truth/internal/instr"
)

func TestFromIntRoundTrips(t *testing.T) {
	arg := instr.FromInt(-42)
	assert.False(t, arg.IsVar)
	assert.Equal(t, int32(-42), arg.AsInt())
}

func TestFromFloatRoundTrips(t *testing.T) {
	arg := instr.FromFloat(3.5)
	assert.False(t, arg.IsVar)
	assert.Equal(t, float32(3.5), arg.AsFloat())
}

func TestFromRegIntStoresRawRegisterNumber(t *testing.T) {
	arg := instr.FromReg(7, false)
	assert.True(t, arg.IsVar)
	assert.Equal(t, int32(7), arg.AsInt())
}

func TestFromRegFloatStoresFloatBitPattern(t *testing.T) {
	arg := instr.FromReg(7, true)
	assert.True(t, arg.IsVar)
	assert.Equal(t, float32(7), arg.AsFloat())
	assert.NotEqual(t, int32(7), arg.AsInt(), "a float-typed register slot stores the register number as a float bit pattern, not a raw int")
}

func TestAsIntAsFloatReinterpretSameBits(t *testing.T) {
	bits := math.Float32bits(1.25)
	arg := instr.RawArg{Bits: bits}
	assert.Equal(t, int32(bits), arg.AsInt())
	assert.Equal(t, float32(1.25), arg.AsFloat())
}
