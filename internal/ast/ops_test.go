package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinOpKindClassification(t *testing.T) {
	tests := []struct {
		op                                         BinOpKind
		comparison, arithmetic, bitwiseOrShift, logical bool
	}{
		{Add, false, true, false, false},
		{Eq, true, false, false, false},
		{BitAnd, false, false, true, false},
		{Shl, false, false, true, false},
		{LogAnd, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.comparison, tt.op.IsComparison())
			assert.Equal(t, tt.arithmetic, tt.op.IsArithmetic())
			assert.Equal(t, tt.bitwiseOrShift, tt.op.IsBitwiseOrShift())
			assert.Equal(t, tt.logical, tt.op.IsLogical())
		})
	}
}

func TestNegateComparison(t *testing.T) {
	tests := []struct {
		in, want BinOpKind
	}{
		{Eq, Ne}, {Ne, Eq}, {Lt, Ge}, {Ge, Lt}, {Gt, Le}, {Le, Gt},
	}
	for _, tt := range tests {
		got, ok := NegateComparison(tt.in)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)
	}

	_, ok := NegateComparison(Add)
	assert.False(t, ok, "a non-comparison operator has no negation")
}

func TestBinOpKindString(t *testing.T) {
	assert.Equal(t, "+", Add.String())
	assert.Equal(t, "==", Eq.String())
	assert.Equal(t, ">>>", UShr.String())
}

func TestAssignOpKindBinOp(t *testing.T) {
	op, ok := AssignAdd.BinOp()
	assert.True(t, ok)
	assert.Equal(t, Add, op)

	_, ok = Assign.BinOp()
	assert.False(t, ok, "plain assignment has no underlying BinOp")
}

func TestAssignOpKindString(t *testing.T) {
	assert.Equal(t, "=", Assign.String())
	assert.Equal(t, "+=", AssignAdd.String())
	assert.Equal(t, ">>=", AssignShr.String())
}

func TestUnOpKindString(t *testing.T) {
	assert.Equal(t, "-", Neg.String())
	assert.Equal(t, "sin", Sin.String())
	assert.Equal(t, "$", ReadInt.String())
}
