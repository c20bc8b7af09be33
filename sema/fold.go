package sema

import (
	"math/big"

	"solang/token"
)

// Folding of literal-literal operations. Unpinned literals are
// infinite precision; range problems surface when the result is
// pinned, except for the handful of operations that are errors
// regardless of width (division by zero, negative shift counts).

func (context *bodyContext) foldArithmetic(op ArithOp, left, right *NumberLiteral, span token.Span) Expression {
	ns := context.ns
	result := new(big.Int)
	switch op {
	case OpAdd:
		result.Add(left.Value, right.Value)
	case OpSub:
		result.Sub(left.Value, right.Value)
	case OpMul:
		result.Mul(left.Value, right.Value)
	case OpDiv:
		if right.Value.Sign() == 0 {
			ns.Diagnostics.Errorf(span, "division by zero")
			return context.errorAt(span)
		}
		result.Quo(left.Value, right.Value)
	case OpMod:
		if right.Value.Sign() == 0 {
			ns.Diagnostics.Errorf(span, "division by zero")
			return context.errorAt(span)
		}
		result.Rem(left.Value, right.Value)
	case OpPow:
		if right.Value.Sign() < 0 || !right.Value.IsUint64() || right.Value.Uint64() > 0xffff {
			ns.Diagnostics.Errorf(span, "exponent is out of range")
			return context.errorAt(span)
		}
		result.Exp(left.Value, right.Value, nil)
	}
	return &NumberLiteral{Value: result, Loc: span}
}

func (context *bodyContext) foldBitwise(op BitOp, left, right *NumberLiteral, span token.Span) Expression {
	ns := context.ns
	if left.Value.Sign() < 0 || right.Value.Sign() < 0 {
		ns.Diagnostics.Errorf(span, "bitwise operators need a pinned type for negative operands")
		return context.errorAt(span)
	}
	result := new(big.Int)
	switch op {
	case OpAnd:
		result.And(left.Value, right.Value)
	case OpOr:
		result.Or(left.Value, right.Value)
	case OpXor:
		result.Xor(left.Value, right.Value)
	}
	return &NumberLiteral{Value: result, Loc: span}
}

func (context *bodyContext) foldShift(shiftLeft bool, left, right *NumberLiteral, span token.Span) Expression {
	ns := context.ns
	if right.Value.Sign() < 0 || !right.Value.IsUint64() || right.Value.Uint64() > 0xffff {
		ns.Diagnostics.Errorf(span, "shift amount is out of range")
		return context.errorAt(span)
	}
	amount := uint(right.Value.Uint64())
	result := new(big.Int)
	if shiftLeft {
		result.Lsh(left.Value, amount)
	} else {
		result.Rsh(left.Value, amount)
	}
	return &NumberLiteral{Value: result, Loc: span}
}

func (context *bodyContext) foldCompare(op CompareOp, left, right *NumberLiteral, span token.Span) Expression {
	comparison := left.Value.Cmp(right.Value)
	var result bool
	switch op {
	case OpEq:
		result = comparison == 0
	case OpNe:
		result = comparison != 0
	case OpLt:
		result = comparison < 0
	case OpLe:
		result = comparison <= 0
	case OpGt:
		result = comparison > 0
	case OpGe:
		result = comparison >= 0
	}
	return &BoolLiteral{Value: result, Loc: span}
}
