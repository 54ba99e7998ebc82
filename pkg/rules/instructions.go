package rules

import (
	"fmt"
	"strings"
)

// Op is a VM opcode. Each instruction has a fixed stack-arity effect; the
// compiler guarantees the stream stays balanced.
type Op uint8

const (
	// OpPushConst pushes the instruction's constant.
	OpPushConst Op = iota
	// OpLoadName resolves a name through the context's resolution chain
	// and pushes the result (Nothing when unresolved).
	OpLoadName
	// OpGetAttr replaces TOS with one of its attributes.
	OpGetAttr
	// OpGetItem pops a key and a container and pushes container[key].
	OpGetItem
	// OpCall pops Argc arguments and a callable and invokes it.
	OpCall
	// OpMakeSet pops Argc elements and pushes an immutable set.
	OpMakeSet

	// Unary operators.
	OpNeg
	OpPos
	OpNot
	OpInvert

	// Arithmetic operators.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpPow

	// Bitwise operators.
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr

	// Comparison operators.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpNotIn

	// Short-circuit jumps. The ElseKeep variants leave the tested value on
	// the stack when jumping, giving value-preserving and/or.
	OpJumpIfFalseElseKeep
	OpJumpIfTrueElseKeep
	OpJumpIfFalsePop
	OpJump

	// OpSetAuthz pops the attribute values named by Names (in reverse
	// declaration order) and the verdict, then pushes an Authorization.
	OpSetAuthz
)

var opNames = map[Op]string{
	OpPushConst:           "PushConst",
	OpLoadName:            "LoadName",
	OpGetAttr:             "GetAttr",
	OpGetItem:             "GetItem",
	OpCall:                "Call",
	OpMakeSet:             "MakeSet",
	OpNeg:                 "Neg",
	OpPos:                 "Pos",
	OpNot:                 "Not",
	OpInvert:              "Invert",
	OpAdd:                 "Add",
	OpSub:                 "Sub",
	OpMul:                 "Mul",
	OpDiv:                 "Div",
	OpFloorDiv:            "FloorDiv",
	OpMod:                 "Mod",
	OpPow:                 "Pow",
	OpBitAnd:              "BitAnd",
	OpBitOr:               "BitOr",
	OpBitXor:              "BitXor",
	OpShl:                 "Shl",
	OpShr:                 "Shr",
	OpEq:                  "Eq",
	OpNe:                  "Ne",
	OpLt:                  "Lt",
	OpLe:                  "Le",
	OpGt:                  "Gt",
	OpGe:                  "Ge",
	OpIn:                  "In",
	OpNotIn:               "NotIn",
	OpJumpIfFalseElseKeep: "JumpIfFalseElseKeep",
	OpJumpIfTrueElseKeep:  "JumpIfTrueElseKeep",
	OpJumpIfFalsePop:      "JumpIfFalsePop",
	OpJump:                "Jump",
	OpSetAuthz:            "SetAuthz",
}

// String returns the opcode mnemonic.
func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Instr is one instruction: an opcode plus its immediate operand.
type Instr struct {
	Op Op
	// Const is the immediate of OpPushConst.
	Const Value
	// Name is the immediate of OpLoadName and OpGetAttr.
	Name string
	// Argc is the immediate of OpCall and OpMakeSet.
	Argc int
	// Target is the jump destination, an instruction index.
	Target int
	// Names is the immediate of OpSetAuthz: the attribute names in
	// declaration order.
	Names []string
}

// String renders the instruction for diagnostics and tests.
func (in Instr) String() string {
	switch in.Op {
	case OpPushConst:
		if in.Const.Kind() == KindStr {
			return fmt.Sprintf("PushConst(%q)", in.Const.AsStr())
		}
		return fmt.Sprintf("PushConst(%s)", in.Const)
	case OpLoadName:
		return fmt.Sprintf("LoadName(%s)", in.Name)
	case OpGetAttr:
		return fmt.Sprintf("GetAttr(%s)", in.Name)
	case OpCall:
		return fmt.Sprintf("Call(%d)", in.Argc)
	case OpMakeSet:
		return fmt.Sprintf("MakeSet(%d)", in.Argc)
	case OpJumpIfFalseElseKeep, OpJumpIfTrueElseKeep, OpJumpIfFalsePop, OpJump:
		return fmt.Sprintf("%s(%d)", in.Op, in.Target)
	case OpSetAuthz:
		return fmt.Sprintf("SetAuthz(%s)", strings.Join(in.Names, ", "))
	}
	return in.Op.String()
}

// Program is a compiled instruction stream, terminated by OpSetAuthz.
type Program struct {
	code []Instr
}

// Instructions returns the instruction stream. The slice is shared; do not
// mutate it.
func (p *Program) Instructions() []Instr { return p.code }

// String renders the program one instruction per line.
func (p *Program) String() string {
	var b strings.Builder
	for i, in := range p.code {
		fmt.Fprintf(&b, "%3d  %s\n", i, in)
	}
	return b.String()
}
