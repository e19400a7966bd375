package main

import "fmt"

// Opcode names a VM instruction as it appears in the listing.
type Opcode string

const (
	OpPush       Opcode = "Push"
	OpPopN       Opcode = "PopN"
	OpStackAlloc Opcode = "StackAlloc"
	OpLocA       Opcode = "LocA"
	OpArgA       Opcode = "ArgA"
	OpGlobA      Opcode = "GlobA"
	OpLoad64     Opcode = "Load64"
	OpStore64    Opcode = "Store64"

	OpAddI Opcode = "AddI"
	OpSubI Opcode = "SubI"
	OpMulI Opcode = "MulI"
	OpDivI Opcode = "DivI"
	OpAddF Opcode = "AddF"
	OpSubF Opcode = "SubF"
	OpMulF Opcode = "MulF"
	OpDivF Opcode = "DivF"
	OpNegI Opcode = "NegI"
	OpNegF Opcode = "NegF"
	OpIToF Opcode = "IToF"
	OpFToI Opcode = "FToI"

	OpCmpI  Opcode = "CmpI"
	OpCmpF  Opcode = "CmpF"
	OpSetLt Opcode = "SetLt"
	OpSetGt Opcode = "SetGt"
	OpNot   Opcode = "Not"

	OpBr       Opcode = "Br"
	OpBrTrue   Opcode = "BrTrue"
	OpCall     Opcode = "Call"
	OpCallName Opcode = "CallName"
	OpRet      Opcode = "Ret"
)

// Instruction is an opcode with an optional operand.
type Instruction struct {
	Op         Opcode
	Operand    int64
	HasOperand bool
}

func (in Instruction) String() string {
	if !in.HasOperand {
		return string(in.Op)
	}
	return fmt.Sprintf("%s(%d)", in.Op, in.Operand)
}

// Function is one compiled function, ready to be rendered.
type Function struct {
	Name       string
	ID         int // 1-based declaration order; 0 for _start
	PoolIndex  int
	Locals     int
	Params     int
	ReturnKind int // 0 for void, 1 otherwise
	Code       []Instruction
}

// loop tracks an enclosing while statement for break and continue.
type loop struct {
	condStart int
	breaks    []int
}

// FunctionBuilder accumulates the code of the function being compiled. It owns
// the per-function counters so nothing leaks from one function to the next.
type FunctionBuilder struct {
	name      string
	code      []Instruction
	result    Type
	retSlots  int // 1 when slot 0 of the arguments holds the return value
	params    int
	nextLocal int
	loops     []*loop
}

func newFunctionBuilder(name string, result Type) *FunctionBuilder {
	fb := &FunctionBuilder{name: name, result: result}
	if result != TypeVoid {
		fb.retSlots = 1
	}
	return fb
}

// Emit appends an instruction without an operand and returns its index.
func (fb *FunctionBuilder) Emit(op Opcode) int {
	fb.code = append(fb.code, Instruction{Op: op})
	return len(fb.code) - 1
}

// EmitArg appends an instruction with an operand and returns its index.
func (fb *FunctionBuilder) EmitArg(op Opcode, operand int64) int {
	fb.code = append(fb.code, Instruction{Op: op, Operand: operand, HasOperand: true})
	return len(fb.code) - 1
}

// Len is the index the next instruction will get.
func (fb *FunctionBuilder) Len() int {
	return len(fb.code)
}

// EmitJump appends a Br placeholder to be patched later.
func (fb *FunctionBuilder) EmitJump() int {
	return fb.EmitArg(OpBr, 0)
}

// PatchJump points the branch at index at so that it lands on target. Branch
// offsets are relative to the instruction after the branch.
func (fb *FunctionBuilder) PatchJump(at, target int) {
	fb.code[at].Operand = int64(target - (at + 1))
	fb.code[at].HasOperand = true
}

// EmitJumpTo appends a Br that lands on target.
func (fb *FunctionBuilder) EmitJumpTo(target int) int {
	at := fb.EmitJump()
	fb.PatchJump(at, target)
	return at
}

// AllocLocal reserves the next local slot.
func (fb *FunctionBuilder) AllocLocal() int {
	n := fb.nextLocal
	fb.nextLocal++
	return n
}

func (fb *FunctionBuilder) pushLoop(condStart int) *loop {
	lp := &loop{condStart: condStart}
	fb.loops = append(fb.loops, lp)
	return lp
}

func (fb *FunctionBuilder) popLoop() {
	fb.loops = fb.loops[:len(fb.loops)-1]
}

func (fb *FunctionBuilder) innermostLoop() *loop {
	if len(fb.loops) == 0 {
		return nil
	}
	return fb.loops[len(fb.loops)-1]
}
