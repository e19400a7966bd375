package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func compile(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func compileError(t *testing.T, src string) *CompileError {
	t.Helper()
	_, err := Compile(strings.NewReader(src))
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	return ce
}

func findFunction(t *testing.T, prog *Program, name string) Function {
	t.Helper()
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function %q", name)
	return Function{}
}

func ops(code []Instruction) []string {
	out := make([]string, len(code))
	for i, in := range code {
		out[i] = in.String()
	}
	return out
}

func TestGlobalsOccupyLeadingSlots(t *testing.T) {
	for n := range 5 {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var sb strings.Builder
			for i := range n {
				fmt.Fprintf(&sb, "let g%d: int;\n", i)
			}
			sb.WriteString("fn main() -> void { putln(); }")

			prog := compile(t, sb.String())
			be.Equal(t, len(prog.Pool), n+2)
			for i := range n {
				be.Equal(t, prog.Pool[i].Kind, PoolSlot)
			}
			be.Equal(t, prog.Pool[n], PoolEntry{Kind: PoolName, Name: "putln"})
			be.Equal(t, prog.Pool[n+1], PoolEntry{Kind: PoolName, Name: "main"})
		})
	}
}

func TestLocalCountMatchesDeclarations(t *testing.T) {
	prog := compile(t, `
fn f() -> void {
    let a: int;
    while 1 { let b: int; const c: double = 1.0; }
    { { let d: int; } }
}
fn main() -> void {}
`)
	be.Equal(t, findFunction(t, prog, "f").Locals, 4)
	be.Equal(t, findFunction(t, prog, "main").Locals, 0)
}

func TestIfElseBranchTargets(t *testing.T) {
	prog := compile(t, `
fn main() -> void {
    if 1 < 2 { putln(); } else { putln(); putln(); }
}
`)
	code := findFunction(t, prog, "main").Code
	// Push Push CmpI SetLt BrTrue Br then-block Br else-block Ret
	be.Equal(t, code[4], Instruction{Op: OpBrTrue, Operand: 1, HasOperand: true})

	skipThen := 5
	skipElse := 8
	be.Equal(t, code[skipThen].Op, OpBr)
	be.Equal(t, code[skipElse].Op, OpBr)

	elseStart := skipThen + 1 + int(code[skipThen].Operand)
	be.Equal(t, elseStart, skipElse+1)

	end := skipElse + 1 + int(code[skipElse].Operand)
	be.Equal(t, end, len(code)-1)
	be.Equal(t, code[end].Op, OpRet)
}

func TestWhileBranchTargets(t *testing.T) {
	prog := compile(t, `
fn main() -> void {
    let i: int = 0;
    while i < 10 { i = i + 1; }
}
`)
	code := findFunction(t, prog, "main").Code
	be.Equal(t, code[3], Instruction{Op: OpBr, Operand: 0, HasOperand: true})

	condStart := 4
	exit := 10
	be.Equal(t, code[exit-1].Op, OpBrTrue)
	be.Equal(t, code[exit].Op, OpBr)

	back := len(code) - 2
	be.Equal(t, code[back].Op, OpBr)
	be.Equal(t, back+1+int(code[back].Operand), condStart)
	be.Equal(t, exit+1+int(code[exit].Operand), back+1)
}

func TestTypeMismatchAtOperator(t *testing.T) {
	ce := compileError(t, "fn main() -> void {\n    let x: int = 1 + 2.0;\n}")
	be.Equal(t, ce.Kind, ErrTypeMismatch)
	be.Equal(t, ce.Pos, Pos{Line: 2, Column: 20})
	be.True(t, strings.Contains(ce.Error(), "int and double"))
}

func TestNoMainFunction(t *testing.T) {
	ce := compileError(t, "let x: int = 1;\nfn helper() -> void {}")
	be.Equal(t, ce.Kind, ErrNoMainFunction)
	be.Equal(t, ce.Pos, Pos{Line: 2, Column: 1})
}

func TestDoubleLiteralOperand(t *testing.T) {
	prog := compile(t, "fn main() -> void { 1.5e2; }")
	code := findFunction(t, prog, "main").Code
	be.Equal(t, code[0].Op, OpPush)
	be.Equal(t, uint64(code[0].Operand), math.Float64bits(150.0))
}

func TestStartCallsMain(t *testing.T) {
	prog := compile(t, `
fn helper() -> int { return 1; }
fn main() -> int { return helper(); }
`)
	be.Equal(t, prog.Start.Name, "_start")
	be.Equal(t, prog.Start.PoolIndex, len(prog.Pool))
	be.Equal(t, ops(prog.Start.Code), []string{"StackAlloc(1)", "Call(2)", "PopN(1)"})

	mainFn := findFunction(t, prog, "main")
	be.Equal(t, mainFn.ID, 2)
	be.Equal(t, mainFn.ReturnKind, 1)
	be.Equal(t, ops(mainFn.Code), []string{
		"ArgA(0)", "StackAlloc(1)", "Call(1)", "Store64", "Ret", "Ret",
	})
}

func TestFunctionPoolIndices(t *testing.T) {
	prog := compile(t, `
fn a() -> void { putln(); }
fn main() -> void { a(); }
`)
	for _, fn := range prog.Functions {
		be.Equal(t, prog.Pool[fn.PoolIndex], PoolEntry{Kind: PoolName, Name: fn.Name})
	}
}

func TestCallNameOperandsPointAtTheirNames(t *testing.T) {
	prog := compile(t, `
let g: double = getdouble();
fn main() -> void {
    putdouble(g);
    putstr("bye");
    putint(getchar());
}
`)
	all := append([]Function{prog.Start}, prog.Functions...)
	var names []string
	for _, fn := range all {
		for _, in := range fn.Code {
			if in.Op == OpCallName {
				names = append(names, prog.Pool[in.Operand].Name)
			}
		}
	}
	be.Equal(t, names, []string{"getdouble", "putdouble", "putstr", "getchar", "putint"})
}

func TestGlobalInitializerReusesPooledName(t *testing.T) {
	prog := compile(t, `
let a: int = getint();
let b: int = getint();
fn main() -> void { putint(getint()); }
`)
	// top-level calls reuse the entry planned for main's body
	be.Equal(t, prog.Pool, []PoolEntry{
		{Kind: PoolSlot},
		{Kind: PoolSlot},
		{Kind: PoolName, Name: "putint"},
		{Kind: PoolName, Name: "getint"},
		{Kind: PoolName, Name: "main"},
	})
	be.Equal(t, ops(prog.Start.Code), []string{
		"GlobA(0)", "StackAlloc(1)", "CallName(3)", "Store64",
		"GlobA(1)", "StackAlloc(1)", "CallName(3)", "Store64",
		"StackAlloc(0)", "Call(1)",
	})
}

func TestStringInitializerMismatch(t *testing.T) {
	ce := compileError(t, `let s: int = "x"; fn main() -> void {}`)
	be.Equal(t, ce.Kind, ErrTypeMismatch)
}

func TestExpressionStatementBalancesStack(t *testing.T) {
	prog := compile(t, `
fn f() -> double { return 1.0; }
fn main() -> void {
    f();
    putln();
    1 < 2;
}
`)
	be.Equal(t, ops(findFunction(t, prog, "main").Code), []string{
		"StackAlloc(1)", "Call(1)", "PopN(1)",
		"StackAlloc(0)", "CallName(1)",
		"Push(1)", "Push(2)", "CmpI", "SetLt", "PopN(1)",
		"Ret",
	})
}

func TestConditionTypes(t *testing.T) {
	compile(t, "fn main() -> void { if 1 {} while 0 {} }")
	compile(t, "fn main() -> void { if 1.0 < 2.0 {} }")

	ce := compileError(t, "fn main() -> void { if 1.0 {} }")
	be.Equal(t, ce.Kind, ErrTypeMismatch)
	be.Equal(t, ce.Pos, Pos{Line: 1, Column: 24})
}

func TestComparisonIsNotChainable(t *testing.T) {
	ce := compileError(t, "fn main() -> void { 1 < 2 < 3; }")
	be.Equal(t, ce.Kind, ErrExpectedToken)
	be.Equal(t, ce.Found, LT)
	be.Equal(t, ce.Expected, []TokenType{SEMICOLON})
}

func TestBooleanIsNotArithmetic(t *testing.T) {
	ce := compileError(t, "fn main() -> void { (1 < 2) + (1 < 2); }")
	be.Equal(t, ce.Kind, ErrTypeMismatch)
	be.True(t, strings.Contains(ce.Detail, "boolean"))
}

func TestCastOfStringRelabelsOnly(t *testing.T) {
	prog := compile(t, `fn main() -> void { putint("x" as int); }`)
	be.Equal(t, ops(findFunction(t, prog, "main").Code), []string{
		"StackAlloc(0)", "Push(1)", "CallName(0)", "Ret",
	})
}

func TestUnaryMinusBindsTighterThanCast(t *testing.T) {
	prog := compile(t, `fn main() -> void { -1 as double; }`)
	be.Equal(t, ops(findFunction(t, prog, "main").Code), []string{
		"Push(1)", "NegI", "IToF", "PopN(1)", "Ret",
	})
}

func TestCastToVoid(t *testing.T) {
	ce := compileError(t, "fn main() -> void { 1 as void; }")
	be.Equal(t, ce.Kind, ErrTypeMismatch)
	be.Equal(t, ce.Pos, Pos{Line: 1, Column: 26})
	be.Equal(t, ce.Detail, "cannot cast int to void")
}

func TestMissingReturnValue(t *testing.T) {
	ce := compileError(t, "fn main() -> int { return; }")
	be.Equal(t, ce.Kind, ErrTypeMismatch)
	be.Equal(t, ce.Pos, Pos{Line: 1, Column: 20})
}

func TestArgumentCountTooFew(t *testing.T) {
	ce := compileError(t, "fn f(a: int, b: int) -> void {}\nfn main() -> void { f(1); }")
	be.Equal(t, ce.Kind, ErrArgumentCount)
	be.Equal(t, ce.Pos, Pos{Line: 2, Column: 21})
	be.True(t, strings.Contains(ce.Detail, "takes 2 arguments, got 1"))
}

func TestParametersAreScopedToTheirFunction(t *testing.T) {
	ce := compileError(t, "fn f(a: int) -> void {}\nfn main() -> void { putint(a); }")
	be.Equal(t, ce.Kind, ErrNotDeclared)
	be.Equal(t, ce.Pos, Pos{Line: 2, Column: 28})
}

func TestLaterFunctionIsNotYetDeclared(t *testing.T) {
	ce := compileError(t, "fn main() -> void { later(); }\nfn later() -> void {}")
	be.Equal(t, ce.Kind, ErrNotDeclared)
}

func TestDuplicateFunction(t *testing.T) {
	ce := compileError(t, "fn main() -> void {}\nfn main() -> void {}")
	be.Equal(t, ce.Kind, ErrDuplicateDeclaration)
	be.Equal(t, ce.Pos, Pos{Line: 2, Column: 4})
}

func TestExpectedTokenMessage(t *testing.T) {
	ce := compileError(t, "fn main() -> void { let x: int = 1 }")
	be.Equal(t, ce.Kind, ErrExpectedToken)
	be.Equal(t, ce.Error(), "1:36: ExpectedToken: expected SEMICOLON, found R_BRACE")
}

func TestLexErrorsSurfaceFromCompile(t *testing.T) {
	ce := compileError(t, "fn main() -> void { 99999999999; }")
	be.Equal(t, ce.Kind, ErrIntegerOverflow)
	be.True(t, ce.Kind.IsTokenize())
	be.True(t, !ErrTypeMismatch.IsTokenize())
}

func TestCompileIsDeterministic(t *testing.T) {
	src := `
let g: int = 3;
fn sq(x: int) -> int { return x * x; }
fn main() -> void {
    let i: int = 0;
    while i < g { putint(sq(i)); i = i + 1; }
    putstr("done");
}
`
	first := compile(t, src)
	second := compile(t, src)
	be.Equal(t, first.SExpr().String(), second.SExpr().String())
}
