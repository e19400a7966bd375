package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestNewSymbolTableHasStdlib(t *testing.T) {
	st := NewSymbolTable()
	be.Equal(t, st.Layer(), 0)

	for name, want := range stdlibSignatures {
		sym := st.Lookup(name)
		be.True(t, sym != nil)
		be.True(t, sym.IsFunction())
		be.True(t, sym.Func.Stdlib)
		be.True(t, sym.Constant)
		be.Equal(t, sym.Func.Result, want.Result)
		be.Equal(t, len(sym.Func.Params), len(want.Params))
	}

	be.Equal(t, st.Lookup("putstr").Func.Params, []Type{TypeString})
	be.Equal(t, st.Lookup("getdouble").Type, TypeDouble)
}

func TestStdlibSignaturesAreNotShared(t *testing.T) {
	a := NewSymbolTable().Lookup("putint").Func
	b := NewSymbolTable().Lookup("putchar").Func
	be.True(t, a != b)
	be.Equal(t, a.Params, []Type{TypeInt})
	be.Equal(t, b.Params, []Type{TypeInt})
}

func TestDeclareAndLookup(t *testing.T) {
	st := NewSymbolTable()
	be.True(t, st.Lookup("x") == nil)

	err := st.Declare(&Symbol{Name: "x", Type: TypeInt, Addr: AddrGlobal, Slot: 2})
	be.Err(t, err, nil)

	sym := st.Lookup("x")
	be.True(t, sym != nil)
	be.Equal(t, sym.Type, TypeInt)
	be.Equal(t, sym.Layer, 0)
	be.Equal(t, sym.Slot, 2)
	be.True(t, !sym.Initialized)
}

func TestDeclareDuplicate(t *testing.T) {
	st := NewSymbolTable()
	be.Err(t, st.Declare(&Symbol{Name: "x", Type: TypeInt}), nil)

	err := st.Declare(&Symbol{Name: "x", Type: TypeDouble})
	be.True(t, err != nil)
	be.Equal(t, err.Error(), "'x' is already declared in this scope")
	be.Equal(t, st.Lookup("x").Type, TypeInt)
}

func TestFunctionFrameShadowsGlobal(t *testing.T) {
	st := NewSymbolTable()
	be.Err(t, st.Declare(&Symbol{Name: "x", Type: TypeInt, Addr: AddrGlobal}), nil)

	st.EnterFunction()
	be.Equal(t, st.Layer(), 1)
	be.Err(t, st.Declare(&Symbol{Name: "x", Type: TypeDouble, Addr: AddrLocal}), nil)

	sym := st.Lookup("x")
	be.Equal(t, sym.Type, TypeDouble)
	be.Equal(t, sym.Layer, 1)
	be.Equal(t, sym.Addr, AddrLocal)

	st.ExitFunction()
	be.Equal(t, st.Layer(), 0)
	sym = st.Lookup("x")
	be.Equal(t, sym.Type, TypeInt)
	be.Equal(t, sym.Addr, AddrGlobal)
}

func TestExitFunctionDropsLocals(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()
	be.Err(t, st.Declare(&Symbol{Name: "tmp", Type: TypeInt}), nil)
	st.ExitFunction()
	be.True(t, st.Lookup("tmp") == nil)

	st.EnterFunction()
	be.True(t, st.Lookup("tmp") == nil)
	be.Err(t, st.Declare(&Symbol{Name: "tmp", Type: TypeInt}), nil)
}

func TestDeclareGlobalFromFunction(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()
	be.Err(t, st.DeclareGlobal(&Symbol{Name: "f", Func: &Signature{ID: 1}}), nil)
	st.ExitFunction()

	sym := st.Lookup("f")
	be.True(t, sym != nil)
	be.Equal(t, sym.Layer, 0)
	be.Equal(t, sym.Func.ID, 1)
}

func TestStdlibNamesCannotBeRedeclaredGlobally(t *testing.T) {
	st := NewSymbolTable()
	be.True(t, st.DeclareGlobal(&Symbol{Name: "putln"}) != nil)

	st.EnterFunction()
	be.Err(t, st.Declare(&Symbol{Name: "putln", Type: TypeInt}), nil)
}

func TestTypeHelpers(t *testing.T) {
	be.Equal(t, typeFromName("int"), TypeInt)
	be.Equal(t, typeFromName("double"), TypeDouble)
	be.Equal(t, typeFromName("void"), TypeVoid)

	be.True(t, TypeInt.IsNumeric())
	be.True(t, TypeDouble.IsNumeric())
	be.True(t, !TypeString.IsNumeric())
	be.True(t, !TypeBoolean.IsNumeric())

	be.Equal(t, TypeBoolean.String(), "boolean")
	be.Equal(t, Type(42).String(), "Type(42)")

	be.True(t, isStdlibName("getchar"))
	be.True(t, !isStdlibName("main"))
}
