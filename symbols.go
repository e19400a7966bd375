package main

import "fmt"

// Type is a semantic type. Boolean is only ever the result of a comparison.
type Type int

const (
	TypeVoid Type = iota
	TypeInt
	TypeDouble
	TypeString
	TypeBoolean
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// typeFromName maps the text of a TY token to its type.
func typeFromName(name string) Type {
	switch name {
	case "int":
		return TypeInt
	case "double":
		return TypeDouble
	default:
		return TypeVoid
	}
}

// IsNumeric reports whether arithmetic and comparisons are defined on t.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeDouble
}

// AddrKind selects which address instruction loads a variable.
type AddrKind int

const (
	AddrNone AddrKind = iota // functions have no storage
	AddrParam
	AddrLocal
	AddrGlobal
)

// Signature describes something callable.
type Signature struct {
	Params []Type
	Result Type

	// Exactly one of these identifies the callee.
	Stdlib bool // called with CallName through a pool entry
	ID     int  // declaration-order id for Call
}

// Symbol is one entry of the symbol table.
type Symbol struct {
	Name        string
	Type        Type // value type, or the result type of a function
	Constant    bool
	Initialized bool
	Layer       int

	Addr AddrKind
	Slot int

	Func *Signature // non-nil for functions
}

// IsFunction reports whether the symbol is callable.
func (s *Symbol) IsFunction() bool {
	return s.Func != nil
}

// stdlibSignatures lists the built-in functions imported from the VM.
var stdlibSignatures = map[string]Signature{
	"getint":    {Result: TypeInt},
	"getdouble": {Result: TypeDouble},
	"getchar":   {Result: TypeInt},
	"putint":    {Params: []Type{TypeInt}, Result: TypeVoid},
	"putdouble": {Params: []Type{TypeDouble}, Result: TypeVoid},
	"putchar":   {Params: []Type{TypeInt}, Result: TypeVoid},
	"putstr":    {Params: []Type{TypeString}, Result: TypeVoid},
	"putln":     {Result: TypeVoid},
}

// isStdlibName reports whether name is one of the built-in functions.
func isStdlibName(name string) bool {
	_, ok := stdlibSignatures[name]
	return ok
}

// scope is one frame of the symbol table.
type scope struct {
	layer   int
	symbols map[string]*Symbol
}

func newScope(layer int) *scope {
	return &scope{layer: layer, symbols: make(map[string]*Symbol)}
}

// SymbolTable has exactly two frames: the global frame, and the frame of the
// function currently being compiled. Blocks inside a function share its frame.
type SymbolTable struct {
	global   *scope
	function *scope
}

// NewSymbolTable returns a table whose global frame holds the standard library.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{global: newScope(0)}
	for name, sig := range stdlibSignatures {
		sig.Stdlib = true
		st.global.symbols[name] = &Symbol{
			Name:        name,
			Type:        sig.Result,
			Constant:    true,
			Initialized: true,
			Func:        &sig,
		}
	}
	return st
}

// Layer returns 0 at program level and 1 inside a function.
func (st *SymbolTable) Layer() int {
	if st.function != nil {
		return st.function.layer
	}
	return st.global.layer
}

func (st *SymbolTable) current() *scope {
	if st.function != nil {
		return st.function
	}
	return st.global
}

// EnterFunction pushes a fresh function frame.
func (st *SymbolTable) EnterFunction() {
	st.function = newScope(st.global.layer + 1)
}

// ExitFunction drops the function frame and every symbol declared in it.
func (st *SymbolTable) ExitFunction() {
	st.function = nil
}

// Declare adds sym to the current frame.
func (st *SymbolTable) Declare(sym *Symbol) error {
	return st.declareIn(st.current(), sym)
}

// DeclareGlobal adds sym to the global frame regardless of the current layer.
func (st *SymbolTable) DeclareGlobal(sym *Symbol) error {
	return st.declareIn(st.global, sym)
}

func (st *SymbolTable) declareIn(sc *scope, sym *Symbol) error {
	if _, exists := sc.symbols[sym.Name]; exists {
		return fmt.Errorf("'%s' is already declared in this scope", sym.Name)
	}
	sym.Layer = sc.layer
	sc.symbols[sym.Name] = sym
	return nil
}

// Lookup finds name in the function frame, then in the global frame.
func (st *SymbolTable) Lookup(name string) *Symbol {
	if st.function != nil {
		if sym, ok := st.function.symbols[name]; ok {
			return sym
		}
	}
	return st.global.symbols[name]
}
