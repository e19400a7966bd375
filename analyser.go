package main

import (
	"io"
)

// Program is the result of a successful compilation.
type Program struct {
	// Pool is the constant pool without the trailing "_start" entry, which the
	// emitter synthesizes at index len(Pool).
	Pool      []PoolEntry
	Start     Function
	Functions []Function
}

// Compile runs the whole pipeline over one source text. The source is lexed
// once; the pre-scan and the analyser each walk their own cursor over the
// buffered tokens.
func Compile(r io.Reader) (*Program, error) {
	tokens, err := Tokenize(r, false)
	if err != nil {
		return nil, err
	}
	plan := PrescanPool(NewTokenStream(tokens))
	return NewAnalyser(NewTokenStream(tokens), plan).Analyse()
}

// Analyser parses, type checks and emits code in a single recursive-descent
// pass. Every rule emits its instructions directly and returns the type of what
// it parsed.
type Analyser struct {
	ts   *TokenStream
	plan *PoolPlan
	syms *SymbolTable

	pool      []PoolEntry
	start     *FunctionBuilder // global initializers and the call to main
	fb        *FunctionBuilder // where code goes right now
	functions []Function
}

// NewAnalyser returns an analyser that addresses the pool laid out by plan.
func NewAnalyser(ts *TokenStream, plan *PoolPlan) *Analyser {
	start := newFunctionBuilder("_start", TypeVoid)
	return &Analyser{
		ts:    ts,
		plan:  plan,
		syms:  NewSymbolTable(),
		pool:  append([]PoolEntry(nil), plan.Pool...),
		start: start,
		fb:    start,
	}
}

func (a *Analyser) check(tt TokenType) bool {
	return a.ts.Peek().Type == tt
}

func (a *Analyser) nextIf(tt TokenType) bool {
	if a.check(tt) {
		a.ts.Next()
		return true
	}
	return false
}

func (a *Analyser) expect(tt TokenType) (Token, error) {
	tok := a.ts.Peek()
	if tok.Type != tt {
		return Token{}, expectedError(tok, tt)
	}
	return a.ts.Next(), nil
}

// Analyse compiles the program: {decl_stmt} {function} EOF.
func (a *Analyser) Analyse() (*Program, error) {
	for a.check(LET_KW) || a.check(CONST_KW) {
		if err := a.declStmt(); err != nil {
			return nil, err
		}
	}

	mainID := a.plan.FunctionID("main")
	if mainID == 0 {
		return nil, newError(ErrNoMainFunction, a.ts.Peek().Start, "no function named main")
	}

	for a.check(FN_KW) {
		if err := a.function(); err != nil {
			return nil, err
		}
	}
	if !a.check(EOF) {
		return nil, expectedError(a.ts.Peek(), FN_KW, EOF)
	}

	mainRet := 0
	if sym := a.syms.Lookup("main"); sym != nil && sym.IsFunction() && sym.Func.Result != TypeVoid {
		mainRet = 1
	}
	a.start.EmitArg(OpStackAlloc, int64(mainRet))
	a.start.EmitArg(OpCall, int64(mainID))
	if mainRet == 1 {
		a.start.EmitArg(OpPopN, 1)
	}

	return &Program{
		Pool: a.pool,
		Start: Function{
			Name:      "_start",
			PoolIndex: len(a.pool),
			Code:      a.start.code,
		},
		Functions: a.functions,
	}, nil
}

// globalSlot returns the pool slot planned for the top-level declaration whose
// keyword sits at token index idx.
func (a *Analyser) globalSlot(idx int) int {
	if slot, ok := a.plan.Sites[idx]; ok {
		return slot
	}
	a.pool = append(a.pool, PoolEntry{Kind: PoolSlot})
	return len(a.pool) - 1
}

// poolName returns the pool index holding name for the token at idx. Tokens in
// function bodies were planned by the pre-scan; tokens in global initializers
// reuse an equal name entry or append a new one.
func (a *Analyser) poolName(idx int, name string) int {
	if slot, ok := a.plan.Sites[idx]; ok {
		return slot
	}
	for i, e := range a.pool {
		if e.Kind == PoolName && e.Name == name {
			return i
		}
	}
	a.pool = append(a.pool, PoolEntry{Kind: PoolName, Name: name})
	return len(a.pool) - 1
}

func (a *Analyser) emitAddress(sym *Symbol) {
	switch sym.Addr {
	case AddrParam:
		a.fb.EmitArg(OpArgA, int64(sym.Slot))
	case AddrLocal:
		a.fb.EmitArg(OpLocA, int64(sym.Slot))
	case AddrGlobal:
		a.fb.EmitArg(OpGlobA, int64(sym.Slot))
	}
}

func (a *Analyser) declare(sym *Symbol, at Token) error {
	if err := a.syms.Declare(sym); err != nil {
		return newError(ErrDuplicateDeclaration, at.Start, "%v", err)
	}
	return nil
}

// =============================================================================
// DECLARATIONS
// =============================================================================

// declStmt: const IDENT : ty = expr ; | let IDENT : ty [= expr] ;
func (a *Analyser) declStmt() error {
	kwIdx := a.ts.Index()
	kw := a.ts.Next()
	constant := kw.Type == CONST_KW

	nameTok, err := a.expect(IDENT)
	if err != nil {
		return err
	}
	if _, err := a.expect(COLON); err != nil {
		return err
	}
	tyTok, err := a.expect(TY)
	if err != nil {
		return err
	}
	ty := typeFromName(tyTok.Literal)
	if ty == TypeVoid {
		return newError(ErrTypeMismatch, tyTok.Start, "variable '%s' cannot have type void", nameTok.Literal)
	}

	sym := &Symbol{Name: nameTok.Literal, Type: ty, Constant: constant}
	if a.syms.Layer() == 0 {
		sym.Addr = AddrGlobal
		sym.Slot = a.globalSlot(kwIdx)
	} else {
		sym.Addr = AddrLocal
		sym.Slot = a.fb.AllocLocal()
	}

	if constant || a.check(ASSIGN) {
		assignTok, err := a.expect(ASSIGN)
		if err != nil {
			return err
		}
		a.emitAddress(sym)
		t, err := a.expression()
		if err != nil {
			return err
		}
		if t != ty {
			return newError(ErrTypeMismatch, assignTok.Start, "cannot initialize %s '%s' with %s", ty, sym.Name, t)
		}
		a.fb.Emit(OpStore64)
		sym.Initialized = true
	}
	if _, err := a.expect(SEMICOLON); err != nil {
		return err
	}
	return a.declare(sym, nameTok)
}

type param struct {
	tok      Token
	ty       Type
	constant bool
}

// paramDecl: [const] IDENT : ty
func (a *Analyser) paramDecl() (param, error) {
	constant := a.nextIf(CONST_KW)
	nameTok, err := a.expect(IDENT)
	if err != nil {
		return param{}, err
	}
	if _, err := a.expect(COLON); err != nil {
		return param{}, err
	}
	tyTok, err := a.expect(TY)
	if err != nil {
		return param{}, err
	}
	ty := typeFromName(tyTok.Literal)
	if ty == TypeVoid {
		return param{}, newError(ErrTypeMismatch, tyTok.Start, "parameter '%s' cannot have type void", nameTok.Literal)
	}
	return param{tok: nameTok, ty: ty, constant: constant}, nil
}

// function: fn IDENT ( [params] ) -> ty block
func (a *Analyser) function() error {
	a.ts.Next() // fn
	nameTok, err := a.expect(IDENT)
	if err != nil {
		return err
	}
	name := nameTok.Literal
	ordinal := len(a.functions)

	if _, err := a.expect(L_PAREN); err != nil {
		return err
	}
	var params []param
	if !a.check(R_PAREN) {
		for {
			p, err := a.paramDecl()
			if err != nil {
				return err
			}
			params = append(params, p)
			if !a.nextIf(COMMA) {
				break
			}
		}
	}
	if _, err := a.expect(R_PAREN); err != nil {
		return err
	}
	if _, err := a.expect(ARROW); err != nil {
		return err
	}
	tyTok, err := a.expect(TY)
	if err != nil {
		return err
	}
	result := typeFromName(tyTok.Literal)

	sig := &Signature{Result: result, ID: ordinal + 1}
	for _, p := range params {
		sig.Params = append(sig.Params, p.ty)
	}
	fnSym := &Symbol{Name: name, Type: result, Constant: true, Initialized: true, Func: sig}
	if err := a.syms.DeclareGlobal(fnSym); err != nil {
		return newError(ErrDuplicateDeclaration, nameTok.Start, "%v", err)
	}

	fb := newFunctionBuilder(name, result)
	fb.params = len(params)
	a.syms.EnterFunction()
	defer a.syms.ExitFunction()
	for i, p := range params {
		sym := &Symbol{
			Name:        p.tok.Literal,
			Type:        p.ty,
			Constant:    p.constant,
			Initialized: true,
			Addr:        AddrParam,
			Slot:        i + fb.retSlots,
		}
		if err := a.declare(sym, p.tok); err != nil {
			return err
		}
	}

	a.fb = fb
	defer func() { a.fb = a.start }()
	if err := a.block(); err != nil {
		return err
	}
	fb.Emit(OpRet)

	a.functions = append(a.functions, Function{
		Name:       name,
		ID:         ordinal + 1,
		PoolIndex:  a.plan.FunctionSlots[ordinal],
		Locals:     a.plan.Functions[ordinal].Locals,
		Params:     fb.params,
		ReturnKind: fb.retSlots,
		Code:       fb.code,
	})
	return nil
}

// =============================================================================
// STATEMENTS
// =============================================================================

func (a *Analyser) statement() error {
	switch a.ts.Peek().Type {
	case IF_KW:
		return a.ifStmt()
	case WHILE_KW:
		return a.whileStmt()
	case RETURN_KW:
		return a.returnStmt()
	case BREAK_KW:
		return a.breakStmt()
	case CONTINUE_KW:
		return a.continueStmt()
	case SEMICOLON:
		a.ts.Next()
		return nil
	case L_BRACE:
		return a.block()
	case LET_KW, CONST_KW:
		return a.declStmt()
	default:
		return a.exprStmt()
	}
}

// block: { {stmt} }. Blocks do not open a scope.
func (a *Analyser) block() error {
	if _, err := a.expect(L_BRACE); err != nil {
		return err
	}
	for !a.check(R_BRACE) {
		if a.check(EOF) {
			return expectedError(a.ts.Peek(), R_BRACE)
		}
		if err := a.statement(); err != nil {
			return err
		}
	}
	a.ts.Next()
	return nil
}

// exprStmt: IDENT = expr ; | expr ;
func (a *Analyser) exprStmt() error {
	if a.check(IDENT) && a.ts.PeekAt(1).Type == ASSIGN {
		return a.assignment()
	}
	t, err := a.expression()
	if err != nil {
		return err
	}
	if t != TypeVoid {
		a.fb.EmitArg(OpPopN, 1)
	}
	_, err = a.expect(SEMICOLON)
	return err
}

func (a *Analyser) assignment() error {
	nameTok := a.ts.Next()
	sym := a.syms.Lookup(nameTok.Literal)
	if sym == nil {
		return newError(ErrNotDeclared, nameTok.Start, "'%s' is not declared", nameTok.Literal)
	}
	if sym.IsFunction() || sym.Constant {
		return newError(ErrAssignToConstant, nameTok.Start, "cannot assign to '%s'", nameTok.Literal)
	}
	a.emitAddress(sym)

	assignTok := a.ts.Next()
	t, err := a.expression()
	if err != nil {
		return err
	}
	if t != sym.Type {
		return newError(ErrTypeMismatch, assignTok.Start, "cannot assign %s to %s '%s'", t, sym.Type, sym.Name)
	}
	a.fb.Emit(OpStore64)
	sym.Initialized = true

	_, err = a.expect(SEMICOLON)
	return err
}

// condition parses the test of an if or while. Booleans and ints are accepted.
func (a *Analyser) condition() error {
	tok := a.ts.Peek()
	t, err := a.expression()
	if err != nil {
		return err
	}
	if t != TypeBoolean && t != TypeInt {
		return newError(ErrTypeMismatch, tok.Start, "condition has type %s", t)
	}
	return nil
}

// ifStmt: if cond block [else (ifStmt | block)]
func (a *Analyser) ifStmt() error {
	a.ts.Next() // if
	if err := a.condition(); err != nil {
		return err
	}
	a.fb.EmitArg(OpBrTrue, 1)
	skipThen := a.fb.EmitJump()
	if err := a.block(); err != nil {
		return err
	}

	if !a.nextIf(ELSE_KW) {
		a.fb.PatchJump(skipThen, a.fb.Len())
		return nil
	}

	skipElse := a.fb.EmitJump()
	a.fb.PatchJump(skipThen, a.fb.Len())
	var err error
	if a.check(IF_KW) {
		err = a.ifStmt()
	} else {
		err = a.block()
	}
	if err != nil {
		return err
	}
	a.fb.PatchJump(skipElse, a.fb.Len())
	return nil
}

// whileStmt: while cond block
func (a *Analyser) whileStmt() error {
	a.ts.Next() // while
	a.fb.EmitArg(OpBr, 0)
	condStart := a.fb.Len()
	if err := a.condition(); err != nil {
		return err
	}
	a.fb.EmitArg(OpBrTrue, 1)
	exit := a.fb.EmitJump()

	lp := a.fb.pushLoop(condStart)
	if err := a.block(); err != nil {
		return err
	}
	a.fb.popLoop()
	a.fb.EmitJumpTo(condStart)

	end := a.fb.Len()
	a.fb.PatchJump(exit, end)
	for _, at := range lp.breaks {
		a.fb.PatchJump(at, end)
	}
	return nil
}

func (a *Analyser) breakStmt() error {
	tok := a.ts.Next()
	lp := a.fb.innermostLoop()
	if lp == nil {
		return newError(ErrBreakOutsideLoop, tok.Start, "break is not inside a loop")
	}
	lp.breaks = append(lp.breaks, a.fb.EmitJump())
	_, err := a.expect(SEMICOLON)
	return err
}

func (a *Analyser) continueStmt() error {
	tok := a.ts.Next()
	lp := a.fb.innermostLoop()
	if lp == nil {
		return newError(ErrBreakOutsideLoop, tok.Start, "continue is not inside a loop")
	}
	a.fb.EmitJumpTo(lp.condStart)
	_, err := a.expect(SEMICOLON)
	return err
}

// returnStmt: return [expr] ;
func (a *Analyser) returnStmt() error {
	tok := a.ts.Next()
	if a.nextIf(SEMICOLON) {
		if a.fb.result != TypeVoid {
			return newError(ErrTypeMismatch, tok.Start, "missing return value in function returning %s", a.fb.result)
		}
		a.fb.Emit(OpRet)
		return nil
	}

	if a.fb.result == TypeVoid {
		return newError(ErrTypeMismatch, tok.Start, "function '%s' returns void", a.fb.name)
	}
	a.fb.EmitArg(OpArgA, 0)
	t, err := a.expression()
	if err != nil {
		return err
	}
	if t != a.fb.result {
		return newError(ErrTypeMismatch, tok.Start, "cannot return %s from function returning %s", t, a.fb.result)
	}
	if _, err := a.expect(SEMICOLON); err != nil {
		return err
	}
	a.fb.Emit(OpStore64)
	a.fb.Emit(OpRet)
	return nil
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

func isComparison(tt TokenType) bool {
	switch tt {
	case LT, GT, LE, GE, EQ, NEQ:
		return true
	}
	return false
}

// checkOperands enforces that both sides of a binary operator have the same
// numeric type.
func checkOperands(op Token, left, right Type) error {
	if left != right {
		return newError(ErrTypeMismatch, op.Start, "operands of '%s' have types %s and %s", op.Literal, left, right)
	}
	if !left.IsNumeric() {
		return newError(ErrTypeMismatch, op.Start, "operator '%s' is not defined on %s", op.Literal, left)
	}
	return nil
}

// expression parses at most one comparison between two additive expressions.
func (a *Analyser) expression() (Type, error) {
	left, err := a.additive()
	if err != nil {
		return left, err
	}
	op := a.ts.Peek()
	if !isComparison(op.Type) {
		return left, nil
	}
	a.ts.Next()
	right, err := a.additive()
	if err != nil {
		return right, err
	}
	if err := checkOperands(op, left, right); err != nil {
		return TypeVoid, err
	}

	if left == TypeInt {
		a.fb.Emit(OpCmpI)
	} else {
		a.fb.Emit(OpCmpF)
	}
	switch op.Type {
	case LT:
		a.fb.Emit(OpSetLt)
	case GT:
		a.fb.Emit(OpSetGt)
	case LE:
		a.fb.Emit(OpSetGt)
		a.fb.Emit(OpNot)
	case GE:
		a.fb.Emit(OpSetLt)
		a.fb.Emit(OpNot)
	case EQ:
		a.fb.Emit(OpNot)
	case NEQ:
		// CmpI/CmpF already leave a non-zero value when the operands differ
	}
	return TypeBoolean, nil
}

// binaryOps selects the int and double opcode for each arithmetic operator.
var binaryOps = map[TokenType][2]Opcode{
	PLUS:  {OpAddI, OpAddF},
	MINUS: {OpSubI, OpSubF},
	MUL:   {OpMulI, OpMulF},
	DIV:   {OpDivI, OpDivF},
}

func (a *Analyser) emitBinary(op Token, t Type) {
	ops := binaryOps[op.Type]
	if t == TypeInt {
		a.fb.Emit(ops[0])
	} else {
		a.fb.Emit(ops[1])
	}
}

// additive: multiplicative {(+|-) multiplicative}
func (a *Analyser) additive() (Type, error) {
	left, err := a.multiplicative()
	if err != nil {
		return left, err
	}
	for a.check(PLUS) || a.check(MINUS) {
		op := a.ts.Next()
		right, err := a.multiplicative()
		if err != nil {
			return right, err
		}
		if err := checkOperands(op, left, right); err != nil {
			return TypeVoid, err
		}
		a.emitBinary(op, left)
	}
	return left, nil
}

// multiplicative: cast {(*|/) cast}
func (a *Analyser) multiplicative() (Type, error) {
	left, err := a.cast()
	if err != nil {
		return left, err
	}
	for a.check(MUL) || a.check(DIV) {
		op := a.ts.Next()
		right, err := a.cast()
		if err != nil {
			return right, err
		}
		if err := checkOperands(op, left, right); err != nil {
			return TypeVoid, err
		}
		a.emitBinary(op, left)
	}
	return left, nil
}

// cast: unary {as ty}. Only int<->double converts; any other non-void target
// just relabels the value.
func (a *Analyser) cast() (Type, error) {
	t, err := a.unary()
	if err != nil {
		return t, err
	}
	for a.nextIf(AS_KW) {
		tyTok, err := a.expect(TY)
		if err != nil {
			return t, err
		}
		target := typeFromName(tyTok.Literal)
		if target == TypeVoid {
			return t, newError(ErrTypeMismatch, tyTok.Start, "cannot cast %s to void", t)
		}
		switch {
		case t == TypeInt && target == TypeDouble:
			a.fb.Emit(OpIToF)
		case t == TypeDouble && target == TypeInt:
			a.fb.Emit(OpFToI)
		}
		t = target
	}
	return t, nil
}

// unary: - unary | primary
func (a *Analyser) unary() (Type, error) {
	if !a.check(MINUS) {
		return a.primary()
	}
	op := a.ts.Next()
	t, err := a.unary()
	if err != nil {
		return t, err
	}
	switch t {
	case TypeInt:
		a.fb.Emit(OpNegI)
	case TypeDouble:
		a.fb.Emit(OpNegF)
	default:
		return t, newError(ErrTypeMismatch, op.Start, "cannot negate %s", t)
	}
	return t, nil
}

// primary: ( expr ) | call | literal | IDENT
func (a *Analyser) primary() (Type, error) {
	idx := a.ts.Index()
	tok := a.ts.Peek()
	switch tok.Type {
	case L_PAREN:
		a.ts.Next()
		t, err := a.expression()
		if err != nil {
			return t, err
		}
		_, err = a.expect(R_PAREN)
		return t, err
	case UINT_LITERAL:
		a.ts.Next()
		a.fb.EmitArg(OpPush, tok.Int)
		return TypeInt, nil
	case DOUBLE_LITERAL:
		a.ts.Next()
		a.fb.EmitArg(OpPush, int64(tok.DoubleBits()))
		return TypeDouble, nil
	case CHAR_LITERAL:
		a.ts.Next()
		a.fb.EmitArg(OpPush, int64(tok.Char))
		return TypeInt, nil
	case STRING_LITERAL:
		a.ts.Next()
		a.fb.EmitArg(OpPush, int64(a.poolName(idx, tok.Str)))
		return TypeString, nil
	case IDENT:
		return a.identifier()
	}
	return TypeVoid, newError(ErrInvalidPrimaryExpression, tok.Start, "unexpected %s", tok.Type)
}

func (a *Analyser) identifier() (Type, error) {
	idx := a.ts.Index()
	tok := a.ts.Next()
	sym := a.syms.Lookup(tok.Literal)
	if sym == nil {
		return TypeVoid, newError(ErrNotDeclared, tok.Start, "'%s' is not declared", tok.Literal)
	}
	if sym.IsFunction() {
		return a.call(idx, tok, sym.Func)
	}
	if !sym.Initialized {
		return TypeVoid, newError(ErrNotInitialized, tok.Start, "'%s' is used before it is assigned", tok.Literal)
	}
	a.emitAddress(sym)
	a.fb.Emit(OpLoad64)
	return sym.Type, nil
}

// call: IDENT ( [expr {, expr}] )
func (a *Analyser) call(idx int, nameTok Token, sig *Signature) (Type, error) {
	retSlots := int64(0)
	if sig.Result != TypeVoid {
		retSlots = 1
	}
	a.fb.EmitArg(OpStackAlloc, retSlots)

	if _, err := a.expect(L_PAREN); err != nil {
		return TypeVoid, err
	}
	n := 0
	if !a.check(R_PAREN) {
		for {
			argTok := a.ts.Peek()
			t, err := a.expression()
			if err != nil {
				return t, err
			}
			if n < len(sig.Params) && t != sig.Params[n] {
				return t, newError(ErrTypeMismatch, argTok.Start, "argument %d of '%s' has type %s, want %s", n+1, nameTok.Literal, t, sig.Params[n])
			}
			n++
			if !a.nextIf(COMMA) {
				break
			}
		}
	}
	if _, err := a.expect(R_PAREN); err != nil {
		return TypeVoid, err
	}
	if n != len(sig.Params) {
		return TypeVoid, newError(ErrArgumentCount, nameTok.Start, "'%s' takes %d arguments, got %d", nameTok.Literal, len(sig.Params), n)
	}

	if sig.Stdlib {
		a.fb.EmitArg(OpCallName, int64(a.poolName(idx, nameTok.Literal)))
	} else {
		a.fb.EmitArg(OpCall, int64(sig.ID))
	}
	return sig.Result, nil
}
