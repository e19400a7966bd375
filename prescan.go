package main

// PoolEntryKind distinguishes global variable slots from name constants.
type PoolEntryKind int

const (
	PoolSlot PoolEntryKind = iota // 8 zero bytes backing a global variable
	PoolName                      // a function name or string literal
)

// PoolEntry is one constant-pool slot.
type PoolEntry struct {
	Kind PoolEntryKind
	Name string
}

// FunctionSize pairs a function with the number of let/const statements in its
// body.
type FunctionSize struct {
	Name   string
	Locals int
}

// PoolPlan is the pre-scanner's result. The analyser addresses globals,
// library calls, string literals and functions by the indices fixed here.
type PoolPlan struct {
	Pool      []PoolEntry
	Functions []FunctionSize

	// Sites maps the buffer index of a token that produced a pool entry to
	// that entry's index: top-level let/const keywords, library function
	// identifiers and string literals inside function bodies.
	Sites map[int]int

	// FunctionSlots holds the pool index of each function's name, in
	// declaration order.
	FunctionSlots []int
}

func (p *PoolPlan) add(e PoolEntry) int {
	p.Pool = append(p.Pool, e)
	return len(p.Pool) - 1
}

// FunctionID returns the 1-based declaration-order id of the first planned
// function called name, or 0.
func (p *PoolPlan) FunctionID(name string) int {
	for i, fn := range p.Functions {
		if fn.Name == name {
			return i + 1
		}
	}
	return 0
}

// PrescanPool walks the token stream once, tracking brace depth only, and lays
// out the constant pool. It performs no checking: malformed input is left for
// the analyser to report.
func PrescanPool(ts *TokenStream) *PoolPlan {
	plan := &PoolPlan{Sites: make(map[int]int)}

	for tok := ts.Peek(); tok.Type != FN_KW && tok.Type != EOF; tok = ts.Peek() {
		if tok.Type == LET_KW || tok.Type == CONST_KW {
			plan.Sites[ts.Index()] = plan.add(PoolEntry{Kind: PoolSlot})
		}
		ts.Next()
	}

	for ts.Peek().Type != EOF {
		if ts.Peek().Type != FN_KW {
			ts.Next()
			continue
		}
		ts.Next()
		name := ts.Next().Literal

		for t := ts.Peek().Type; t != L_BRACE && t != EOF; t = ts.Peek().Type {
			ts.Next()
		}
		ts.Next()

		locals := 0
		for depth := 1; depth > 0 && ts.Peek().Type != EOF; {
			idx := ts.Index()
			tok := ts.Next()
			switch tok.Type {
			case L_BRACE:
				depth++
			case R_BRACE:
				depth--
			case LET_KW, CONST_KW:
				locals++
			case IDENT:
				if isStdlibName(tok.Literal) {
					plan.Sites[idx] = plan.add(PoolEntry{Kind: PoolName, Name: tok.Literal})
				}
			case STRING_LITERAL:
				plan.Sites[idx] = plan.add(PoolEntry{Kind: PoolName, Name: tok.Str})
			}
		}

		plan.FunctionSlots = append(plan.FunctionSlots, plan.add(PoolEntry{Kind: PoolName, Name: name}))
		plan.Functions = append(plan.Functions, FunctionSize{Name: name, Locals: locals})
	}
	return plan
}
