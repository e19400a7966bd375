package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/strager/c0/sexy"
)

// WriteTokens writes one line per token. The trailing EOF token is not listed.
func WriteTokens(w io.Writer, tokens []Token) error {
	bw := bufio.NewWriter(w)
	for _, tok := range tokens {
		if tok.Type == EOF {
			break
		}
		fmt.Fprintln(bw, tok)
	}
	return bw.Flush()
}

// hex32 renders n as four big-endian hex bytes.
func hex32(n int) string {
	u := uint32(n)
	return fmt.Sprintf("%02x %02x %02x %02x", byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func quoteByte(b byte) string {
	switch b {
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\r':
		return `'\r'`
	case '\\':
		return `'\\'`
	case '\'':
		return `'\''`
	}
	if b >= 0x20 && b < 0x7f {
		return "'" + string(rune(b)) + "'"
	}
	return fmt.Sprintf(`'\x%02x'`, b)
}

// QuoteBytes renders the bytes of name as space-separated quoted characters,
// the way the assembler expects pool names.
func QuoteBytes(name string) string {
	parts := make([]string, len(name))
	for i := 0; i < len(name); i++ {
		parts[i] = quoteByte(name[i])
	}
	return strings.Join(parts, " ")
}

// ParseQuotedBytes reads back the output of QuoteBytes.
func ParseQuotedBytes(s string) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == ' ' {
			i++
			continue
		}
		if s[i] != '\'' {
			return nil, fmt.Errorf("offset %d: expected ', found %q", i, s[i])
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("offset %d: unterminated quoted byte", i)
		}

		b := s[i]
		i++
		if b == '\\' {
			if i >= len(s) {
				return nil, fmt.Errorf("offset %d: unterminated escape", i)
			}
			esc := s[i]
			i++
			switch esc {
			case 'n':
				b = '\n'
			case 't':
				b = '\t'
			case 'r':
				b = '\r'
			case '\\', '\'':
				b = esc
			case 'x':
				if i+2 > len(s) {
					return nil, fmt.Errorf("offset %d: short \\x escape", i)
				}
				v, err := strconv.ParseUint(s[i:i+2], 16, 8)
				if err != nil {
					return nil, fmt.Errorf("offset %d: %w", i, err)
				}
				b = byte(v)
				i += 2
			default:
				return nil, fmt.Errorf("offset %d: unknown escape \\%c", i-1, esc)
			}
		}

		if i >= len(s) || s[i] != '\'' {
			return nil, fmt.Errorf("offset %d: expected closing '", i)
		}
		i++
		out = append(out, b)
	}
	return out, nil
}

// WriteProgram renders the pool block followed by every function listing.
func WriteProgram(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)

	if len(p.Pool) > 0 {
		fmt.Fprintln(bw, "72 30 3b 3e")
		fmt.Fprintln(bw, "00 00 00 01")
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, hex32(len(p.Pool)+1))
		fmt.Fprintln(bw)
		fmt.Fprintln(bw)
	}
	for _, e := range p.Pool {
		switch e.Kind {
		case PoolSlot:
			fmt.Fprintln(bw, "00")
			fmt.Fprintln(bw, "00 00 00 08")
			fmt.Fprintln(bw, "00 00 00 00 00 00 00 00")
		case PoolName:
			fmt.Fprintln(bw, "01")
			fmt.Fprintln(bw, hex32(len(e.Name)))
			fmt.Fprintln(bw, QuoteBytes(e.Name))
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "01")
	fmt.Fprintln(bw, hex32(len(p.Start.Name)))
	fmt.Fprintln(bw, QuoteBytes(p.Start.Name))
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, hex32(len(p.Functions)+1))
	fmt.Fprintln(bw)
	fmt.Fprintln(bw)

	writeFunction(bw, p.Start)
	for _, fn := range p.Functions {
		writeFunction(bw, fn)
	}
	return bw.Flush()
}

func writeFunction(w io.Writer, fn Function) {
	fmt.Fprintf(w, "fn [%d] %d %d -> %d {\n", fn.PoolIndex, fn.Locals, fn.Params, fn.ReturnKind)
	for i, in := range fn.Code {
		fmt.Fprintf(w, "    %d: %s\n", i, in)
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)
}

// SExpr renders the program for debugging and for pattern tests:
//
//	(program (pool slot (name "putint") ...) (fn "_start" 2 0 0 0 ...) ...)
func (p *Program) SExpr() *sexy.Node {
	items := []*sexy.Node{sexy.NewSymbol("program"), PoolSExpr(p.Pool), p.Start.SExpr()}
	for _, fn := range p.Functions {
		items = append(items, fn.SExpr())
	}
	return sexy.NewList(items)
}

// PoolSExpr renders pool entries as (pool slot (name "x") ...).
func PoolSExpr(pool []PoolEntry) *sexy.Node {
	items := []*sexy.Node{sexy.NewSymbol("pool")}
	for _, e := range pool {
		if e.Kind == PoolSlot {
			items = append(items, sexy.NewSymbol("slot"))
			continue
		}
		items = append(items, sexy.NewList([]*sexy.Node{sexy.NewSymbol("name"), sexy.NewString(e.Name)}))
	}
	return sexy.NewList(items)
}

// SExpr renders fn as (fn "name" pool locals params ret instruction...).
func (fn Function) SExpr() *sexy.Node {
	items := []*sexy.Node{
		sexy.NewSymbol("fn"),
		sexy.NewString(fn.Name),
		sexy.NewInteger(strconv.Itoa(fn.PoolIndex)),
		sexy.NewInteger(strconv.Itoa(fn.Locals)),
		sexy.NewInteger(strconv.Itoa(fn.Params)),
		sexy.NewInteger(strconv.Itoa(fn.ReturnKind)),
	}
	for _, in := range fn.Code {
		items = append(items, in.SExpr())
	}
	return sexy.NewList(items)
}

// SExpr renders an instruction as a bare symbol, or (Op operand).
func (in Instruction) SExpr() *sexy.Node {
	if !in.HasOperand {
		return sexy.NewSymbol(string(in.Op))
	}
	return sexy.NewList([]*sexy.Node{
		sexy.NewSymbol(string(in.Op)),
		sexy.NewInteger(strconv.FormatInt(in.Operand, 10)),
	})
}
