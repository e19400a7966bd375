package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

const (
	replHistoryFile = ".c0_history"
	promptMain      = "c0> "
	promptCont      = "... "
)

const replHelp = `Enter a whole program. Input continues until every brace is closed.
Commands:
  :tokens   list the tokens of the programs that follow
  :analyse  compile the programs that follow (default)
  :check    only type-check the programs that follow
  :help     show this help
  :quit     leave the REPL
`

// replSession holds the state that survives between programs. Compile errors
// are part of the session output; failures of the session itself go to errOut.
type replSession struct {
	mode   Mode
	out    io.Writer
	errOut io.Writer
}

func (s *replSession) eval(src string) {
	var buf bytes.Buffer
	if err := run(Config{Mode: s.mode}, strings.NewReader(src), &buf); err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if s.mode == ModeCheck {
		fmt.Fprintln(s.out, "ok")
		return
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		fmt.Fprintf(s.errOut, "writing output: %v\n", err)
	}
}

// command handles a line starting with ':' and reports whether to exit.
func (s *replSession) command(line string) (exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case ":quit", ":exit":
		return true
	case ":help":
		fmt.Fprint(s.out, replHelp)
	case ":tokens", ":tokenize":
		s.mode = ModeTokenize
		fmt.Fprintln(s.out, "mode: tokenize")
	case ":analyse", ":analyze":
		s.mode = ModeAnalyse
		fmt.Fprintln(s.out, "mode: analyse")
	case ":check":
		s.mode = ModeCheck
		fmt.Fprintln(s.out, "mode: check")
	default:
		fmt.Fprintf(s.out, "unknown command %s. Type :help for help.\n", fields[0])
	}
	return false
}

// incomplete reports whether src needs more lines before it can be compiled:
// a brace or parenthesis is still open, or a string literal runs into the end
// of the input.
func incomplete(src string) bool {
	tokens, err := Tokenize(strings.NewReader(src), false)
	if err != nil {
		var ce *CompileError
		return errors.As(err, &ce) && ce.Kind == ErrUnterminatedLiteral &&
			strings.HasPrefix(ce.Detail, "unterminated string")
	}
	depth := 0
	for _, tok := range tokens {
		switch tok.Type {
		case L_BRACE, L_PAREN:
			depth++
		case R_BRACE, R_PAREN:
			depth--
		}
	}
	return depth > 0
}

// readProgram reads lines until the buffer is no longer incomplete. It returns
// false on end of input.
func readProgram(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the current buffer.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !incomplete(src) {
			return src, true
		}
	}
}

// history is the part of liner.State that persists entered programs.
type history interface {
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
}

// loadHistory reads path into h. A missing file is not an error.
func loadHistory(h history, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	defer f.Close()
	if _, err := h.ReadHistory(f); err != nil {
		return fmt.Errorf("loading history %s: %w", path, err)
	}
	return nil
}

func saveHistory(h history, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	if _, err := h.WriteHistory(f); err != nil {
		f.Close()
		return fmt.Errorf("saving history %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

func runREPL(out, errOut io.Writer) int {
	fmt.Fprintln(out, "c0 REPL. Type :help for help.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, replHistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if err := loadHistory(ln, histPath); err != nil {
		fmt.Fprintln(errOut, err)
	}

	s := &replSession{mode: ModeAnalyse, out: out, errOut: errOut}
	for {
		src, ok := readProgram(ln)
		if !ok {
			fmt.Fprintln(out)
			break
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if s.command(trimmed) {
				break
			}
			continue
		}
		s.eval(src)
	}

	if err := saveHistory(ln, histPath); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
