package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Mode selects what run does with the source.
type Mode string

const (
	ModeTokenize Mode = "tokenize"
	ModeAnalyse  Mode = "analyse"
	ModeCheck    Mode = "check"
)

// Config is everything one non-interactive invocation needs.
type Config struct {
	Mode         Mode
	Input        string // "-" reads stdin
	Output       string // "" or "-" writes stdout
	Verbose      bool
	KeepComments bool

	// Log receives verbose diagnostics. Nil discards them.
	Log io.Writer
}

func (cfg Config) logf(format string, args ...any) {
	if cfg.Verbose && cfg.Log != nil {
		fmt.Fprintf(cfg.Log, format, args...)
	}
}

// run compiles in according to cfg and writes the listing to out. Nothing is
// written unless compilation succeeds.
func run(cfg Config, in io.Reader, out io.Writer) error {
	switch cfg.Mode {
	case ModeTokenize:
		tokens, err := Tokenize(in, cfg.KeepComments)
		if err != nil {
			return err
		}
		cfg.logf("%d tokens\n", len(tokens)-1)
		return WriteTokens(out, tokens)

	case ModeAnalyse, ModeCheck:
		prog, err := Compile(in)
		if err != nil {
			return err
		}
		cfg.logf("pool: %d entries, functions: %d\n", len(prog.Pool)+1, len(prog.Functions)+1)
		cfg.logf("program: %s\n", prog.SExpr())
		if cfg.Mode == ModeCheck {
			return nil
		}
		return WriteProgram(out, prog)
	}
	return fmt.Errorf("unknown mode %q", cfg.Mode)
}

func showUsage(w io.Writer) {
	fmt.Fprintf(w, `c0 - compiles c0 programs to stack VM assembly

Usage:
    c0 <command> [arguments]

Commands:
    tokenize <file>  List the tokens of a .c0 file
    analyse <file>   Compile a .c0 file to assembler text
    check <file>     Parse and type-check a .c0 file
    repl             Compile programs interactively
    help             Show this help message

Examples:
    c0 tokenize -comments hello.c0
    c0 analyse -o hello.s0 hello.c0
    c0 check -v hello.c0

Use "-" as the file to read standard input.
Use "c0 <command> -h" for more information about a command.
`)
}

// compileCommand handles tokenize, analyse and check. It returns the process
// exit status.
func compileCommand(mode Mode, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := Config{Mode: mode, Log: stderr}
	fs.BoolVar(&cfg.Verbose, "v", false, "Show verbose compilation details")
	if mode != ModeCheck {
		fs.StringVar(&cfg.Output, "o", "-", "Output file path")
	}
	if mode == ModeTokenize {
		fs.BoolVar(&cfg.KeepComments, "comments", false, "List comments as COMMENT tokens")
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: c0 %s [flags] <file>\n\n", mode)
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		return 2
	}
	cfg.Input = fs.Arg(0)

	in := stdin
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading file %s: %v\n", cfg.Input, err)
			return 2
		}
		defer f.Close()
		in = f
	}

	cfg.logf("%s %s...\n", mode, cfg.Input)

	var buf bytes.Buffer
	if err := run(cfg, in, &buf); err != nil {
		fmt.Fprintf(stderr, "Compilation failed: %v\n", err)
		return 1
	}

	if mode == ModeCheck {
		fmt.Fprintf(stdout, "%s: no errors found\n", cfg.Input)
		return 0
	}
	if cfg.Output == "" || cfg.Output == "-" {
		if _, err := stdout.Write(buf.Bytes()); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(cfg.Output, buf.Bytes(), 0644); err != nil {
		fmt.Fprintf(stderr, "Error writing file %s: %v\n", cfg.Output, err)
		return 1
	}
	cfg.logf("wrote %s (%d bytes)\n", cfg.Output, buf.Len())
	return 0
}

// runCLI dispatches a command line and returns the exit status.
func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		showUsage(stderr)
		return 2
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "tokenize":
		return compileCommand(ModeTokenize, rest, stdin, stdout, stderr)
	case "analyse", "analyze":
		return compileCommand(ModeAnalyse, rest, stdin, stdout, stderr)
	case "check":
		return compileCommand(ModeCheck, rest, stdin, stdout, stderr)
	case "repl":
		return runREPL(stdout, stderr)
	case "help", "-h", "--help":
		showUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		showUsage(stderr)
		return 2
	}
}

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
