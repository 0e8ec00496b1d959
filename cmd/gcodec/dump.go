package main

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/lauckhart/klipper/ast"
	"github.com/lauckhart/klipper/lexer"
	"github.com/lauckhart/klipper/parser"
	"github.com/lauckhart/klipper/token"
)

// dumpNode is the canonical, array-of-children rendering of an ast.Node
// parsed statement: CBOR-serializable on its own, without the parser's
// pointer-linked sibling chain.
type dumpNode struct {
	Kind string `cbor:"kind"`
	Op   string `cbor:"op,omitempty"`

	Str   string  `cbor:"str,omitempty"`
	Int   int64   `cbor:"int,omitempty"`
	Float float64 `cbor:"float,omitempty"`
	Bool  bool    `cbor:"bool,omitempty"`

	Children []dumpNode `cbor:"children,omitempty"`
}

func canonicalize(n *ast.Node) dumpNode {
	d := dumpNode{Kind: n.Kind.String()}
	switch n.Kind {
	case ast.KindOp:
		d.Op = n.Op.String()
	case ast.KindStr:
		d.Str = n.Str
	case ast.KindInt:
		d.Int = n.Int
	case ast.KindFloat:
		d.Float = n.Float
	case ast.KindBool:
		d.Bool = n.Bool
	case ast.KindParam, ast.KindFunc:
		d.Str = n.Str
	}
	for c := n.Children; c != nil; c = c.Next {
		d.Children = append(d.Children, canonicalize(c))
	}
	return d
}

func newDumpCmd(debug *bool) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Parse a file and write its statement trees as CBOR, without executing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], outPath, *debug)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output path, or - for stdout")
	return cmd
}

func runDump(path, outPath string, debug bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var statements []dumpNode
	var parseErrs []string

	p := parser.New(parser.Callbacks{
		Statement: func(stmt *ast.Node) bool {
			statements = append(statements, canonicalize(stmt))
			ast.Delete(stmt)
			return true
		},
		Error: func(msg string, span token.Span, _ []string) bool {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: %s", span.First, msg))
			return true
		},
	}, parser.WithLogger(newLogger(debug)))

	l := lexer.New(p.LexerCallbacks(), lexer.WithLogger(newLogger(debug)))

	if err := l.Feed(data); err != nil {
		return fmt.Errorf("lexing %s: %w", path, err)
	}
	if err := l.Finish(); err != nil {
		return fmt.Errorf("lexing %s: %w", path, err)
	}

	if len(parseErrs) > 0 {
		return fmt.Errorf("%s: %d parse error(s): %v", path, len(parseErrs), parseErrs)
	}

	out := os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	enc, err := cbor.Marshal(statements)
	if err != nil {
		return fmt.Errorf("encoding statements: %w", err)
	}
	_, err = out.Write(enc)
	return err
}
