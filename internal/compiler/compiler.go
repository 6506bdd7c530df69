package compiler

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/color"
	"github.com/bplaa-yai/v8m-rb/pkg/interpreter"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
	"github.com/bplaa-yai/v8m-rb/pkg/parser"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

type Compiler struct {
	Verbose bool      // Print the stub every site ends up calling
	Out     io.Writer // Output destination, stdout when nil

	iso  *isolate.Isolate
	intr *interpreter.Interpreter
}

// New returns a compiler whose sites call stubs from c.
func New(iso *isolate.Isolate, c *stubs.Cache) *Compiler {
	return &Compiler{iso: iso, intr: interpreter.NewInterpreter(iso, c)}
}

func (c *Compiler) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Compile parses source into an expression tree.
func (c *Compiler) Compile(source string) (parser.Node, error) {
	p := parser.NewParser(lexer.NewLexer(source))
	n := p.Parse()

	syntaxErrors := p.Errors()
	if len(syntaxErrors) > 0 {
		fmt.Fprintln(c.out(), color.BrightRedText("=== Syntax Errors ==="))
		fmt.Fprintln(c.out(), syntaxErrors[0].Format())
		if marked := syntaxErrors[0].Underline(source); marked != "" {
			fmt.Fprintln(c.out(), marked)
		}
		return nil, fmt.Errorf("parsing failed: %w", syntaxErrors[0])
	}
	return n, nil
}

// Evaluate compiles and runs source.
func (c *Compiler) Evaluate(source string) (tagged.Value, error) {
	log.Debug("Evaluating", "source", source)
	n, err := c.Compile(source)
	if err != nil {
		return 0, err
	}
	v, err := c.intr.Eval(n)
	if err != nil {
		return 0, fmt.Errorf("evaluation failed: %w", err)
	}

	if c.Verbose {
		fmt.Fprintln(c.out(), color.GreenText("\n=== Binary Op Sites ==="))
		sites := c.intr.Sites()
		if len(sites) == 0 {
			fmt.Fprintln(c.out(), color.GrayText("No sites."))
		}
		for i, s := range sites {
			fmt.Fprintf(c.out(), "%s: %s %s\n",
				color.CyanText(fmt.Sprintf("%d", i)),
				color.BlueText(s.Expr),
				color.YellowText(s.Stub.String()))
		}
	}
	return v, nil
}

// Print evaluates source and prints its value.
func (c *Compiler) Print(source string) error {
	v, err := c.Evaluate(source)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out(), interpreter.Describe(c.iso.Heap, v))
	return nil
}
