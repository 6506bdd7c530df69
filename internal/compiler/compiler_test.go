package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bplaa-yai/v8m-rb/internal/compiler"
	"github.com/bplaa-yai/v8m-rb/pkg/color"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate/isolatetest"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
)

func newCompiler(t *testing.T) (*compiler.Compiler, *bytes.Buffer) {
	t.Helper()
	color.EnableColor(false)
	iso := isolatetest.New(t)
	var out bytes.Buffer
	c := compiler.New(iso, stubs.NewCache(iso))
	c.Out = &out
	return c, &out
}

func TestPrint(t *testing.T) {
	c, out := newCompiler(t)
	if err := c.Print("(1 + 0.5) * 2"); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "3\n" {
		t.Errorf("printed %q", got)
	}
}

func TestVerboseListsSites(t *testing.T) {
	c, out := newCompiler(t)
	c.Verbose = true
	if _, err := c.Evaluate("29 % 8"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "GenericBinaryOpStub_MOD_Alloc_Default_ConstantRhs8") {
		t.Errorf("output does not name the MOD stub:\n%s", out)
	}
}

func TestSyntaxErrorIsReported(t *testing.T) {
	c, out := newCompiler(t)
	if _, err := c.Evaluate("(1 +"); err == nil {
		t.Fatal("syntax error accepted")
	}
	if !strings.Contains(out.String(), "Syntax Errors") {
		t.Errorf("output %q", out)
	}
	if !strings.Contains(out.String(), "(1 +\n    ^\n") {
		t.Errorf("output does not mark the end of input: %q", out)
	}
}
