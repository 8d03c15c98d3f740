package strategy

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const reasonNotPython = "not valid Python"

func newPython() *Strategy {
	return &Strategy{
		Tag:           "python",
		Name:          "Python",
		Syntax:        "python",
		Placeholder:   "def add(a, b):\n    return a + b\n",
		Framework:     "pytest",
		CacheVerdicts: true,
		instruction:   pythonInstruction,
		validate:      validatePython,
	}
}

// validatePython accepts src only when the tree-sitter Python grammar parses
// it without ERROR or MISSING nodes. The grammar lags CPython: starred
// expressions in return values and subscripts are rejected.
func validatePython(ctx context.Context, src string) Verdict {
	ok, err := ParsesAsPython(ctx, []byte(src))
	if err != nil || !ok {
		return Invalid(reasonNotPython)
	}
	return Valid()
}

// ParsesAsPython reports whether src is a syntactically complete Python
// program. Parsers are not shared; each call builds its own.
func ParsesAsPython(ctx context.Context, src []byte) (bool, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return false, err
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}
