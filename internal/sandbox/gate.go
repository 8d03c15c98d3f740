// Package sandbox runs untrusted Python test code for the worker: a static
// gate over the syntax tree, then a locked-down, throwaway container.
package sandbox

import (
	"context"
	"regexp"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ForbiddenModules are top-level modules that may not be imported.
var ForbiddenModules = []string{
	"os", "subprocess", "shutil", "sys", "importlib", "socket", "urllib",
	"requests", "http", "ftplib", "telnetlib", "pickle", "marshal",
}

// ForbiddenCalls are builtins that may not be called directly.
var ForbiddenCalls = []string{"eval", "exec", "open", "compile", "__import__", "input"}

const (
	msgForbiddenImport = "금지된 모듈 임포트: "
	msgForbiddenCall   = "금지된 함수 호출: "
)

// SecurityViolationError lists every rule the submitted code broke.
type SecurityViolationError struct {
	Violations []string
}

func (e *SecurityViolationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// Inspect parses src and reports forbidden imports and calls as a single
// *SecurityViolationError. Code with syntax errors is still screened: the
// parser's recovered nodes are walked as usual and the text of every ERROR
// node is scanned for the same names.
func Inspect(ctx context.Context, src string) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	code := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, code)
	if err != nil {
		return err
	}
	defer tree.Close()

	root := tree.RootNode()

	var found []string
	add := func(v string) {
		if !slices.Contains(found, v) {
			found = append(found, v)
		}
	}
	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if mod := topLevel(importedName(n.NamedChild(i)), code); slices.Contains(ForbiddenModules, mod) {
					add(msgForbiddenImport + mod)
				}
			}
		case "import_from_statement":
			if mod := topLevel(n.ChildByFieldName("module_name"), code); slices.Contains(ForbiddenModules, mod) {
				add(msgForbiddenImport + mod)
			}
		case "call":
			fn := n.ChildByFieldName("function")
			if fn != nil && fn.Type() == "identifier" {
				if name := fn.Content(code); slices.Contains(ForbiddenCalls, name) {
					add(msgForbiddenCall + name)
				}
			}
		case "ERROR":
			scanRecovered(n.Content(code), add)
		}
	})

	if len(found) > 0 {
		return &SecurityViolationError{Violations: found}
	}
	return nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

// importedName unwraps "import a.b as c" to the dotted name.
func importedName(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "aliased_import" {
		return n.ChildByFieldName("name")
	}
	return n
}

// topLevel returns the first segment of a dotted module name. Relative
// imports have no top-level module and yield "".
func topLevel(n *sitter.Node, code []byte) string {
	if n == nil || n.Type() != "dotted_name" {
		return ""
	}
	name, _, _ := strings.Cut(n.Content(code), ".")
	return strings.TrimSpace(name)
}

var (
	recoveredImport = regexp.MustCompile(`\b(?:from|import)\s+([^\n;]+)`)
	recoveredCall   = regexp.MustCompile(`(?:^|[^\w.])(` + alternation(ForbiddenCalls) + `)\s*\(`)
)

func alternation(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

// scanRecovered matches forbidden names in text the parser could not place
// in a statement. It errs toward reporting.
func scanRecovered(text string, add func(string)) {
	for _, m := range recoveredImport.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			fields := strings.Fields(strings.Trim(strings.TrimSpace(part), "()"))
			if len(fields) == 0 {
				continue
			}
			mod, _, _ := strings.Cut(fields[0], ".")
			if slices.Contains(ForbiddenModules, mod) {
				add(msgForbiddenImport + mod)
			}
		}
	}
	for _, m := range recoveredCall.FindAllStringSubmatch(text, -1) {
		add(msgForbiddenCall + m[1])
	}
}
