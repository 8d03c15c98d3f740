package strategy

import (
	"context"
	"regexp"
)

// screen is a named pattern; a negative screen's reason is reported verbatim.
type screen struct {
	re     *regexp.Regexp
	reason string
}

var (
	pythonDef = regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(.*\)\s*:`)

	jsNegative = []screen{
		{pythonDef, "input looks like Python code, not JavaScript"},
		{regexp.MustCompile(`public\s+static\s+void`), "input looks like Java code, not JavaScript"},
		{regexp.MustCompile(`System\.out\.println`), "input looks like Java code, not JavaScript"},
	}
	jsPositive = regexp.MustCompile(`\bfunction\b|\bconst\b|\blet\b|\bvar\b|=>|\bclass\b|console\.log`)

	javaNegative = []screen{
		{pythonDef, "input looks like Python code, not Java"},
		{regexp.MustCompile(`console\.log`), "input looks like JavaScript code, not Java"},
		{regexp.MustCompile(`\bfunction\s+\w+\s*\(`), "input looks like JavaScript code, not Java"},
	}
	javaPositive = regexp.MustCompile(`\bclass\b|\binterface\b|\bpublic\b|\bprivate\b|\bprotected\b|@Override`)
)

// screenValidator evaluates negatives in order (first hit wins) and only then
// requires the positive pattern.
func screenValidator(neg []screen, pos *regexp.Regexp, missing string) func(context.Context, string) Verdict {
	return func(_ context.Context, src string) Verdict {
		for _, s := range neg {
			if s.re.MatchString(src) {
				return Invalid(s.reason)
			}
		}
		if !pos.MatchString(src) {
			return Invalid(missing)
		}
		return Valid()
	}
}

func newJavaScript() *Strategy {
	return &Strategy{
		Tag:         "javascript",
		Name:        "JavaScript",
		Syntax:      "javascript",
		Placeholder: "function add(a, b) {\n  return a + b;\n}\n",
		Framework:   "Jest",
		instruction: javascriptInstruction,
		validate:    screenValidator(jsNegative, jsPositive, "input does not look like JavaScript"),
	}
}

func newJava() *Strategy {
	return &Strategy{
		Tag:         "java",
		Name:        "Java",
		Syntax:      "java",
		Placeholder: "public class Calculator {\n    public int add(int a, int b) {\n        return a + b;\n    }\n}\n",
		Framework:   "JUnit 5 + Mockito",
		instruction: javaInstruction,
		validate:    screenValidator(javaNegative, javaPositive, "input does not look like Java"),
	}
}
