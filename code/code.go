// Package code defines how the code-execution strategy runs model-authored
// snippets and how snippets are pulled out of model text.
package code

import (
	"regexp"
	"strings"
)

// Executor defines the interface for executing code snippets.
type Executor interface {
	// Execute runs the given code snippet and returns the output or an error.
	Execute(code string) (string, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(code string) (string, error)

// Execute calls f(code).
func (f ExecutorFunc) Execute(code string) (string, error) { return f(code) }

var fence = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \\t]*\\n(.*?)```")

// ExtractBlocks returns the bodies of all fenced code blocks in text, in
// order, with surrounding whitespace trimmed. Empty blocks are skipped.
func ExtractBlocks(text string) []string {
	var blocks []string
	for _, m := range fence.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			blocks = append(blocks, body)
		}
	}
	return blocks
}
