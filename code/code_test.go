package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBlocks(t *testing.T) {
	text := "Let me compute.\n```python\nprint(1+1)\n```\nand\n```\n  x = 2  \n```\n```go\n```"
	assert.Equal(t, []string{"print(1+1)", "x = 2"}, ExtractBlocks(text))
	assert.Empty(t, ExtractBlocks("no code here"))
}

func TestExecutorFunc(t *testing.T) {
	var e Executor = ExecutorFunc(func(code string) (string, error) { return "ran " + code, nil })
	out, err := e.Execute("x")
	assert.NoError(t, err)
	assert.Equal(t, "ran x", out)
}
