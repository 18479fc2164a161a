package model

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/tool"
)

// ResponseText renders a function response as the text sent back to a
// provider. Errors win over payloads; non-string payloads are JSON encoded.
func ResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "error: " + fr.Error
	}
	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// ToolDefinitions converts tools into model tool definitions, preserving
// order.
func ToolDefinitions(tools []tool.Tool) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
