package agent

import "github.com/evergreenhq/evergreen/internal/gemini"

// Schema shorthands for tool parameter declarations.

func objectSchema(required []string, props map[string]*gemini.Schema) *gemini.Schema {
	return &gemini.Schema{Type: "object", Properties: props, Required: required}
}

func stringParam(desc string) *gemini.Schema {
	return &gemini.Schema{Type: "string", Description: desc}
}

func intParam(desc string) *gemini.Schema {
	return &gemini.Schema{Type: "integer", Description: desc}
}
