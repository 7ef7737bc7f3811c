// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "Character")
	Description string        // Prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string"
	Description string // Description for the LLM
	Required    bool
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("只返回符合以下结构的JSON：\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = "（必填）"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("注意：\n")
	sb.WriteString("- 只根据文本内容提取，不要编造。\n")
	sb.WriteString("- 只返回JSON对象，不要markdown，不要解释。\n\n")

	sb.WriteString("输入文本：\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// CharacterSchema returns the extraction schema used when a story arrives
// without its character block.
func CharacterSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Character",
		Description: "你是一位儿童绘本编辑。请从下面的故事中找出主角，并描述主角的外貌特征，用于保持插图中角色形象一致。",
		Fields: []SchemaField{
			{Name: "name", Description: "主角的名字", Required: true},
			{Name: "features", Description: "外貌特征：物种、毛色/肤色、服装、配饰等，一句话", Required: true},
		},
	}
}
