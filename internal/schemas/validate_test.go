package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScenePlan_Valid(t *testing.T) {
	doc := `{"scenes": [
		{"text": "小兔在森林里散步。", "characters": "小兔：白色的毛", "image_prompt": "童话风格的插图，可爱温馨，森林", "negative_prompt": "黑暗"},
		{"text": "小兔找到了妈妈。"}
	]}`

	assert.NoError(t, ValidateScenePlan(doc))
}

func TestValidateScenePlan_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing scenes", doc: `{"story": "x"}`},
		{name: "empty scenes", doc: `{"scenes": []}`},
		{name: "scene without text", doc: `{"scenes": [{"image_prompt": "森林"}]}`},
		{name: "empty text", doc: `{"scenes": [{"text": ""}]}`},
		{name: "wrong type", doc: `{"scenes": [{"text": 42}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScenePlan(tt.doc)
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError type")
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateScenePlan_MalformedJSON(t *testing.T) {
	err := ValidateScenePlan(`{"scenes": [`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "小兔"}`))

	err := ValidateJSONString(schema, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "scenes.0.text", Message: "required"}}}
	assert.Contains(t, err.Error(), "1. scenes.0.text: required")
}
