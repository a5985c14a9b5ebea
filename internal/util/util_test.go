package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D []any  `json:"-"`
	e string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "D")
	assert.NotContains(t, props, "e")
	assert.Equal(t, "integer", props["b"].(map[string]any)["type"])
	assert.Equal(t, "Field A", props["a"].(map[string]any)["description"])
	assert.Equal(t, []string{"a"}, RequiredFields(schema))

	assert.Equal(t, "object", CreateSchema(42)["type"])
	assert.Equal(t, "object", CreateSchema(nil)["type"])
}

func TestValidateParameters(t *testing.T) {
	for name, required := range map[string]any{
		"decoded": []any{"x"},
		"native":  []string{"x"},
	} {
		t.Run(name, func(t *testing.T) {
			schema := map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{"type": "integer"},
				},
				"required": required,
			}

			assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
			assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0}, schema))

			err := ValidateParameters(map[string]any{}, schema)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "x", vErr.Field)

			err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Message, "expected type integer")
		})
	}
}

func TestValidateParameters_Enum(t *testing.T) {
	schema := ObjectSchema(map[string]any{
		"tier": map[string]any{"type": "string", "enum": []string{"fast", "premium"}},
	}, "tier")

	assert.NoError(t, ValidateParameters(map[string]any{"tier": "fast"}, schema))

	err := ValidateParameters(map[string]any{"tier": "slow"}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "must be one of fast, premium", vErr.Message)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Task: {{ .task }} for {{ default "none" .project_id | upper }} <{{ truncate 3 .note }}>`, map[string]any{
		"task": "ship it & test",
		"note": "abcdef",
	})
	require.NoError(t, err)
	assert.Equal(t, "Task: ship it & test for NONE <abc...>", out)

	_, err = RenderTemplate("{{ .broken", nil)
	assert.Error(t, err)
}
