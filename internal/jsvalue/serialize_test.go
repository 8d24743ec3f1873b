package jsvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeObjectKeepsInsertionOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("layout", "custom")
	obj.Set("auth", true)
	obj.Set("data-key", 1.5)
	obj.Set("layout", "override")

	expected := "{\n  layout: \"override\",\n  auth: true,\n  \"data-key\": 1.5\n}"
	assert.Equal(t, expected, Serialize(obj))
	assert.Equal(t, []string{"layout", "auth", "data-key"}, obj.Keys())
}

func TestSerializeScalars(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		expected string
	}{
		{"null", nil, "null"},
		{"undefined", Undefined{}, "undefined"},
		{"raw", Raw("() => import(\"/a.vue\")"), "() => import(\"/a.vue\")"},
		{"integer", 42.0, "42"},
		{"negative float", -0.25, "-0.25"},
		{"large", 1e21, "1e+21"},
		{"string escapes", "a\"b\n</script>", `"a\"b\n</script>"`},
		{"empty array", []any{}, "[]"},
		{"empty object", NewObject(), "{}"},
		{"nil object", (*Object)(nil), "undefined"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Serialize(tc.value))
		})
	}
}

func TestSerializeNested(t *testing.T) {
	inner := NewObject()
	inner.Set("x", []any{"a", 1.0})

	outer := map[string]any{"b": inner, "a": false}

	expected := "{\n  a: false,\n  b: {\n    x: [\n      \"a\",\n      1\n    ]\n  }\n}"
	assert.Equal(t, expected, Serialize(outer))
}

func TestToMap(t *testing.T) {
	inner := NewObject()
	inner.Set("deep", Undefined{})
	obj := NewObject()
	obj.Set("inner", inner)
	obj.Set("list", []any{inner})

	m := obj.ToMap()
	assert.Equal(t, map[string]any{"deep": nil}, m["inner"])
	assert.Equal(t, []any{map[string]any{"deep": nil}}, m["list"])
}
