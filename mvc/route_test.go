package mvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPatternMatch(t *testing.T) {
	pattern := MustParsePattern(DefaultPattern)

	tests := []struct {
		path       string
		controller string
		action     string
		id         string
		hasID      bool
	}{
		{path: "/", controller: "Home", action: "Index"},
		{path: "", controller: "Home", action: "Index"},
		{path: "/Home", controller: "Home", action: "Index"},
		{path: "/Home/Privacy", controller: "Home", action: "Privacy"},
		{path: "/home/privacy/", controller: "home", action: "privacy"},
		{path: "/Orders/Details/42", controller: "Orders", action: "Details", id: "42", hasID: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			values, ok := pattern.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.controller, values.Controller())
			assert.Equal(t, tt.action, values.Action())
			id, hasID := values.ID()
			assert.Equal(t, tt.hasID, hasID)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestDefaultPatternNoMatch(t *testing.T) {
	pattern := MustParsePattern(DefaultPattern)

	for _, path := range []string{"/a/b/c/d", "/Home//Index"} {
		_, ok := pattern.Match(path)
		assert.False(t, ok, path)
	}
}

func TestPatternLiteralSegments(t *testing.T) {
	pattern, err := ParsePattern("api/{controller}/{action=List}")
	require.NoError(t, err)
	assert.Equal(t, "api/{controller}/{action=List}", pattern.Template())

	values, ok := pattern.Match("/API/Orders")
	require.True(t, ok)
	assert.Equal(t, "Orders", values.Controller())
	assert.Equal(t, "List", values.Action())

	_, ok = pattern.Match("/v2/Orders")
	assert.False(t, ok)

	_, ok = pattern.Match("/api")
	assert.False(t, ok, "required parameter missing")
}

func TestParsePatternErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "unterminated", template: "{controller"},
		{name: "malformed literal", template: "ab{c}"},
		{name: "invalid name", template: "{con-troller}"},
		{name: "empty name", template: "{=Home}"},
		{name: "duplicate parameter", template: "{id}/{ID}"},
		{name: "required after optional", template: "{controller=Home}/{action}"},
		{name: "empty segment", template: "a//b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePattern(tt.template)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustParsePattern("{") })
}

func TestEmptyPatternMatchesRootOnly(t *testing.T) {
	pattern, err := ParsePattern("/")
	require.NoError(t, err)

	_, ok := pattern.Match("/")
	assert.True(t, ok)
	_, ok = pattern.Match("/Home")
	assert.False(t, ok)
}
