package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuralEqual(t *testing.T) {
	tests := []struct {
		name   string
		a, b   any
		ignore []string
		want   bool
	}{
		{
			name: "Identical",
			a:    map[string]any{"command": "node", "args": []string{"a"}},
			b:    map[string]any{"args": []any{"a"}, "command": "node"},
			want: true,
		},
		{
			name: "DifferentCommand",
			a:    map[string]any{"command": "node"},
			b:    map[string]any{"command": "python"},
			want: false,
		},
		{
			name: "ArgOrderMatters",
			a:    map[string]any{"args": []string{"a", "b"}},
			b:    map[string]any{"args": []string{"b", "a"}},
			want: false,
		},
		{
			name:   "TransientKeysIgnored",
			a:      map[string]any{"command": "node", "enabled": true, "_sources": []string{"x"}},
			b:      map[string]any{"command": "node", "enabled": false, "_conflicts": true},
			ignore: TransientKeys,
			want:   true,
		},
		{
			name:   "NestedKeysStillCount",
			a:      map[string]any{"command": "node", "inspector": map[string]any{"enabled": true}},
			b:      map[string]any{"command": "node", "inspector": map[string]any{"enabled": false}},
			ignore: TransientKeys,
			want:   false,
		},
		{
			name: "ServerNamedLikeTransientKey",
			a:    map[string]any{"enabled": map[string]any{"command": "node"}},
			b:    map[string]any{},
			want: false,
		},
		{
			name: "EmptyEqualsAbsent",
			a:    map[string]any{"command": "node", "env": map[string]string{}},
			b:    map[string]any{"command": "node"},
			want: true,
		},
		{
			name: "EmptyEqualsNil",
			a:    map[string]any{"command": "node", "args": []string{}},
			b:    map[string]any{"command": "node", "args": nil},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StructuralEqual(tt.a, tt.b, tt.ignore...))
		})
	}
}

func TestStructuralDiff(t *testing.T) {
	assert.Empty(t, StructuralDiff(map[string]any{"a": 1}, map[string]any{"a": 1}))
	assert.Contains(t, StructuralDiff(map[string]any{"command": "node"}, map[string]any{"command": "python"}), "python")
	assert.NotEmpty(t, StructuralDiff(make(chan int), 1))
}
