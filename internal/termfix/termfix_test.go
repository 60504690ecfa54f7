package termfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want map[string]string
	}{
		{
			name: "warp",
			env:  map[string]string{"TERM_PROGRAM": "WarpTerminal", "TERM": "xterm-256color"},
			want: map[string]string{"TERM_PROGRAM": "WarpTerminal", "TERM": "dumb", "COLORTERM": "truecolor"},
		},
		{
			name: "jetbrains",
			env:  map[string]string{"TERMINAL_EMULATOR": "JetBrains-JediTerm"},
			want: map[string]string{"TERMINAL_EMULATOR": "JetBrains-JediTerm", "COLORTERM": "truecolor"},
		},
		{
			name: "jetbrains keeps explicit colorterm",
			env:  map[string]string{"TERMINAL_EMULATOR": "JetBrains-JediTerm", "COLORTERM": "24bit"},
			want: map[string]string{"TERMINAL_EMULATOR": "JetBrains-JediTerm", "COLORTERM": "24bit"},
		},
		{
			name: "other terminals untouched",
			env:  map[string]string{"TERM": "xterm-kitty"},
			want: map[string]string{"TERM": "xterm-kitty"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := make(map[string]string)
			for k, v := range tt.env {
				env[k] = v
			}
			Apply(func(k string) string { return env[k] }, func(k, v string) error {
				env[k] = v
				return nil
			})
			assert.Equal(t, tt.want, env)
		})
	}
}
