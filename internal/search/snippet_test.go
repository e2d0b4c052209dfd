package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/scry/internal/oracle"
)

func TestSnippet(t *testing.T) {
	long := strings.Repeat("é", 250)

	tests := []struct {
		name      string
		content   string
		eventType string
		want      string
	}{
		{"short code kept", "func Open() error", "code.function", "func Open() error"},
		{"newlines collapsed and trimmed", "  line one\nline two\n", "", "line one line two"},
		{"CRLF and blank lines collapsed", "line one\r\n\r\n\r\n\tline two\r\n", "", "line one line two"},
		{"truncated on runes", long, "", strings.Repeat("é", 200) + "..."},
		{"commit passes through", "abc123: fix\nbody", "git.commit", "abc123: fix\nbody"},
		{"co-change passes through", long, "co-change", long},
		{"pattern title and first line", "# Retry\n\nstatus: done\n**Tags**\nBack off on lock errors.", "pattern.go", "Retry - Back off on lock errors."},
		{"pattern title only", "# Retry\n\nstatus: done", "pattern.go", "Retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &FusedResult{Content: tt.content, Metadata: oracle.Metadata{EventType: tt.eventType}}
			assert.Equal(t, tt.want, Snippet(r))
		})
	}
}
