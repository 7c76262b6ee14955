package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCookieHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{
			name:   "empty header",
			header: "",
			want:   map[string]string{},
		},
		{
			name:   "single cookie",
			header: "jwt=abc123",
			want:   map[string]string{"jwt": "abc123"},
		},
		{
			name:   "multiple cookies with whitespace",
			header: "session=xyz; jwt=abc123;  theme=dark",
			want:   map[string]string{"session": "xyz", "jwt": "abc123", "theme": "dark"},
		},
		{
			name:   "url encoded value",
			header: "jwt=a%3Db%3Dc",
			want:   map[string]string{"jwt": "a=b=c"},
		},
		{
			name:   "value containing equals signs",
			header: "jwt=header.payload=.sig=",
			want:   map[string]string{"jwt": "header.payload=.sig="},
		},
		{
			name:   "valueless and nameless fragments skipped",
			header: "jwt=; =oops; ;lone",
			want:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCookieHeader(tt.header))
		})
	}
}
