package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    frame
		wantErr bool
	}{
		{
			name: "valid frame",
			data: `{"to":"bob","message":"hi"}`,
			want: frame{To: "bob", Content: "hi"},
		},
		{
			name: "empty content allowed",
			data: `{"to":"bob","message":""}`,
			want: frame{To: "bob", Content: ""},
		},
		{
			name: "extra fields ignored",
			data: `{"to":"bob","message":"hi","ts":12345}`,
			want: frame{To: "bob", Content: "hi"},
		},
		{
			name:    "not json",
			data:    `to=bob message=hi`,
			wantErr: true,
		},
		{
			name:    "missing recipient",
			data:    `{"message":"hi"}`,
			wantErr: true,
		},
		{
			name:    "empty recipient",
			data:    `{"to":"","message":"hi"}`,
			wantErr: true,
		},
		{
			name:    "missing message",
			data:    `{"to":"bob"}`,
			wantErr: true,
		},
		{
			name:    "non-string recipient",
			data:    `{"to":42,"message":"hi"}`,
			wantErr: true,
		},
		{
			name:    "non-string message",
			data:    `{"to":"bob","message":{"nested":true}}`,
			wantErr: true,
		},
		{
			name:    "invalid utf8",
			data:    "{\"to\":\"bob\",\"message\":\"\xff\xfe\"}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFrame([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
