package relay

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "plain",
			msg:  "Connection to upstream timed out",
			want: `{"error":{"message":"Connection to upstream timed out"}}`,
		},
		{
			name: "quotes are escaped",
			msg:  `Failed to send message: "bad"`,
			want: `{"error":{"message":"Failed to send message: \"bad\""}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorMessage(tt.msg)
			if string(got) != tt.want {
				t.Errorf("ErrorMessage() = %s, want %s", got, tt.want)
			}

			var decoded struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(got, &decoded); err != nil {
				t.Fatalf("Expected valid JSON, got error: %v", err)
			}
			if decoded.Error.Message != tt.msg {
				t.Errorf("Expected message %q, got %q", tt.msg, decoded.Error.Message)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 250)
	multibyte := strings.Repeat("a", 199) + "é" + "tail"

	tests := []struct {
		name        string
		messageType int
		data        string
		want        string
	}{
		{name: "short text", messageType: TextMessage, data: `{"ping":1}`, want: `{"ping":1}`},
		{name: "long text", messageType: TextMessage, data: long, want: strings.Repeat("a", 200) + "..."},
		{name: "cut on rune boundary", messageType: TextMessage, data: multibyte, want: strings.Repeat("a", 199) + "..."},
		{name: "binary", messageType: BinaryMessage, data: "\x00\x01", want: "binary data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.messageType, []byte(tt.data)); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}
