package relay

import (
	"encoding/json"
	"unicode/utf8"
)

// previewLimit is the number of bytes of a text message kept in logs
const previewLimit = 200

type errorBody struct {
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// ErrorMessage encodes {"error":{"message":msg}}
func ErrorMessage(msg string) []byte {
	data, err := json.Marshal(errorEnvelope{Error: errorBody{Message: msg}})
	if err != nil {
		// A struct of strings always marshals
		return []byte(`{"error":{"message":"internal error"}}`)
	}
	return data
}

// Preview returns at most the first 200 bytes of a text message, cut on a
// rune boundary, or "binary data" for anything else
func Preview(messageType int, data []byte) string {
	if messageType != TextMessage {
		return "binary data"
	}
	if len(data) <= previewLimit {
		return string(data)
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut]) + "..."
}
