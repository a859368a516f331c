package email

import (
	"bytes"
	"fmt"
	"net/mail"
)

// envelopeFrom extracts the bare address from a display-name form such as
// "Swapable <noreply@swapable.example.com>".
func envelopeFrom(from string) (string, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", fmt.Errorf("invalid from address %q: %w", from, err)
	}
	return addr.Address, nil
}

// templateOf returns the template id recorded in a raw message, or "unknown".
func templateOf(rawMessage []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(rawMessage))
	if err != nil {
		return "unknown"
	}
	if id := msg.Header.Get(TemplateHeader); id != "" {
		return id
	}
	return "unknown"
}
