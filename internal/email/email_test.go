package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.calls++
	return r.err
}

func TestCompositeEmailSender_CallsEverySender(t *testing.T) {
	first := &recordingSender{err: errors.New("first down")}
	second := &recordingSender{}

	cs := NewCompositeEmailSender(first)
	cs.AddSender(second)
	cs.AddSender(nil)

	err := cs.Send(context.Background(), []string{"a@example.com"}, "s", []byte("m"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestCompositeEmailSender_Empty(t *testing.T) {
	err := NewCompositeEmailSender().Send(context.Background(), nil, "", nil)
	assert.Error(t, err)
}

func TestFileEmailSender_AppendsMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "emails.log")
	sender, err := NewFileEmailSender(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sender.Send(ctx, []string{"a@example.com"}, "One", []byte("Subject: One\r\n\r\nfirst\r\n")))
	require.NoError(t, sender.Send(ctx, []string{"b@example.com"}, "Two", []byte("Subject: Two\r\n\r\nsecond\r\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
	assert.Contains(t, string(data), "Subject: Two")
}

func TestNewFileEmailSender_EmptyPath(t *testing.T) {
	_, err := NewFileEmailSender("  ")
	assert.Error(t, err)
}

func TestTemplateOf(t *testing.T) {
	raw := []byte("To: a@example.com\r\n" + TemplateHeader + ": offer_received\r\nSubject: hi\r\n\r\nbody\r\n")
	assert.Equal(t, "offer_received", templateOf(raw))
	assert.Equal(t, "unknown", templateOf([]byte("Subject: hi\r\n\r\nbody")))
	assert.Equal(t, "unknown", templateOf(nil))
}

func TestEnvelopeFrom(t *testing.T) {
	addr, err := envelopeFrom("Swapable <noreply@swapable.example.com>")
	require.NoError(t, err)
	assert.Equal(t, "noreply@swapable.example.com", addr)

	_, err = envelopeFrom("not an address")
	assert.Error(t, err)
}

func TestMockEmailKey(t *testing.T) {
	assert.Equal(t, "mockemail:a@example.com:offer_received", MockEmailKey("a@example.com", "offer_received"))
}
