package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/config"
)

// MockEmailTTL is how long a captured email stays readable.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is the Redis key a captured email is stored under.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, templateID)
}

// RedisSender stores emails in Redis instead of sending them. Integration
// tests read them back through the service API.
type RedisSender struct {
	client redis.Cmdable
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client redis.Cmdable, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores the message under mockemail:<first recipient>:<template id>.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := templateOf(rawMessage)

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"from":        s.cfg.SmtpFromAddress,
		"subject":     subject,
		"body":        string(rawMessage),
		"sent_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"template_id": templateID,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, templateID)
	if err := s.client.Set(ctx, key, jsonData, MockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Info().Str("key", key).Str("subject", subject).Msg("Mock email stored in Redis")
	return nil
}
