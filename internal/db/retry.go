package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

// Operation performs one attempt of a write that may collide on a generated key.
type Operation func() error

// IsDuplicateKeyError reports whether err should trigger another attempt.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

// Try runs op, retrying up to DefaultMaxRetries times on duplicate key errors.
// Callers generate a fresh id inside op so each attempt can succeed.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries retries while isDuplicateKey
// matches the returned error. Any other error is returned immediately.
func WithRetries(ctx context.Context, op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !isDuplicateKey(err) {
			return err
		}

		log.Debug().Int("attempt", attempt+1).Msg("Duplicate key on insert, retrying with a new id")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsMongoDuplicateKeyError checks for MongoDB error code 11000.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
