package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/config"
)

// PresignExpiry is how long an upload URL stays valid.
const PresignExpiry = 15 * time.Minute

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, userID, itemID, filename, contentType string) (url string, objectKey string, err error)
}

type s3Storage struct {
	cfg           *config.Config
	presignClient *s3.PresignClient
}

// NewS3Client builds an S3 client from the static credentials in cfg.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewS3Storage creates the upload URL signer on top of client.
func NewS3Storage(cfg *config.Config, client *s3.Client) IS3Storage {
	return &s3Storage{
		cfg:           cfg,
		presignClient: s3.NewPresignClient(client),
	}
}

// ObjectKeyPrefix is the key namespace uploads for an item live under.
func ObjectKeyPrefix(userID, itemID string) string {
	return fmt.Sprintf("uploads/%s/%s/", userID, itemID)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	return base
}

// GeneratePresignedPutURL returns a presigned PUT URL and the object key the
// client must pass back to confirmImageUpload.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, userID, itemID, filename, contentType string) (string, string, error) {
	objectKey := ObjectKeyPrefix(userID, itemID) + uuid.NewString() + "_" + SanitizeFilename(filename)

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	log.Debug().Str("object_key", objectKey).Msg("Generated presigned upload URL")
	return presignedReq.URL, objectKey, nil
}
