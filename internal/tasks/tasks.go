package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/email"
	"github.com/parallax/reboot-hackathon-2025/internal/metrics"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// Queue names and their priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// IAsynqClient is the subset of *asynq.Client used to enqueue work.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ObjectStore is the subset of *s3.Client the image worker needs.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ItemImageSetter records a processed image against an item.
type ItemImageSetter interface {
	SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// NewClient creates an asynq client sharing the connection settings of rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// TaskProcessor holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	emailTemplateService services.IEmailTemplateService
	items                ItemImageSetter
	s3Client             ObjectStore
	now                  func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	emailTemplateService services.IEmailTemplateService,
	items ItemImageSetter,
	s3Client ObjectStore,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		emailTemplateService: emailTemplateService,
		items:                items,
		s3Client:             s3Client,
		now:                  time.Now,
	}
}

// SetupServer builds an asynq server and the mux for the requested worker roles.
// It returns nil when neither role is requested. The caller runs the server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		log.Info().Msg("No worker role requested, task server not created")
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		log.Info().Msg("Registered background task handlers")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Info().Msg("Registered image processing task handlers")
	}

	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task_type", task.Type()).Msg("Task failed")
			}),
		},
	)
	return srv, mux
}

// EmailTaskPayload is the payload of an email:deliver task.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// HandleEmailDeliveryTask renders the requested template and hands the message to the sender.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	logger := log.With().Str("to", payload.To).Str("template_id", payload.TemplateID).Str("locale", locale).Logger()

	subject, body, err := p.emailTemplateService.Render(ctx, payload.TemplateID, locale, payload.Data)
	if err != nil {
		metrics.EmailsDelivered.WithLabelValues(payload.TemplateID, "render_failed").Inc()
		logger.Error().Err(err).Msg("Could not render email template")
		return fmt.Errorf("email template %s unusable: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@example.com"
		logger.Warn().Str("from", from).Msg("SmtpFromAddress not configured, using fallback")
	}

	rawMessage := buildMessage(from, payload.To, subject, body, payload.TemplateID, p.now())

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, rawMessage); err != nil {
		metrics.EmailsDelivered.WithLabelValues(payload.TemplateID, "send_failed").Inc()
		logger.Warn().Err(err).Msg("Email sending failed, task will be retried")
		return err
	}

	metrics.EmailsDelivered.WithLabelValues(payload.TemplateID, "sent").Inc()
	logger.Info().Msg("Email task processed")
	return nil
}

func buildMessage(from, to, subject, body, templateID string, at time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	fmt.Fprintf(&sb, "%s: %s\r\n", email.TemplateHeader, templateID)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\r\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// ImageTaskPayload is the payload of an image:process task.
type ImageTaskPayload struct {
	S3Key  string `json:"s3_key"`
	ItemID string `json:"item_id"`
}

// NewImageProcessTask builds an image:process task on the images queue.
func NewImageProcessTask(itemID utils.SixID, s3Key string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, ItemID: itemID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.Queue(QueueImages), asynq.MaxRetry(3)), nil
}

// HandleImageProcessTask downloads an uploaded item image, shrinks it to the
// configured bounds and records the key on the item.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	itemID, err := utils.ParseSixID(payload.ItemID)
	if err != nil || itemID.IsZero() {
		return fmt.Errorf("invalid item ID %q in payload: %w", payload.ItemID, asynq.SkipRetry)
	}

	logger := log.With().Str("s3_key", payload.S3Key).Str("item_id", payload.ItemID).Logger()

	obj, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			logger.Warn().Msg("S3 object not found, upload probably never completed")
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer obj.Body.Close()

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	imgData, err := io.ReadAll(io.LimitReader(obj.Body, maxSizeBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imgData)) > maxSizeBytes {
		logger.Warn().Int64("max_bytes", maxSizeBytes).Msg("Image exceeds max size")
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		logger.Warn().Err(err).Msg("Could not decode image")
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	bounds := img.Bounds()
	if uint(bounds.Dx()) > maxDim || uint(bounds.Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		if int64(buf.Len()) > maxSizeBytes {
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}

		_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.AwsS3Bucket),
			Key:         aws.String(payload.S3Key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String("image/jpeg"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload processed image: %w", err)
		}
		logger.Info().
			Str("format", format).
			Int("width", resized.Bounds().Dx()).
			Int("height", resized.Bounds().Dy()).
			Msg("Resized item image")
	}

	if err := p.items.SetItemImage(ctx, itemID, payload.S3Key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("item %s no longer exists: %w", payload.ItemID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to update item with processed image: %w", err)
	}

	logger.Info().Msg("Image task processed")
	return nil
}
