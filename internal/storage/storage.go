// Package storage puts user uploads (voice notes, chat images, prescription
// PDFs and profile photos) into an S3 bucket and hands back their public URL.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/config"
	"github.com/teris-io/shortid"
	"go.uber.org/zap"
)

const (
	MaxPrescriptionBytes = 10 << 20
	uploadTimeout        = 2 * time.Minute
)

var (
	ErrNotConfigured       = apperr.Unavailable("storage-not-configured", "file storage is not configured", nil)
	ErrPrescriptionType    = apperr.Validation("prescription-pdf-invalid-type", "only PDF files are allowed")
	ErrPrescriptionTooBig  = apperr.Validation("prescription-pdf-too-large", "PDF file must be <= 10MB")
	ErrPrescriptionMissing = apperr.Validation("prescription-pdf-required", "PDF file is required")
)

// Category groups uploads by purpose. Field is the multipart form field the
// file arrives in.
type Category struct {
	Folder  string
	Field   string
	Missing *apperr.Error
}

var (
	Audio = Category{
		Folder:  "chat_audio",
		Field:   "audio",
		Missing: apperr.Validation("audio-file-required", "audio file is required"),
	}
	Image = Category{
		Folder:  "chat_images",
		Field:   "image",
		Missing: apperr.Validation("image-file-required", "image file is required"),
	}
	Prescription = Category{
		Folder:  "prescriptions",
		Field:   "pdf",
		Missing: ErrPrescriptionMissing,
	}
	Photo = Category{
		Folder:  "profile_photos",
		Field:   "photo",
		Missing: apperr.Validation("invalid-photo-file", "photo file is required"),
	}
)

type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader is the part of manager.Uploader the store needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Store struct {
	uploader   Uploader
	bucket     string
	region     string
	publicBase string
	now        func() time.Time
	log        *zap.Logger
}

// NewS3Store connects to the configured bucket with static credentials.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("bucket and region must be set")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	logger.Info("object storage ready", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))

	return NewStore(uploader, cfg, logger), nil
}

func NewStore(uploader Uploader, cfg config.StorageConfig, logger *zap.Logger) *S3Store {
	return &S3Store{
		uploader:   uploader,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:        time.Now,
		log:        logger,
	}
}

// Put stores f under <folder>/<userId>/<unixMillis>-<shortid><ext> and
// returns the URL clients fetch it from. A nil store reports ErrNotConfigured.
func (s *S3Store) Put(ctx context.Context, cat Category, userId string, f File) (string, error) {
	if s == nil || s.uploader == nil {
		return "", ErrNotConfigured
	}
	if f.Body == nil {
		return "", cat.Missing
	}

	key, err := s.objectKey(cat.Folder, userId, f.Name)
	if err != nil {
		return "", err
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err = s.uploader.Upload(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.Error("s3 upload failed", zap.String("key", key), zap.Error(err))
		return "", apperr.Unavailable("upload-failed", "could not store the file", err)
	}

	s.log.Debug("stored upload", zap.String("key", key), zap.Int64("size", f.Size))

	return s.publicURL(key), nil
}

func (s *S3Store) objectKey(folder, userId, name string) (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate object id: %w", err)
	}

	return fmt.Sprintf("%s/%s/%d-%s%s", folder, userId, s.now().UnixMilli(), id, path.Ext(name)), nil
}

func (s *S3Store) publicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// ValidatePrescription accepts files that look like a PDF by extension or
// media type and are no larger than MaxPrescriptionBytes.
func ValidatePrescription(f File) error {
	ext := strings.ToLower(path.Ext(f.Name))
	mediaType := strings.ToLower(f.ContentType)
	if ext != ".pdf" && !strings.Contains(mediaType, "pdf") {
		return ErrPrescriptionType
	}
	if f.Size > MaxPrescriptionBytes {
		return ErrPrescriptionTooBig
	}

	return nil
}
