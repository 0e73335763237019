package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ProofStore persists payment-proof images and returns the key under which
// the image can be retrieved later.
type ProofStore interface {
	Save(ctx context.Context, orderCode, contentType string, body io.Reader) (string, error)
}

// s3Store implements ProofStore against an S3 bucket.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store creates an S3-backed proof store.
func NewS3Store(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (ProofStore, error) {
	logger = logger.With().Str("component", "s3-proof-store").Logger()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 proof store initialised")

	return &s3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *s3Store) Save(ctx context.Context, orderCode, contentType string, body io.Reader) (string, error) {
	key := s.prefix + proofFileName(orderCode, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", key).
			Msg("failed to put object to S3")
		return "", fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, key, err)
	}

	s.logger.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Msg("payment proof stored in S3")

	return key, nil
}

// fileStore implements ProofStore against a local directory. It serves as
// the development and fallback storage when S3 is disabled.
type fileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a filesystem-backed proof store rooted at dir.
func NewFileStore(dir string, logger zerolog.Logger) ProofStore {
	return &fileStore{
		dir:    dir,
		logger: logger.With().Str("component", "file-proof-store").Logger(),
	}
}

func (s *fileStore) Save(ctx context.Context, orderCode, contentType string, body io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create proof directory %s: %w", s.dir, err)
	}

	name := proofFileName(orderCode, contentType)
	path := filepath.Join(s.dir, name)

	file, err := os.Create(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to create proof file")
		return "", fmt.Errorf("failed to create proof file %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to write proof file")
		return "", fmt.Errorf("failed to write proof file %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("payment proof stored locally")

	return name, nil
}

// fallbackStore tries S3 first and falls back to the local file store when
// the upload fails. A proof upload should never be lost to a transient
// bucket outage.
type fallbackStore struct {
	s3Store   ProofStore
	fileStore ProofStore
	s3Enabled bool
	logger    zerolog.Logger
}

// NewFallbackStore creates a store that prefers S3 and degrades to the
// local filesystem. If s3Store is nil, only the file store is used.
func NewFallbackStore(s3Store, fileStore ProofStore, s3Enabled bool, logger zerolog.Logger) ProofStore {
	return &fallbackStore{
		s3Store:   s3Store,
		fileStore: fileStore,
		s3Enabled: s3Enabled,
		logger:    logger.With().Str("component", "fallback-proof-store").Logger(),
	}
}

func (s *fallbackStore) Save(ctx context.Context, orderCode, contentType string, body io.Reader) (string, error) {
	if s.s3Enabled && s.s3Store != nil {
		key, err := s.s3Store.Save(ctx, orderCode, contentType, body)
		if err == nil {
			return key, nil
		}
		s.logger.Warn().
			Err(err).
			Str("order_code", orderCode).
			Msg("failed to store proof in S3, falling back to local file system")
		// The reader may be partially consumed after a failed upload; only
		// seekable bodies can be retried locally.
		seeker, ok := body.(io.Seeker)
		if !ok {
			return "", err
		}
		if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil {
			return "", err
		}
	}

	return s.fileStore.Save(ctx, orderCode, contentType, body)
}

// proofFileName derives a collision-resistant object name from the order
// code, upload time and content type.
func proofFileName(orderCode, contentType string) string {
	ext := ".bin"
	switch {
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		ext = ".jpg"
	case strings.Contains(contentType, "png"):
		ext = ".png"
	case strings.Contains(contentType, "webp"):
		ext = ".webp"
	case strings.Contains(contentType, "pdf"):
		ext = ".pdf"
	}
	return fmt.Sprintf("%s-%d%s", orderCode, time.Now().UnixNano(), ext)
}
