// Package publish uploads rendered artifacts to S3 and hands back their
// public object URLs.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/errors"
)

// ObjectPutter is the slice of the S3 client the store needs. *s3.Client
// satisfies it; tests substitute a recorder.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store publishes artifacts into one bucket under a fixed key prefix.
type Store struct {
	client ObjectPutter
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// NewStore wires a Store around an existing client.
func NewStore(client ObjectPutter, bucket, prefix, region string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		region: region,
		logger: logger.With("component", "publish"),
	}
}

// Connect loads the ambient AWS configuration (environment, shared config,
// instance role) and builds a Store for cfg. The bucket must be set.
func Connect(ctx context.Context, cfg config.PublishConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("E100")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errors.New("E100").WithDetail("Could not load AWS configuration").Wrap(err)
	}

	return NewStore(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, awsCfg.Region, logger), nil
}

// Publish uploads one artifact and returns its public object URL. The key is
// the configured prefix followed by "<id>.<format>".
func (s *Store) Publish(ctx context.Context, id, format string, data []byte) (string, error) {
	key := s.prefix + id + "." + format

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(format)),
		Metadata: map[string]string{
			"published-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.New("E101").
			WithDetail(fmt.Sprintf("Could not upload %s to bucket %s", key, s.bucket)).
			Wrap(err)
	}

	url := s.objectURL(key)
	s.logger.Info("published artifact", "id", id, "bucket", s.bucket, "key", key, "bytes", len(data))
	return url, nil
}

// objectURL builds the virtual-hosted URL for a key. us-east-1 keeps the
// regionless form S3 has always served there.
func (s *Store) objectURL(key string) string {
	if s.region == "" || s.region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func contentTypeFor(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
