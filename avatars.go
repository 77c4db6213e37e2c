package accounts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// objectPutter is the slice of the S3 API avatar storage uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AvatarStorage uploads avatar images to object storage and hands back the
// opaque URI stored on the user row. The user entity only ever sees the URI.
type AvatarStorage struct {
	client  objectPutter
	bucket  string
	baseURL string
	logger  Logger
}

type AvatarStorageOption func(*AvatarStorage)

func WithAvatarLogger(logger Logger) AvatarStorageOption {
	return func(s *AvatarStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// withAvatarClient substitutes the S3 client; tests use it.
func withAvatarClient(client objectPutter) AvatarStorageOption {
	return func(s *AvatarStorage) {
		s.client = client
	}
}

// NewAvatarStorage connects to the S3 compatible store described by cfg.
func NewAvatarStorage(ctx context.Context, cfg StorageConfig, opts ...AvatarStorageOption) (*AvatarStorage, error) {
	s := &AvatarStorage{
		bucket:  cfg.GetStorageBucket(),
		baseURL: strings.TrimRight(cfg.GetStoragePublicURL(), "/"),
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.GetStorageRegion()),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.GetStorageAccessKey(),
				cfg.GetStorageSecretKey(),
				"",
			)))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to configure object storage client")
		}

		endpoint := cfg.GetStorageEndpoint()
		s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
	}

	return s, nil
}

// Store uploads the avatar under a collision free key and returns its URI.
func (s *AvatarStorage) Store(ctx context.Context, userID int64, filename string, body io.Reader) (string, error) {
	key := avatarKey(userID, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upload avatar")
	}

	s.logger.Info("stored avatar for user %d at %s", userID, key)

	return s.baseURL + "/" + key, nil
}

func avatarKey(userID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), ext)
}
