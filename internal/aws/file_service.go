package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"demand/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ReportPrefix is the key prefix of archived report snapshots
const ReportPrefix = "reports/"

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type FileService interface {
	ArchiveReport(ctx context.Context, snapshot model.ReportSnapshot) (string, error)
	TestConnection(ctx context.Context) error
}

type fileService struct {
	s3       *s3.Client
	uploader uploader
	bucket   string
	region   string
}

func NewFileService(accessKey, secretKey, bucketName, region string) (FileService, error) {
	credProvider := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credProvider),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)

	return &fileService{
		s3:       client,
		uploader: manager.NewUploader(client),
		bucket:   bucketName,
		region:   region,
	}, nil
}

// ReportKey is the object key of a report snapshot
func ReportKey(reportID string) string {
	return ReportPrefix + reportID + ".json"
}

// ArchiveReport uploads the snapshot as JSON and returns its URL
func (s *fileService) ArchiveReport(ctx context.Context, snapshot model.ReportSnapshot) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	key := ReportKey(snapshot.ReportID)
	start := time.Now()
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	log.Debug().
		Str("key", key).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Uploaded report snapshot")

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *fileService) TestConnection(ctx context.Context) error {
	// a single key is enough to prove the credentials and bucket
	_, err := s.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	log.Err(err).Str("bucket", s.bucket).Msg("AWS S3 Test Connection")

	return err
}
