package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/lepss/rent-simulator/internal/config"
)

// IArchiveStorage defines the interface for storing simulation archives in S3.
type IArchiveStorage interface {
	UploadArchive(ctx context.Context, ownerID, simulationID string, data []byte) (string, error)
	GeneratePresignedGetURL(ctx context.Context, key string) (string, error)
}

// archiveStorage implements IArchiveStorage.
type archiveStorage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewArchiveStorage creates a new S3-backed archive storage service.
func NewArchiveStorage(cfg *config.Config) (IArchiveStorage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Use static credentials from config for simplicity
		// For production, prefer IAM roles or other secure credential methods
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presignClient := s3.NewPresignClient(s3Client)

	return &archiveStorage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: presignClient,
	}, nil
}

// UploadArchive writes a JSON snapshot of a simulation to the archive bucket.
// It returns the S3 object key of the stored archive.
func (s *archiveStorage) UploadArchive(ctx context.Context, ownerID, simulationID string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("archives/%s/%s/%s.json", ownerID, simulationID, uuid.NewString())

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to key %s: %w", objectKey, err)
	}

	log.Printf("Uploaded simulation archive to S3 key: %s", objectKey)
	return objectKey, nil
}

// GeneratePresignedGetURL creates a pre-signed URL for downloading a stored archive.
func (s *archiveStorage) GeneratePresignedGetURL(ctx context.Context, key string) (string, error) {
	expiration := 15 * time.Minute

	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", key, err)
	}

	return presignedReq.URL, nil
}
