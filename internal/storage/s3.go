package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3Client builds a path-style S3 client from the AWS_* environment.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnvString("AWS_REGION", "us-east-1")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3TranscriptCache keeps extracted transcripts as JSON objects in a bucket.
type S3TranscriptCache struct {
	client s3API
	bucket string
}

func NewS3TranscriptCache(client *s3.Client, bucket string) *S3TranscriptCache {
	return &S3TranscriptCache{client: client, bucket: bucket}
}

func (c *S3TranscriptCache) Get(ctx context.Context, videoID string) (common.SegmentedTranscript, bool, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(TranscriptKey(videoID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return common.SegmentedTranscript{}, false, nil
		}
		return common.SegmentedTranscript{}, false, fmt.Errorf("failed to get transcript from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return common.SegmentedTranscript{}, false, fmt.Errorf("failed to read transcript: %w", err)
	}

	return decodeTranscript(videoID, buf.Bytes())
}

func (c *S3TranscriptCache) Put(ctx context.Context, transcript common.SegmentedTranscript) error {
	if transcript.VideoID == "" {
		return fmt.Errorf("transcript has no video id")
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return err
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(TranscriptKey(transcript.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload transcript to S3: %w", err)
	}
	return nil
}
