// Package archive uploads a JSON record of every refresh run to S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"quoteledger/internal/ledger"
	"quoteledger/internal/refresh"
)

type Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint targets S3-compatible providers (MinIO, R2); empty means AWS.
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// PutObjectAPI is the subset of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Record is the archived document.
type Record struct {
	Summary refresh.Summary `json:"summary"`
	Ledger  ledger.Snapshot `json:"ledger"`
}

type S3 struct {
	api    PutObjectAPI
	bucket string
	prefix string
}

// New builds an S3 client from cfg. Static credentials are used when an
// access key is set, otherwise the default AWS chain applies.
func New(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithAPI(api PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns <prefix>/YYYY/MM/DD/<runID>.json for a run.
func (a *S3) Key(s refresh.Summary) string {
	started := s.StartedAt.UTC()
	return path.Join(a.prefix, started.Format("2006/01/02"), s.RunID.String()+".json")
}

func (a *S3) Archive(ctx context.Context, s refresh.Summary, snap ledger.Snapshot) error {
	body, err := json.Marshal(Record{Summary: s, Ledger: snap})
	if err != nil {
		return fmt.Errorf("archive: encode: %w", err)
	}
	key := a.Key(s)
	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}
