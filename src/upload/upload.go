// Package upload copies exported images to an S3 bucket.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrNoBucket = errors.New("upload: no bucket configured")

type Options struct {
	Bucket string
	// Prefix is prepended to every object key, without a leading slash.
	Prefix string
	// Region overrides the region from the shared AWS configuration.
	Region string
}

// putter is the part of manager.Uploader this package uses.
type putter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads PNG bytes under generated keys. Safe for concurrent use.
type S3 struct {
	bucket string
	prefix string
	up     putter
}

// NewS3 resolves credentials the way the AWS CLI does: environment, shared
// files, then instance roles.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, ErrNoBucket
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return newS3(opts, manager.NewUploader(client)), nil
}

func newS3(opts Options, up putter) *S3 {
	return &S3{bucket: opts.Bucket, prefix: opts.Prefix, up: up}
}

// ObjectName names an export taken at t.
func ObjectName(t time.Time) string {
	return "hdr-snip-" + t.UTC().Format("20060102-150405.000") + ".png"
}

// Key is the object key for name.
func (s *S3) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Upload stores data as name and returns the object location.
func (s *S3) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := s.Key(name)
	start := time.Now()
	out, err := s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	loc := out.Location
	if loc == "" {
		loc = fmt.Sprintf("s3://%s/%s", s.bucket, key)
	}
	log.Printf("UPLOAD: %d bytes to %s in %v", len(data), loc, time.Since(start))
	return loc, nil
}
