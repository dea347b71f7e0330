package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input    *s3.PutObjectInput
	body     []byte
	location string
	err      error
}

func (f *fakePutter) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: f.location}, nil
}

func TestUploadUsesPrefixedKey(t *testing.T) {
	fp := &fakePutter{location: "https://snips.s3.amazonaws.com/team/a.png"}
	s := newS3(Options{Bucket: "snips", Prefix: "team"}, fp)

	loc, err := s.Upload(context.Background(), "a.png", []byte("png bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if loc != fp.location {
		t.Errorf("location = %q", loc)
	}
	if aws.ToString(fp.input.Bucket) != "snips" || aws.ToString(fp.input.Key) != "team/a.png" {
		t.Errorf("put %s/%s", aws.ToString(fp.input.Bucket), aws.ToString(fp.input.Key))
	}
	if aws.ToString(fp.input.ContentType) != "image/png" || string(fp.body) != "png bytes" {
		t.Errorf("content type %q body %q", aws.ToString(fp.input.ContentType), fp.body)
	}
}

func TestUploadFallsBackToS3URL(t *testing.T) {
	s := newS3(Options{Bucket: "snips"}, &fakePutter{})
	loc, err := s.Upload(context.Background(), "b.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	if loc != "s3://snips/b.png" {
		t.Errorf("location = %q", loc)
	}
}

func TestUploadWrapsError(t *testing.T) {
	denied := errors.New("access denied")
	s := newS3(Options{Bucket: "snips"}, &fakePutter{err: denied})
	_, err := s.Upload(context.Background(), "c.png", nil)
	if !errors.Is(err, denied) || !strings.Contains(err.Error(), "s3://snips/c.png") {
		t.Errorf("err = %v", err)
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), Options{}); !errors.Is(err, ErrNoBucket) {
		t.Errorf("err = %v, want ErrNoBucket", err)
	}
}

func TestObjectName(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("x", 3600))
	if got := ObjectName(ts); got != "hdr-snip-20260304-040607.890.png" {
		t.Errorf("ObjectName = %q", got)
	}
}
