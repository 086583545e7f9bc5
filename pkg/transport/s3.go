package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// S3 serves s3:// endpoints with the pool's shared anonymous client. Resume
// maps onto a ranged GetObject; the SDK streams the body and the engine
// re-chunks it through the normal read loop.
type S3 struct {
	pool *Pool
}

// NewS3 creates the object-storage transport backed by the given pool.
func NewS3(pool *Pool) *S3 {
	return &S3{pool: pool}
}

// Scheme implements Transport.
func (t *S3) Scheme() string { return "s3" }

// Size implements Transport.
func (t *S3) Size(ctx context.Context, rawURL string) (int64, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return 0, err
	}
	client, err := t.pool.S3(ctx)
	if err != nil {
		return 0, err
	}

	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get size of %s", rawURL)
	}
	if out.ContentLength == nil {
		return 0, errors.ErrSizeUnknown
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Open implements Transport.
func (t *S3) Open(ctx context.Context, rawURL string, offset int64) (Handle, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	client, err := t.pool.S3(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransportOpen, err.Error())
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := client.GetObject(ctx, input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransportOpen, err.Error())
	}
	return out.Body, nil
}

// parseS3URL splits an s3:// URL into bucket and key.
func parseS3URL(rawURL string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(rawURL, "s3://")
	if !ok {
		return "", "", errors.Wrapf(errors.ErrUnknownScheme, "not an S3 URL: %q", rawURL)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.Wrapf(errors.ErrUnknownScheme, "S3 URL %q lacks bucket/key", rawURL)
	}
	return bucket, key, nil
}
