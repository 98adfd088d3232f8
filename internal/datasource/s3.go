package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// maxPayload caps how much of an upstream body is read.
const maxPayload = 1 << 20

// S3Source reads a JSON snapshot that some other process uploads to a bucket.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string
}

var _ Adapter = (*S3Source)(nil)

// NewS3 builds an S3Source. Required settings: bucket, file (or key), region,
// key_id (or access_key_id), secret (or secret_access_key).
// Optional: endpoint, for S3-compatible stores; it switches to path-style URLs.
func NewS3(cfg Config, deps Deps) (Adapter, error) {
	deps = deps.withDefaults()
	s := cfg.Settings

	bucket := s.Get("bucket")
	if bucket == "" {
		return nil, missingSetting("s3", "bucket")
	}
	key := s.Get("file", "key")
	if key == "" {
		return nil, missingSetting("s3", "file")
	}
	region := s.Get("region")
	if region == "" {
		return nil, missingSetting("s3", "region")
	}
	keyID := s.Get("key_id", "access_key_id")
	if keyID == "" {
		return nil, missingSetting("s3", "key_id")
	}
	secret := s.Get("secret", "secret_access_key")
	if secret == "" {
		return nil, missingSetting("s3", "secret")
	}

	opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(keyID, secret, ""),
		HTTPClient:  deps.HTTP,
		// One retry at most; the SDK default would try three times.
		RetryMaxAttempts: 2,
	}
	if ep := s.Get("endpoint"); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
		opts.UsePathStyle = true
	}

	return &S3Source{client: s3.New(opts), bucket: bucket, key: key}, nil
}

// Download fetches and decodes the snapshot object.
func (a *S3Source) Download(ctx context.Context) (domain.Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key),
	})
	if err != nil {
		return domain.Snapshot{}, classifyS3Error(a.bucket, a.key, err)
	}
	defer out.Body.Close()

	var snap domain.Snapshot
	if err := json.NewDecoder(io.LimitReader(out.Body, maxPayload)).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: s3://%s/%s: %v", domain.ErrDecode, a.bucket, a.key, err)
	}
	return snap, nil
}

// classifyS3Error separates permanent API faults (missing key, denied access)
// from transport failures.
func classifyS3Error(bucket, key string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code >= 400 && code < 500 && code != 408 && code != 429 {
			reason := fmt.Sprintf("status %d", code)
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				reason = apiErr.ErrorCode()
			}
			return fmt.Errorf("%w: s3://%s/%s: %s", domain.ErrConfiguration, bucket, key, reason)
		}
	}
	return fmt.Errorf("%w: s3://%s/%s: %v", domain.ErrTransientFetch, bucket, key, err)
}
