// Package s3 turns s3://bucket/key audio references into presigned HTTPS
// urls the inference sidecar can fetch.
package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Scheme is the url scheme handled by Presigner.
const Scheme = "s3"

// Presigner rewrites s3:// urls into presigned GET urls.
type Presigner struct {
	client *awss3.PresignClient
	expiry time.Duration
}

// NewPresigner creates a presigner from the given config.
func NewPresigner(ctx context.Context, cfg *Config) (*Presigner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Presigner{client: awss3.NewPresignClient(client), expiry: expiry}, nil
}

// ParseURL splits s3://bucket/key into its parts. ok is false for any other
// scheme or when bucket or key is missing.
func ParseURL(raw string) (bucket, key string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != Scheme || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

// Resolve returns a presigned url for s3:// references and raw unchanged for
// anything else.
func (p *Presigner) Resolve(ctx context.Context, raw string) (string, error) {
	bucket, key, ok := ParseURL(raw)
	if !ok {
		if strings.HasPrefix(raw, Scheme+"://") {
			return "", fmt.Errorf("s3: malformed url %q", raw)
		}
		return raw, nil
	}

	req, err := p.client.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", fmt.Errorf("s3: presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
