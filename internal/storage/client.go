// Package storage uploads receipt documents to the object store and returns
// their public URLs.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
)

type Client struct {
	endpoint       string
	bucket         string
	fallbackBucket string
	http           *resty.Client
	logger         *zap.Logger
}

// NewClient creates a new object storage client
func NewClient(cfg config.StorageConfig, logger *zap.Logger) *Client {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		endpoint:       endpoint,
		bucket:         cfg.Bucket,
		fallbackBucket: cfg.FallbackBucket,
		http: resty.New().
			SetBaseURL(endpoint).
			SetAuthToken(cfg.ServiceKey).
			SetTimeout(30 * time.Second),
		logger: logger,
	}
}

// Upload stores data under name in the primary bucket and returns the public
// URL. A bucket-not-found response is retried once against the fallback
// bucket; any other failure is returned as-is.
func (c *Client) Upload(ctx context.Context, data []byte, contentType, name string) (string, error) {
	url, err := c.uploadTo(ctx, c.bucket, data, contentType, name)
	if err == nil {
		return url, nil
	}

	if isBucketNotFound(err) && c.fallbackBucket != "" && c.fallbackBucket != c.bucket {
		c.logger.Warn("primary bucket missing, retrying upload in fallback bucket",
			zap.String("bucket", c.bucket),
			zap.String("fallback", c.fallbackBucket),
		)
		return c.uploadTo(ctx, c.fallbackBucket, data, contentType, name)
	}

	return "", err
}

type bucketNotFoundError struct {
	bucket string
}

func (e *bucketNotFoundError) Error() string {
	return fmt.Sprintf("bucket not found: %s", e.bucket)
}

func isBucketNotFound(err error) bool {
	_, ok := err.(*bucketNotFoundError)
	return ok
}

func (c *Client) uploadTo(ctx context.Context, bucket string, data []byte, contentType, name string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", bucket, name))
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.endpoint, bucket, name), nil
	case http.StatusNotFound:
		return "", &bucketNotFoundError{bucket: bucket}
	default:
		return "", fmt.Errorf("storage error: status %d, body: %s", resp.StatusCode(), resp.Body())
	}
}
