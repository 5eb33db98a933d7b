// Package attachment issues presigned S3 upload URLs for todo attachments.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/todos/internal/shard"
	"github.com/jacentio/todos/todo"
)

// ErrNoBucket is returned when the issuer has no bucket configured.
var ErrNoBucket = errors.New("attachment: bucket not configured")

// Presigner is the subset of *s3.PresignClient used by the Issuer.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectAPI is the subset of *s3.Client used to remove blobs.
type ObjectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds configuration for the Issuer.
type Config struct {
	// Bucket is the attachment bucket. Required.
	Bucket string

	// Expiry is how long an issued URL stays valid.
	// Default: 5 minutes. Max: 7 days (SigV4 limit).
	Expiry time.Duration

	// NumShards spreads object keys over hex prefixes.
	// Default: 1 (key is the todo id). Max: 256
	NumShards int
}

// DefaultConfig returns defaults matching the deployed service.
func DefaultConfig() Config {
	return Config{
		Expiry:    5 * time.Minute,
		NumShards: 1,
	}
}

func (c *Config) validate() {
	if c.Expiry <= 0 {
		c.Expiry = 5 * time.Minute
	}
	if c.Expiry > 7*24*time.Hour {
		c.Expiry = 7 * 24 * time.Hour
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
}

// Issuer presigns uploads into a single bucket.
type Issuer struct {
	presigner Presigner
	objects   ObjectAPI
	config    Config
	logger    *slog.Logger
}

// New creates an Issuer. objects may be nil if Remove is never called.
func New(presigner Presigner, objects ObjectAPI, config Config, logger *slog.Logger) *Issuer {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		presigner: presigner,
		objects:   objects,
		config:    config,
		logger:    logger,
	}
}

// ObjectKey returns the object key for an item. It depends on itemID alone,
// so repeated issuance targets the same object.
func (i *Issuer) ObjectKey(itemID string) string {
	return shard.ObjectKey(itemID, i.config.NumShards)
}

// Bucket returns the configured bucket.
func (i *Issuer) Bucket() string {
	return i.config.Bucket
}

// PresignUpload returns a time-limited PUT URL for the item's object.
// The URL carries its authorization in the query string.
func (i *Issuer) PresignUpload(ctx context.Context, itemID string) (string, error) {
	const op = "attachment.presign"
	if i.config.Bucket == "" {
		return "", todo.E(todo.KindURLIssuance, op, "", itemID, ErrNoBucket)
	}

	key := i.ObjectKey(itemID)
	req, err := i.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(i.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(i.config.Expiry))
	if err != nil {
		return "", todo.E(todo.KindURLIssuance, op, "", itemID, err)
	}
	if req == nil || req.URL == "" {
		return "", todo.E(todo.KindURLIssuance, op, "", itemID, errors.New("empty presigned url"))
	}

	i.logger.Debug("presigned upload",
		"todoId", itemID,
		"bucket", i.config.Bucket,
		"key", key,
		"expiry", i.config.Expiry,
	)
	return req.URL, nil
}

// KeyFromURL returns the object key addressed by a stored attachment URL.
// Both virtual-hosted and path-style URLs for the configured bucket are
// understood.
func (i *Issuer) KeyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if i.config.Bucket != "" && !strings.HasPrefix(u.Host, i.config.Bucket+".") {
		key = strings.TrimPrefix(key, i.config.Bucket+"/")
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// Remove deletes the item's object under the current key layout.
// Deleting a missing object succeeds.
func (i *Issuer) Remove(ctx context.Context, itemID string) error {
	return i.removeKey(ctx, i.ObjectKey(itemID))
}

// RemoveAttachment deletes the object a stored attachment URL points at.
// If the URL carries no usable key, the key is derived from itemID.
func (i *Issuer) RemoveAttachment(ctx context.Context, itemID, attachmentURL string) error {
	key, ok := i.KeyFromURL(attachmentURL)
	if !ok {
		key = i.ObjectKey(itemID)
	}
	return i.removeKey(ctx, key)
}

func (i *Issuer) removeKey(ctx context.Context, key string) error {
	if i.objects == nil {
		return errors.New("attachment: no object client configured")
	}
	if i.config.Bucket == "" {
		return ErrNoBucket
	}

	_, err := i.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(i.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", i.config.Bucket, key, err)
	}
	i.logger.Debug("deleted attachment", "bucket", i.config.Bucket, "key", key)
	return nil
}
