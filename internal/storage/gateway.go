// Package storage wraps the durable collaborators: an S3-compatible object
// store with public URLs and a Postgres transformation ledger. Both are
// optional; a gateway without credentials degrades to local-only mode and
// every call becomes a logged no-op failure that the pipeline absorbs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned by every method when the gateway is degraded.
var ErrUnavailable = errors.New("durable storage unavailable")

// callTimeout bounds each storage call; expiry degrades like any other
// storage failure rather than failing the request.
const callTimeout = 15 * time.Second

// Config holds the collaborator endpoints and credentials.
type Config struct {
	Endpoint  string // S3-compatible endpoint, e.g. the Supabase storage URL
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base under which uploaded objects are publicly
	// reachable; object keys are appended to it.
	PublicURL string
	// PostgresDSN points at the ledger database; empty disables the
	// durable ledger while keeping object storage.
	PostgresDSN string
}

// Gateway is the durable-storage facade used by the pipeline and catalog.
type Gateway struct {
	client    *s3.Client
	bucket    string
	publicURL string
	ledger    *pgxpool.Pool
}

// New builds a Gateway. Misconfiguration never fails startup: missing object
// storage or ledger settings leave the corresponding half degraded.
func New(ctx context.Context, cfg Config) *Gateway {
	g := &Gateway{
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}

	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" {
		log.Warn().Msg("object storage not configured, running in local-only mode")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			),
		)
		if err != nil {
			log.Warn().Err(err).Msg("object storage config failed, running in local-only mode")
		} else {
			g.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			})
			if g.publicURL == "" {
				g.publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
			}
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("ledger database not reachable, durable records disabled")
		} else {
			g.ledger = pool
		}
	}

	return g
}

// Available reports whether object storage is configured. Degraded gateways
// make the pipeline fall back to local persistence and inline results.
func (g *Gateway) Available() bool {
	return g.client != nil
}

// UploadBytes stores the image under the given logical folder and returns
// its public URL. Object keys are {folder}/{timestamp}_{uuid8}.jpg.
func (g *Gateway) UploadBytes(ctx context.Context, folder string, data []byte) (string, error) {
	if g.client == nil {
		return "", ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	key := fmt.Sprintf("%s/%s_%s.jpg",
		folder,
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
	)

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url := g.publicURL + "/" + key
	log.Info().Str("key", key).Str("url", url).Msg("image uploaded")
	return url, nil
}

// Download returns the bytes of the object at the given key.
func (g *Gateway) Download(ctx context.Context, key string) ([]byte, error) {
	if g.client == nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return data, nil
}

// List returns the object names (without the prefix) directly under prefix.
func (g *Gateway) List(ctx context.Context, prefix string) ([]string, error) {
	if g.client == nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(strings.TrimSuffix(prefix, "/") + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	names := make([]string, 0, len(result.Contents))
	for _, obj := range result.Contents {
		if obj.Key == nil {
			continue
		}
		name := strings.TrimPrefix(*obj.Key, strings.TrimSuffix(prefix, "/")+"/")
		if name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	return names, nil
}

// SaveTransformationRecord appends one row to the durable ledger. The table
// is append-only; rows are never updated or deleted here.
func (g *Gateway) SaveTransformationRecord(ctx context.Context, userName, userEmail, originalURL, transformedURL, transformationType string) error {
	if g.ledger == nil {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := g.ledger.Exec(ctx, `
		INSERT INTO photobooth_transformations
			(user_name, user_email, original_image_url, transformed_image_url, transformation_type, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, userName, userEmail, originalURL, transformedURL, transformationType)
	if err != nil {
		return fmt.Errorf("save transformation record: %w", err)
	}

	log.Info().Str("email", userEmail).Msg("transformation record saved")
	return nil
}

// Close releases the ledger pool.
func (g *Gateway) Close() {
	if g.ledger != nil {
		g.ledger.Close()
	}
}
