// Package backup uploads consistent per-table snapshots of a data
// directory to S3 and restores them into an empty directory.
//
// Object layout:
//
//	<prefix><id>/manifest.json
//	<prefix><id>/<table file>
//
// Each table is copied under its whole-file read lock, so a snapshot never
// contains a torn record. Tables are copied one after another; run backups
// against a stopped server or accept that an operation spanning two tables
// may appear half applied. Journal recovery on the restored directory does
// not repair that, because the journal is not part of the backup.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/repository"
)

// ManifestFile is the object name of a backup's manifest.
const ManifestFile = "manifest.json"

// ErrNotEmpty is returned when restoring over existing table files.
var ErrNotEmpty = errors.New("restore target already contains table files")

// Client is the subset of *s3.Client used by backups.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Manifest describes one backup.
type Manifest struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Tables    []TableObject `json:"tables"`
}

// TableObject is one uploaded table.
type TableObject struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Key        string `json:"key"`
	Bytes      int64  `json:"bytes"`
	RecordSize int    `json:"record_size"`
	Records    int64  `json:"records"`
}

// NewS3Client creates an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// Service runs backups and restores against one bucket.
type Service struct {
	client Client
	cfg    Config
	now    func() time.Time
}

// New creates a backup service.
func New(client Client, cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	return &Service{client: client, cfg: cfg, now: time.Now}, nil
}

func (s *Service) key(parts ...string) string {
	return s.cfg.Prefix + path.Join(parts...)
}

// Backup snapshots every table and uploads it, then writes the manifest.
// A backup without a manifest is incomplete and is ignored by List.
func (s *Service) Backup(ctx context.Context, tables []repository.TableHandle) (m *Manifest, err error) {
	created := s.now().UTC()
	id := created.Format("20060102T150405Z") + "-" + uuid.NewString()[:8]

	ctx, span := telemetry.StartStorageSpan(ctx, "backup", telemetry.Bucket(s.cfg.Bucket))
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	m = &Manifest{ID: id, CreatedAt: created}
	for _, t := range tables {
		var buf bytes.Buffer
		n, err := t.Snapshot(ctx, &buf)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", t.Name(), err)
		}

		obj := TableObject{
			Name:       t.Name(),
			File:       filepath.Base(t.Path()),
			Bytes:      n,
			RecordSize: t.RecordSize(),
		}
		if obj.RecordSize > 0 {
			obj.Records = n / int64(obj.RecordSize)
		}
		obj.Key = s.key(id, obj.File)

		if err := s.put(ctx, obj.Key, buf.Bytes()); err != nil {
			return nil, err
		}
		logger.DebugCtx(ctx, "Table uploaded",
			logger.KeyTable, obj.Name, logger.KeyKey, obj.Key, "bytes", n)
		m.Tables = append(m.Tables, obj)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.put(ctx, s.key(id, ManifestFile), data); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Backup completed", logger.KeyBucket, s.cfg.Bucket, "backup_id", id, "tables", len(m.Tables))
	return m, nil
}

func (s *Service) put(ctx context.Context, key string, data []byte) error {
	return s.withRetry(ctx, "put", key, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:            aws.String(s.cfg.Bucket),
			Key:               aws.String(key),
			Body:              bytes.NewReader(data),
			ContentLength:     aws.Int64(int64(len(data))),
			ChecksumAlgorithm: types.ChecksumAlgorithmCrc32,
		})
		return err
	})
}

func (s *Service) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.withRetry(ctx, "get", key, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket:       aws.String(s.cfg.Bucket),
			Key:          aws.String(key),
			ChecksumMode: types.ChecksumModeEnabled,
		})
		if err != nil {
			return err
		}
		defer func() { _ = out.Body.Close() }()
		data, err = io.ReadAll(out.Body)
		return err
	})
	return data, err
}

// List returns the ids of complete backups, oldest first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	var ids []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.cfg.Prefix)
			if id, file, ok := strings.Cut(rel, "/"); ok && file == ManifestFile {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Manifest downloads the manifest of backup id.
func (s *Service) Manifest(ctx context.Context, id string) (*Manifest, error) {
	data, err := s.get(ctx, s.key(id, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest for backup %s: %w", id, err)
	}
	return &m, nil
}

// Restore writes the tables of backup id into dir. dir must not contain any
// of the backup's table files. The server must not be running on dir.
func (s *Service) Restore(ctx context.Context, id, dir string) (*Manifest, error) {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, t := range m.Tables {
		if _, err := os.Stat(filepath.Join(dir, t.File)); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotEmpty, t.File)
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	for _, t := range m.Tables {
		data, err := s.get(ctx, t.Key)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != t.Bytes {
			return nil, fmt.Errorf("table %s: downloaded %d bytes, manifest says %d", t.Name, len(data), t.Bytes)
		}
		if err := os.WriteFile(filepath.Join(dir, t.File), data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", t.File, err)
		}
	}

	logger.InfoCtx(ctx, "Backup restored", "backup_id", id, logger.KeyPath, dir)
	return m, nil
}

var retryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// withRetry retries fn with exponential backoff while the error is transient.
func (s *Service) withRetry(ctx context.Context, op, key string, fn func() error) error {
	var lastErr error
	backoff := s.cfg.InitialBackoff

	for attempt := 0; attempt <= int(s.cfg.MaxRetries); attempt++ {
		if attempt > 0 {
			logger.DebugCtx(ctx, "Retrying S3 request", "op", op, logger.KeyKey, key, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryables.IsErrorRetryable(lastErr) != aws.TrueTernary {
			break
		}
	}
	return fmt.Errorf("S3 %s %s failed: %w", op, key, lastErr)
}
