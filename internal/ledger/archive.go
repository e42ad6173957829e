package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Archiver keeps a copy of entries that retention is about to remove.
// Archive returns where the copy was written.
type Archiver interface {
	Archive(ctx context.Context, cutoff time.Time, entries []model.LedgerEntry) (string, error)
}

// Expired returns every entry created before cutoff, oldest first, paging
// through src in MaxQueryLimit chunks.
func Expired(ctx context.Context, src Store, cutoff time.Time) ([]model.LedgerEntry, error) {
	var (
		out  []model.LedgerEntry
		from *time.Time
		seen = map[uuid.UUID]bool{} // ids already returned at *from
	)
	for {
		page, err := src.Query(ctx, model.LedgerQuery{From: from, To: &cutoff, Limit: MaxQueryLimit})
		if err != nil {
			return nil, fmt.Errorf("ledger: list expired: %w", err)
		}
		added := 0
		for _, e := range page {
			if seen[e.ID] {
				continue
			}
			out = append(out, e)
			added++
		}
		if len(page) < MaxQueryLimit || added == 0 {
			return out, nil
		}

		last := page[len(page)-1].CreatedAt
		if from == nil || !last.Equal(*from) {
			seen = map[uuid.UUID]bool{}
		}
		for _, e := range page {
			if e.CreatedAt.Equal(last) {
				seen[e.ID] = true
			}
		}
		from = &last
	}
}

// s3PutAPI is the subset of the S3 client the archiver needs.
type s3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveConfig locates the archive bucket.
type S3ArchiveConfig struct {
	Bucket   string
	Region   string
	Endpoint string // Optional, for MinIO or LocalStack.
	Prefix   string
}

// S3Archiver writes expired entries to S3 as one CSV object per purge.
type S3Archiver struct {
	client s3PutAPI
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver from the default AWS credential chain.
func NewS3Archiver(ctx context.Context, cfg S3ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("ledger: s3 archive requires a bucket")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("ledger: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive uploads entries as CSV under a key derived from the cutoff. The
// Merkle root of the batch is stored as object metadata so the archive can
// be checked against the purge audit trail.
func (a *S3Archiver) Archive(ctx context.Context, cutoff time.Time, entries []model.LedgerEntry) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%sretention/%s-%d.csv", a.prefix, cutoff.UTC().Format("20060102T150405Z"), len(entries))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"merkle-root": Root(entries),
			"entries":     strconv.Itoa(len(entries)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ledger: s3 put %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}
