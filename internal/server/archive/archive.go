// Package archive keeps a compressed copy of every purged empire in object
// storage before its row is removed.
package archive

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

type Archiver interface {
	Archive(ctx context.Context, roundID int64, e *models.Empire, at time.Time) error
}

// Nop drops everything.
type Nop struct{}

func (Nop) Archive(context.Context, int64, *models.Empire, time.Time) error { return nil }

type record struct {
	RoundID    int64          `json:"round_id"`
	ArchivedAt time.Time      `json:"archived_at"`
	Empire     *models.Empire `json:"empire"`
}

// Encode returns the lz4-compressed JSON form of e and the hex blake3 digest
// of the uncompressed payload.
func Encode(roundID int64, e *models.Empire, at time.Time) ([]byte, string, error) {
	raw, err := json.Marshal(record{RoundID: roundID, ArchivedAt: at, Empire: e})
	if err != nil {
		return nil, "", fmt.Errorf("encode empire: %w", err)
	}
	sum := blake3.Sum256(raw)

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, "", fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

// Decode reverses Encode and checks the digest when one is given.
func Decode(data []byte, digest string) (*models.Empire, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if digest != "" {
		sum := blake3.Sum256(raw)
		if hex.EncodeToString(sum[:]) != digest {
			return nil, fmt.Errorf("archive digest mismatch")
		}
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode empire: %w", err)
	}
	return rec.Empire, nil
}

// Key is the object key an empire is archived under.
func Key(roundID int64, e *models.Empire, digest string) string {
	return fmt.Sprintf("graveyard/round-%d/empire-%d-%s.json.lz4", roundID, e.ID, digest[:16])
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

type S3Archiver struct {
	client putter
	bucket string
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

func NewS3Archiver(ctx context.Context, c S3Config) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: c.Bucket}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, roundID int64, e *models.Empire, at time.Time) error {
	data, digest, err := Encode(roundID, e, at)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(roundID, e, digest)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-lz4"),
		Metadata:    map[string]string{"blake3": digest},
	})
	if err != nil {
		return fmt.Errorf("archive empire %d: %w", e.ID, err)
	}
	return nil
}
