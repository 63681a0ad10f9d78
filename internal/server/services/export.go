package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/clusterdeck/internal/server/config"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const exportLinkTTL = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Export describes an uploaded activity snapshot.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Entries   int       `json:"entries"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type exportDocument struct {
	ClusterID  int64                `json:"clusterId"`
	ExportedAt time.Time            `json:"exportedAt"`
	Activity   []models.ActivityLog `json:"activity"`
}

// ActivityExporter writes a cluster's activity log to object storage and
// hands back a short-lived download link.
type ActivityExporter struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewActivityExporter(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *ActivityExporter {
	return &ActivityExporter{
		db:          db,
		repomanager: m,
		config:      cfg,
		now:         time.Now,
	}
}

// ExportKey builds the object key for an export taken at t.
func ExportKey(clusterID int64, t time.Time) string {
	return fmt.Sprintf("clusters/%d/activity/%04d/%02d/%02d/%v.json",
		clusterID, t.Year(), int(t.Month()), t.Day(), uuid.New())
}

func (e *ActivityExporter) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(e.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.config.S3RootUser,
			e.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export uploads every activity row of clusterID as one JSON document.
func (e *ActivityExporter) Export(ctx context.Context, clusterID int64) (*Export, error) {
	rows, err := e.repomanager.Activity(e.db).ListForCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	if rows == nil {
		rows = []models.ActivityLog{}
	}

	now := e.now().UTC()
	body, err := json.Marshal(exportDocument{ClusterID: clusterID, ExportedAt: now, Activity: rows})
	if err != nil {
		return nil, fmt.Errorf("error encoding export: %w", err)
	}

	client, err := e.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating s3 client: %w", err)
	}

	bucket := e.config.S3Bucket
	key := ExportKey(clusterID, now)

	if err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("error uploading export: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(exportLinkTTL))
	if err != nil {
		return nil, fmt.Errorf("error presigning export: %w", err)
	}

	return &Export{Key: key, URL: req.URL, Entries: len(rows), ExpiresAt: now.Add(exportLinkTTL)}, nil
}
