package services

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/clusterdeck/internal/server/config"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExporter(t *testing.T, store *memStore) *ActivityExporter {
	t.Helper()
	db, _ := newSQLMockDB(t)
	cfg := &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "clusterdeck",
	}
	e := NewActivityExporter(db, &fakeRepoManager{store}, cfg)
	e.now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	return e
}

// stubS3 replaces the S3 seams for the duration of the test.
func stubS3(t *testing.T, put func(in *s3.PutObjectInput) error, presign func(in *s3.GetObjectInput) (*v4.PresignedHTTPRequest, error)) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := putObject
	origPresign := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		putObject = origPut
		presignGetObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not applied")
		}
		if !opts.UsePathStyle {
			t.Fatalf("path-style addressing not enabled")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error { return put(in) }
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return presign(in)
	}
}

func TestExportKey_Layout(t *testing.T) {
	key := ExportKey(42, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^clusters/42/activity/2025/03/07/[0-9a-f-]{36}\.json$`), key)
}

func TestExport_UploadsAndPresigns(t *testing.T) {
	store := newMemStore()
	alice := seedUser(t, store, "alice@example.com", "password123")
	cluster := seedCluster(t, store, "alice's", models.RoleOwner, alice)
	for _, a := range []models.ActivityType{models.ActivityCreateCluster, models.ActivitySignUp} {
		require.NoError(t, fakeActivity{store}.Create(context.Background(), &models.ActivityLog{ClusterID: cluster.ID, UserID: alice.ID, Action: a}))
	}

	var uploadedKey string
	var doc exportDocument
	stubS3(t,
		func(in *s3.PutObjectInput) error {
			assert.Equal(t, "clusterdeck", *in.Bucket)
			assert.Equal(t, "application/json", *in.ContentType)
			uploadedKey = *in.Key
			body, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &doc))
			return nil
		},
		func(in *s3.GetObjectInput) (*v4.PresignedHTTPRequest, error) {
			assert.Equal(t, uploadedKey, *in.Key)
			return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Key + "?sig=1"}, nil
		},
	)

	e := newExporter(t, store)
	got, err := e.Export(context.Background(), cluster.ID)
	require.NoError(t, err)

	assert.Equal(t, uploadedKey, got.Key)
	assert.Equal(t, "https://s3.local/"+uploadedKey+"?sig=1", got.URL)
	assert.Equal(t, 2, got.Entries)
	assert.Equal(t, time.Date(2025, 3, 7, 10, 15, 0, 0, time.UTC), got.ExpiresAt)
	assert.Contains(t, got.Key, "clusters/"+itoa(cluster.ID)+"/activity/2025/03/07/")

	assert.Equal(t, cluster.ID, doc.ClusterID)
	require.Len(t, doc.Activity, 2)
	assert.Equal(t, models.ActivityCreateCluster, doc.Activity[0].Action)
}

func TestExport_EmptyLogStillUploads(t *testing.T) {
	store := newMemStore()
	var body []byte
	stubS3(t,
		func(in *s3.PutObjectInput) error {
			body, _ = io.ReadAll(in.Body)
			return nil
		},
		func(in *s3.GetObjectInput) (*v4.PresignedHTTPRequest, error) {
			return &v4.PresignedHTTPRequest{URL: "u"}, nil
		},
	)

	got, err := newExporter(t, store).Export(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Entries)
	assert.Contains(t, string(body), `"activity":[]`)
}

func TestExport_Errors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		store := newMemStore()
		store.fail["activity.ListForCluster"] = errBoom{}
		_, err := newExporter(t, store).Export(context.Background(), 1)
		assert.ErrorIs(t, err, errBoom{})
	})

	t.Run("put", func(t *testing.T) {
		stubS3(t,
			func(in *s3.PutObjectInput) error { return errors.New("put failed") },
			func(in *s3.GetObjectInput) (*v4.PresignedHTTPRequest, error) {
				t.Fatal("presign must not run after a failed upload")
				return nil, nil
			},
		)
		_, err := newExporter(t, newMemStore()).Export(context.Background(), 1)
		assert.ErrorContains(t, err, "error uploading export: put failed")
	})

	t.Run("presign", func(t *testing.T) {
		stubS3(t,
			func(in *s3.PutObjectInput) error { return nil },
			func(in *s3.GetObjectInput) (*v4.PresignedHTTPRequest, error) { return nil, errors.New("sign failed") },
		)
		_, err := newExporter(t, newMemStore()).Export(context.Background(), 1)
		assert.ErrorContains(t, err, "error presigning export: sign failed")
	})

	t.Run("config", func(t *testing.T) {
		orig := loadDefaultAWSConfig
		t.Cleanup(func() { loadDefaultAWSConfig = orig })
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no config")
		}
		_, err := newExporter(t, newMemStore()).Export(context.Background(), 1)
		assert.ErrorContains(t, err, "error creating s3 client: no config")
	})
}
