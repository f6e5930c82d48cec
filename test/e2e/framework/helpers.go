package framework

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultBucket is the bucket used by TestContext helpers.
const DefaultBucket = "e2e"

// TestContext holds the context for a test run
type TestContext struct {
	T      *testing.T
	Server *TestServer
	Client *awss3.Client
	Bucket string
}

// NewTestContext starts a server with default settings and returns a
// context with an S3 client pointed at it.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()
	return NewTestContextWithConfig(t, TestServerConfig{})
}

// NewTestContextWithConfig is NewTestContext with an explicit server config.
func NewTestContextWithConfig(t *testing.T, cfg TestServerConfig) *TestContext {
	t.Helper()

	srv := NewTestServer(t, cfg)
	t.Cleanup(srv.Stop)

	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	return &TestContext{
		T:      t,
		Server: srv,
		Client: NewClient(srv.Endpoint()),
		Bucket: DefaultBucket,
	}
}

// NewClient returns an AWS SDK S3 client for a path-style endpoint.
func NewClient(endpoint string) *awss3.Client {
	return awss3.New(awss3.Options{
		BaseEndpoint:               aws.String(endpoint),
		Region:                     "us-east-1",
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("baza", "baza", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
		RetryMaxAttempts:           1,
	})
}

// PutObject uploads data under key and returns the ETag.
func (tc *TestContext) PutObject(key string, data []byte) string {
	tc.T.Helper()

	out, err := tc.Client.PutObject(context.Background(), &awss3.PutObjectInput{
		Bucket: aws.String(tc.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		tc.T.Fatalf("PutObject %s failed: %v", key, err)
	}
	return aws.ToString(out.ETag)
}

// PutSymlink makes key a link to source, a data-relative path.
func (tc *TestContext) PutSymlink(key, source string) error {
	_, err := tc.Client.PutObject(context.Background(), &awss3.PutObjectInput{
		Bucket:   aws.String(tc.Bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(nil),
		Metadata: map[string]string{tc.Server.SymlinkMetaKey(): source},
	})
	return err
}

// GetObject downloads key.
func (tc *TestContext) GetObject(key string) ([]byte, error) {
	out, err := tc.Client.GetObject(context.Background(), &awss3.GetObjectInput{
		Bucket: aws.String(tc.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}

// AssertObjectContent asserts that key reads back as expected
func (tc *TestContext) AssertObjectContent(key string, expected []byte) {
	tc.T.Helper()

	actual, err := tc.GetObject(key)
	if err != nil {
		tc.T.Fatalf("GetObject %s failed: %v", key, err)
	}
	if !bytes.Equal(actual, expected) {
		tc.T.Fatalf("Content mismatch for %s:\nExpected: %q\nGot: %q", key, expected, actual)
	}
}

// AssertNoSuchKey asserts that reading key reports it absent
func (tc *TestContext) AssertNoSuchKey(key string) {
	tc.T.Helper()

	_, err := tc.GetObject(key)
	var noSuchKey *types.NoSuchKey
	if !errors.As(err, &noSuchKey) {
		tc.T.Fatalf("Expected NoSuchKey for %s, got: %v", key, err)
	}
}

// DataPath returns the on-disk location of key.
func (tc *TestContext) DataPath(key string) string {
	return filepath.Join(tc.Server.Storage().DataRoot(), tc.Bucket, filepath.FromSlash(key))
}

// Lstat returns file info of key on disk without following symlinks
func (tc *TestContext) Lstat(key string) (os.FileInfo, error) {
	return os.Lstat(tc.DataPath(key))
}

// Readlink reads the on-disk target of key
func (tc *TestContext) Readlink(key string) (string, error) {
	return os.Readlink(tc.DataPath(key))
}

// HTTPGet fetches url and returns its status and body.
func (tc *TestContext) HTTPGet(url string) (int, string) {
	tc.T.Helper()

	resp, err := http.Get(url)
	if err != nil {
		tc.T.Fatalf("GET %s failed: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Reading %s failed: %v", url, err)
	}
	return resp.StatusCode, string(body)
}
