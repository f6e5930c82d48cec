package s3

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/zeebo/blake3"

	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/pkg/storage"
)

// Query parameters selecting S3 sub-resources the adapter does not serve.
// Other query parameters (e.g. the SDK's x-id) are ignored.
var unsupportedSubresources = []string{
	"acl",
	"attributes",
	"legal-hold",
	"retention",
	"tagging",
	"torrent",
	"uploadId",
	"uploads",
	"partNumber",
	"versionId",
}

// emptyETag is the ETag of a zero-length body, returned for symlinks.
var emptyETag = etag(blake3.Sum256(nil))

// putObject handles PutObject.
//
// With the symlink metadata header, the header value is parsed as a path
// relative to the data root and a Symlink operation links the object to it;
// the request body is ignored. Otherwise the body is streamed to a CreateFile
// operation, hashed on the way to produce the ETag.
func (a *S3Adapter) putObject(c *gin.Context) {
	if unsupportedRequest(c) || c.GetHeader("X-Amz-Copy-Source") != "" || isStreamingPayload(c) {
		abortWithError(c, ErrNotImplemented)
		return
	}

	path, apiErr := objectPath(c)
	if apiErr != nil {
		abortWithError(c, apiErr)
		return
	}

	// ========================================================================
	// Symlink creation
	// ========================================================================

	if values := c.Request.Header.Values(a.config.symlinkHeader()); len(values) > 0 {
		source, err := storage.ParseRelativePath(values[0])
		if err != nil {
			abortWithError(c, invalidArgument(a.config.SymlinkMetaKey, err))
			return
		}
		if source.String() == path.String() {
			abortWithError(c, invalidArgument(a.config.SymlinkMetaKey, fmt.Errorf("%q would point to itself", values[0])))
			return
		}

		_, err = a.linker.Exec(c.Request.Context(), storage.Symlink{Source: source, Link: path})
		if err != nil {
			logger.Error("S3 PutObject symlink %s -> %s failed: %v", path, source, err)
			abortWithError(c, toAPIError("key", err))
			return
		}

		c.Header("ETag", emptyETag)
		c.Status(http.StatusOK)
		return
	}

	// ========================================================================
	// File creation
	// ========================================================================

	hasher := blake3.New()
	body := &countingReader{r: io.TeeReader(c.Request.Body, hasher)}

	_, err := a.creator.Exec(c.Request.Context(), storage.CreateFile{
		Path:   path,
		Chunks: storage.ReaderChunks(body, a.config.ChunkSize),
	})
	a.metrics.AddBytes("in", body.n)
	if err != nil {
		logger.Error("S3 PutObject %s failed after %d bytes: %v", path, body.n, err)
		abortWithError(c, toAPIError("key", err))
		return
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	c.Header("ETag", etag(sum))
	c.Status(http.StatusOK)
}

// getObject handles GetObject and HeadObject.
//
// Content-Type is sniffed from the first bytes of the file. Range and
// conditional requests are served by http.ServeContent.
func (a *S3Adapter) getObject(c *gin.Context) {
	if unsupportedRequest(c) {
		abortWithError(c, ErrNotImplemented)
		return
	}

	path, apiErr := objectPath(c)
	if apiErr != nil {
		abortWithError(c, apiErr)
		return
	}

	f, err := a.reader.Exec(c.Request.Context(), storage.ReadFile{Path: path})
	if err != nil {
		logger.Error("S3 %s %s failed: %v", c.Request.Method, path, err)
		abortWithError(c, toAPIError("key", err))
		return
	}
	if f == nil {
		abortWithError(c, ErrNoSuchKey)
		return
	}
	defer func() { _ = f.Close() }()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		logger.Error("S3 %s %s: content sniffing failed: %v", c.Request.Method, path, err)
		abortWithError(c, ErrInternal)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		logger.Error("S3 %s %s: rewind failed: %v", c.Request.Method, path, err)
		abortWithError(c, ErrInternal)
		return
	}

	c.Header("Content-Type", mtype.String())
	http.ServeContent(c.Writer, c.Request, "", f.ModTime(), f.File)

	if c.Request.Method == http.MethodGet {
		a.metrics.AddBytes("out", int64(c.Writer.Size()))
	}
}

// notImplemented answers every route the adapter does not serve.
func (a *S3Adapter) notImplemented(c *gin.Context) {
	abortWithError(c, ErrNotImplemented)
}

// objectPath builds <bucket>/<key> from the route parameters.
//
// An empty key ("/bucket/") addresses the bucket itself, which is a bucket
// level operation and therefore not implemented.
func objectPath(c *gin.Context) (storage.RelativePath, *APIError) {
	rawKey := strings.TrimPrefix(c.Param("key"), "/")
	if rawKey == "" {
		return storage.RelativePath{}, ErrNotImplemented
	}

	bucket, err := storage.ParseRelativePath(c.Param("bucket"))
	if err != nil {
		return storage.RelativePath{}, invalidArgument("bucket", err)
	}

	key, err := storage.ParseRelativePath(rawKey)
	if err != nil {
		return storage.RelativePath{}, invalidArgument("key", err)
	}

	return bucket.Join(key), nil
}

func unsupportedRequest(c *gin.Context) bool {
	query := c.Request.URL.Query()
	for _, name := range unsupportedSubresources {
		if query.Has(name) {
			return true
		}
	}
	return false
}

// isStreamingPayload reports aws-chunked uploads, whose framing is not decoded.
func isStreamingPayload(c *gin.Context) bool {
	return strings.HasPrefix(c.GetHeader("X-Amz-Content-Sha256"), "STREAMING-") ||
		strings.Contains(c.GetHeader("Content-Encoding"), "aws-chunked")
}

func etag(sum [32]byte) string {
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
