package s3

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/baza/pkg/storage"
)

// APIError is an S3 error response.
type APIError struct {
	// Code is the S3 error code (e.g. "NoSuchKey").
	Code string

	// Message is the human-readable description.
	Message string

	// Status is the HTTP status code.
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes returned by the adapter.
var (
	ErrNoSuchKey = &APIError{
		Code:    "NoSuchKey",
		Message: "The specified key does not exist.",
		Status:  http.StatusNotFound,
	}
	ErrSlowDown = &APIError{
		Code:    "SlowDown",
		Message: "Please reduce your request rate.",
		Status:  http.StatusServiceUnavailable,
	}
	ErrNotImplemented = &APIError{
		Code:    "NotImplemented",
		Message: "A header or operation you provided implies functionality that is not implemented.",
		Status:  http.StatusNotImplemented,
	}
	ErrInternal = &APIError{
		Code:    "InternalError",
		Message: "We encountered an internal error. Please try again.",
		Status:  http.StatusInternalServerError,
	}
	ErrServiceUnavailable = &APIError{
		Code:    "ServiceUnavailable",
		Message: "The storage backend is not ready.",
		Status:  http.StatusServiceUnavailable,
	}
)

// invalidArgument reports a request attribute that failed validation.
func invalidArgument(attr string, err error) *APIError {
	return &APIError{
		Code:    "InvalidArgument",
		Message: fmt.Sprintf("Invalid %s: %v", attr, err),
		Status:  http.StatusBadRequest,
	}
}

// toAPIError maps a storage failure onto an S3 error.
//
// Invalid paths are client faults; everything else coming out of storage is an
// internal error whose details stay in the server log.
func toAPIError(attr string, err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrInvalidPath):
		return invalidArgument(attr, err)
	default:
		return ErrInternal
	}
}

// errorResponse is the XML document S3 clients parse on failure.
type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId"`
}

// abortWithError writes e as an S3 XML error and stops the handler chain.
// HEAD responses carry no body.
func abortWithError(c *gin.Context, e *APIError) {
	if c.Request.Method == http.MethodHead {
		c.AbortWithStatus(e.Status)
		return
	}

	c.Abort()
	c.XML(e.Status, errorResponse{
		Code:      e.Code,
		Message:   e.Message,
		Resource:  c.Request.URL.Path,
		RequestID: c.GetString(requestIDKey),
	})
}
