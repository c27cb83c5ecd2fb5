package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// BackendError carries the backend's status and message for a failed live
// operation. stat, delete and testConnection translate their expected
// not-found case instead of raising it; everything else propagates as-is so
// callers decide whether to retry.
type BackendError struct {
	Op      string
	Code    string
	Message string
	Timeout bool
	err     error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage %s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("storage %s: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error { return e.err }

// newBackendError wraps an S3 error, extracting the provider's error code and
// flagging timeouts so a hung backend surfaces as such.
func newBackendError(op string, err error) *BackendError {
	be := &BackendError{Op: op, Message: err.Error(), err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be.Code = apiErr.ErrorCode()
		be.Message = apiErr.ErrorMessage()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		be.Timeout = true
		be.Code = "Timeout"
	}
	return be
}

// IsNotFound reports whether err is the backend's object-absent response.
func IsNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NotFound" || code == "NoSuchKey" {
			return true
		}
	}
	// HeadObject reports 404 without a modeled error type on some backends.
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
