package storage

import (
	"context"
	"errors"
	"io"
)

// ErrStorageDisabled is returned by the disabled uploader for any write.
var ErrStorageDisabled = errors.New("object storage is not configured")

type disabledUploader struct{}

// NewDisabledUploader returns an uploader that rejects uploads and resolves
// no URLs. Used when the R2 environment variables are absent so the rest of
// the application keeps working without logos.
func NewDisabledUploader() FileUploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	return nil, ErrStorageDisabled
}

func (disabledUploader) Delete(ctx context.Context, key string) error {
	return nil
}

func (disabledUploader) GetPublicURL(key string) string {
	return ""
}
