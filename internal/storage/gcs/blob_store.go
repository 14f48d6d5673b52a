// Package gcs archives cycle results in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	harpoonstorage "github.com/JakeFAU/harpoon/internal/storage"
)

// ErrAlreadyArchived is returned when an object already exists at the
// archive path. Cycle archives are write-once.
var ErrAlreadyArchived = errors.New("cycle already archived")

// Config captures the archive bucket.
type Config struct {
	Bucket string
}

// BlobStore writes cycle archives to a GCS bucket. Each object carries the
// cycle ID as metadata and is created with a does-not-exist precondition.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS archive. The client is owned by the caller.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject writes r to objectPath, defaulting to a JSON content type, and
// returns the gs:// URI. Writing over an existing archive fails with
// ErrAlreadyArchived.
func (s *BlobStore) PutObject(ctx context.Context, objectPath string, contentType string, r io.Reader) (string, error) {
	objectPath = strings.TrimPrefix(strings.TrimSpace(objectPath), "/")
	if objectPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	obj := s.client.Bucket(s.bucket).Object(objectPath).If(storage.Conditions{DoesNotExist: true})
	writer := obj.NewWriter(ctx)
	writer.ContentType = archiveContentType(contentType)
	writer.Metadata = objectMetadata(objectPath)

	if _, err := io.Copy(writer, r); err != nil {
		// Close flushes nothing useful after a failed copy; report the copy error.
		_ = writer.Close()
		return "", fmt.Errorf("write %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailure(err) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyArchived, URI(s.bucket, objectPath))
		}
		return "", fmt.Errorf("finalize %s: %w", objectPath, err)
	}
	return URI(s.bucket, objectPath), nil
}

// URI formats the gs:// location of an object.
func URI(bucket, objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(objectPath, "/"))
}

func archiveContentType(contentType string) string {
	if contentType == "" {
		return harpoonstorage.ContentTypeJSON
	}
	return contentType
}

// objectMetadata tags archives laid out by storage.ArchivePath with the
// cycle they hold.
func objectMetadata(objectPath string) map[string]string {
	base := path.Base(objectPath)
	id := strings.TrimSuffix(base, ".json")
	if id == base || id == "" {
		return nil
	}
	return map[string]string{"cycle_id": id}
}

func isPreconditionFailure(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
