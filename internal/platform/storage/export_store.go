package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/packhouse/api/internal/services"
)

const maxDownloadURLExpiry = 15 * time.Minute

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
)

// ExportStore writes export artifacts to a Cloud Storage bucket and issues
// time-limited download URLs for them.
type ExportStore struct {
	client *gcs.Client
	signer Signer
	bucket string
	scheme gcs.SigningScheme
	now    func() time.Time
}

// ExportStoreOption customises store behaviour.
type ExportStoreOption func(*ExportStore)

// WithExportClock injects a custom clock (useful for tests).
func WithExportClock(clock func() time.Time) ExportStoreOption {
	return func(s *ExportStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewExportStore constructs an export store bound to one bucket.
func NewExportStore(client *gcs.Client, signer Signer, bucket string, opts ...ExportStoreOption) (*ExportStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}

	store := &ExportStore{
		client: client,
		signer: signer,
		bucket: bucket,
		scheme: gcs.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// WriteObject uploads the payload under the given object path, replacing any
// previous version.
func (s *ExportStore) WriteObject(ctx context.Context, objectPath string, contentType string, data []byte) error {
	if s == nil || s.client == nil {
		return errors.New("storage: export store not initialised")
	}
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return errInvalidObject
	}

	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = strings.TrimSpace(contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: finalize object %s: %w", objectPath, err)
	}
	return nil
}

// SignedDownloadURL issues a GET URL for the object, valid until the returned
// timestamp. Expiry is capped so leaked links age out quickly.
func (s *ExportStore) SignedDownloadURL(ctx context.Context, objectPath string, expiresIn time.Duration, disposition string) (string, time.Time, error) {
	if s == nil || s.signer == nil {
		return "", time.Time{}, errNoSigner
	}
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return "", time.Time{}, errInvalidObject
	}
	if expiresIn <= 0 {
		expiresIn = 5 * time.Minute
	}
	if expiresIn > maxDownloadURLExpiry {
		expiresIn = maxDownloadURLExpiry
	}

	expiresAt := s.now().Add(expiresIn)
	opts := &gcs.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		Scheme:         s.scheme,
		Method:         "GET",
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		},
	}
	if d := strings.TrimSpace(disposition); d != "" {
		opts.QueryParameters = url.Values{"response-content-disposition": []string{d}}
	}

	signed, err := gcs.SignedURL(s.bucket, objectPath, opts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return signed, expiresAt, nil
}

var _ services.ExportStore = (*ExportStore)(nil)
