package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog/log"
)

// FirebaseStore keeps attachments in a Firebase Storage bucket.
type FirebaseStore struct {
	bucket *gcs.BucketHandle
}

// NewFirebaseStore opens bucketName, or the project's default bucket when
// bucketName is empty.
func NewFirebaseStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Storage client: %w", err)
	}

	var bucket *gcs.BucketHandle
	if bucketName == "" {
		bucket, err = client.DefaultBucket()
	} else {
		bucket, err = client.Bucket(bucketName)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening bucket: %w", err)
	}

	log.Info().Str("bucket", bucketName).Msg("Storing attachments in Firebase Storage")
	return &FirebaseStore{bucket: bucket}, nil
}

func (s *FirebaseStore) Save(ctx context.Context, key, contentType string, r io.Reader) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *FirebaseStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	return rc, err
}

func (s *FirebaseStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}
