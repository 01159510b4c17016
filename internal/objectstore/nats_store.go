// Package objectstore provides a NATS JetStream-backed blob store for
// inbound voice payloads awaiting transcription.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Voice payloads are transient: once transcribed (or discarded) they have no
// further use, so the bucket expires entries instead of growing forever.
const voicePayloadTTL = 24 * time.Hour

// NatsVoiceStore implements core.ObjectStore using a JetStream object store
// bucket keyed by audio key.
type NatsVoiceStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the voice payload bucket, or binds to it when it already
// exists, and returns a store backed by it.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsVoiceStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Inbound voice payloads for the %s bucket.", bucketName),
		TTL:         voicePayloadTTL,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create voice bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to bind to existing voice bucket '%s': %w", bucketName, err,
			)
		}
	}

	return &NatsVoiceStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves a stored voice payload by its audio key.
func (n *NatsVoiceStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to get voice payload '%s' from bucket '%s': %w", key, n.bucket, err,
		)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read voice payload '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close voice payload '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores a voice payload under the given audio key.
func (n *NatsVoiceStore) Upload(_ context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if err != nil {
		return fmt.Errorf(
			"failed to put voice payload '%s' to bucket '%s': %w", key, n.bucket, err,
		)
	}

	return nil
}

// Delete removes a voice payload once it is no longer needed.
func (n *NatsVoiceStore) Delete(_ context.Context, key string) error {
	err := n.store.Delete(key)
	if err != nil {
		return fmt.Errorf(
			"failed to delete voice payload '%s' from bucket '%s': %w", key, n.bucket, err,
		)
	}

	return nil
}
