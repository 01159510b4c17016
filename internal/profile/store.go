// Package profile persists per-user business style context in a NATS
// JetStream key-value bucket, keyed by user ID.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/gohar-studio/voice-engine/internal/core"
)

// NatsProfileStore implements core.ProfileStore on top of a JetStream KV
// bucket. Profiles are stored as JSON.
type NatsProfileStore struct {
	bucket string
	kv     nats.KeyValue
}

// New creates the profile bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsProfileStore, error) {
	kv, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:       bucketName,
		Description:  fmt.Sprintf("Per-user style profiles for the %s bucket.", bucketName),
		MaxValueSize: 0,
		History:      1,
		TTL:          0,
		MaxBytes:     0,
		Storage:      nats.FileStorage,
		Replicas:     1,
		Placement:    nil,
		RePublish:    nil,
		Mirror:       nil,
		Sources:      nil,
	})
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create profile bucket '%s': %w", bucketName, err)
		}

		kv, err = jetstreamContext.KeyValue(bucketName)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to bind to existing profile bucket '%s': %w", bucketName, err,
			)
		}
	}

	return &NatsProfileStore{
		bucket: bucketName,
		kv:     kv,
	}, nil
}

// Load returns the stored profile for a user. A user with no stored profile
// gets an empty profile rather than an error, so content generation still
// works before profile setup.
func (s *NatsProfileStore) Load(_ context.Context, userID string) (core.UserProfile, error) {
	entry, err := s.kv.Get(userID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return core.UserProfile{UserID: userID}, nil
		}

		return core.UserProfile{}, fmt.Errorf(
			"failed to load profile for user '%s': %w", userID, err,
		)
	}

	var loaded core.UserProfile

	err = json.Unmarshal(entry.Value(), &loaded)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf(
			"failed to decode profile for user '%s': %w", userID, err,
		)
	}

	loaded.UserID = userID

	return loaded, nil
}

// Save persists a profile, replacing any previous value for the user.
func (s *NatsProfileStore) Save(_ context.Context, userProfile core.UserProfile) error {
	if userProfile.UserID == "" {
		return errors.New("profile user id is empty")
	}

	data, err := json.Marshal(userProfile)
	if err != nil {
		return fmt.Errorf("failed to encode profile for user '%s': %w", userProfile.UserID, err)
	}

	_, err = s.kv.Put(userProfile.UserID, data)
	if err != nil {
		return fmt.Errorf("failed to save profile for user '%s': %w", userProfile.UserID, err)
	}

	return nil
}
