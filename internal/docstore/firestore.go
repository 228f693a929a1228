package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// revisionField holds the optimistic-concurrency counter inside each
// document. It is stripped from snapshots and surfaced as Snapshot.Version.
const revisionField = "_rev"

// FirestoreStore implements Store on Cloud Firestore via the Firebase
// Admin SDK.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore for the given project. If
// credentialsFile is non-empty it is used as the service-account JSON path;
// otherwise application-default credentials are used.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Firestore: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Create inserts a new document and returns its assigned id.
func (s *FirestoreStore) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	ref := s.client.Collection(collection).NewDoc()

	doc := copyDoc(data)
	doc[revisionField] = int64(1)
	doc["createdAt"] = firestore.ServerTimestamp
	doc["updatedAt"] = firestore.ServerTimestamp

	if _, err := ref.Create(ctx, doc); err != nil {
		return "", wrapFirestoreErr("create", err)
	}
	return ref.ID, nil
}

// Set writes a full document under an explicit id.
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	doc := copyDoc(data)
	doc["updatedAt"] = firestore.ServerTimestamp

	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, doc); err != nil {
		return wrapFirestoreErr("set", err)
	}
	return nil
}

// Get returns the current snapshot, or ErrNotFound.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrapFirestoreErr("get", err)
	}
	return toSnapshot(snap), nil
}

// Update shallow-merges fields into the document inside a transaction that
// verifies the precondition against the stored revision and status.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre Precondition) error {
	ref := s.client.Collection(collection).Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		data := snap.Data()

		if pre.ExpectedVersion != 0 {
			rev, _ := data[revisionField].(int64)
			if rev != pre.ExpectedVersion {
				return ErrConflict
			}
		}
		if pre.ExpectedStatus != "" {
			statusField, _ := data["status"].(string)
			if statusField != pre.ExpectedStatus {
				return ErrConflict
			}
		}

		merged := copyDoc(fields)
		merged[revisionField] = firestore.Increment(1)
		merged["updatedAt"] = firestore.ServerTimestamp
		return tx.Set(ref, merged, firestore.MergeAll)
	})
	if err != nil {
		return wrapFirestoreErr("update", err)
	}
	return nil
}

// AppendToSet atomically unions value into the array field.
func (s *FirestoreStore) AppendToSet(ctx context.Context, collection, id, field string, value interface{}) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.ArrayUnion(value)},
		{Path: revisionField, Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return wrapFirestoreErr("appendToSet", err)
	}
	return nil
}

// List returns a snapshot of every document in the collection.
func (s *FirestoreStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	snaps := make([]*Snapshot, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapFirestoreErr("list", err)
		}
		snaps = append(snaps, toSnapshot(snap))
	}
	return snaps, nil
}

// Subscribe attaches a snapshot listener to the document.
func (s *FirestoreStore) Subscribe(ctx context.Context, collection, id string, fn func(*Snapshot)) (func(), error) {
	listenCtx, cancel := context.WithCancel(ctx)
	iter := s.client.Collection(collection).Doc(id).Snapshots(listenCtx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				return
			}
			if !snap.Exists() {
				continue
			}
			fn(toSnapshot(snap))
		}
	}()

	return cancel, nil
}

func toSnapshot(snap *firestore.DocumentSnapshot) *Snapshot {
	data := snap.Data()
	version, _ := data[revisionField].(int64)
	delete(data, revisionField)
	return &Snapshot{ID: snap.Ref.ID, Version: version, Data: data}
}

func wrapFirestoreErr(op string, err error) error {
	switch {
	case err == ErrConflict:
		return ErrConflict
	case status.Code(err) == codes.NotFound:
		return ErrNotFound
	case status.Code(err) == codes.AlreadyExists:
		return ErrConflict
	default:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
}
