package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// FailureStoreFileName is the name of the database file a FailureStore keeps in its directory.
const FailureStoreFileName = "failures.db"

// failuresBucket is the bucket holding one FailureRecord per failing test.
var failuresBucket = []byte("failures")

// StoredCall describes a single call of a persisted counterexample.
type StoredCall struct {
	// Sender describes the account the call is sent from.
	Sender common.Address `json:"sender"`

	// Target describes the contract the call is sent to.
	Target common.Address `json:"target"`

	// Calldata describes the input of the call, selector included.
	Calldata hexutil.Bytes `json:"calldata"`
}

// FailureRecord describes a counterexample persisted for a failing fuzz or invariant test, replayed before new
// random inputs the next time the test runs.
type FailureRecord struct {
	// ID uniquely identifies the record.
	ID uuid.UUID `json:"id"`

	// RunID identifies the run which found the counterexample.
	RunID uuid.UUID `json:"runId"`

	// Contract describes the name of the test contract.
	Contract string `json:"contract"`

	// Signature describes the signature of the failing test function.
	Signature string `json:"signature"`

	// Calls describes the counterexample: a single call for fuzz tests, a sequence for invariant tests.
	Calls []StoredCall `json:"calls"`

	// Reason describes the failure reason reported when the counterexample was found.
	Reason string `json:"reason,omitempty"`

	// Timestamp describes when the record was written.
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the key under which the record is stored.
func (r *FailureRecord) Key() string {
	return FailureKey(r.Contract, r.Signature)
}

// FailureKey returns the storage key of a test: "<contract>:<signature>".
func FailureKey(contract string, signature string) string {
	return contract + ":" + signature
}

// FailureStore persists counterexamples in a bbolt database. It is safe for concurrent use.
type FailureStore struct {
	db *bbolt.DB
}

// OpenFailureStore opens (or creates) the failure database in the provided directory.
func OpenFailureStore(directory string) (*FailureStore, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := bbolt.Open(filepath.Join(directory, FailureStoreFileName), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "could not open failure store")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(failuresBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return &FailureStore{db: db}, nil
}

// Close closes the underlying database.
func (s *FailureStore) Close() error {
	return s.db.Close()
}

// Load returns the record persisted for the given test, or nil if there is none.
func (s *FailureStore) Load(contract string, signature string) (*FailureRecord, error) {
	var record *FailureRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(failuresBucket).Get([]byte(FailureKey(contract, signature)))
		if data == nil {
			return nil
		}
		record = &FailureRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not load failure for %s", FailureKey(contract, signature))
	}
	return record, nil
}

// Save persists a record, replacing any previous record of the same test. A record without an ID or timestamp is
// assigned one.
func (s *FailureStore) Save(record *FailureRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(failuresBucket).Put([]byte(record.Key()), data)
	})
}

// Remove deletes the record persisted for the given test, if any.
func (s *FailureStore) Remove(contract string, signature string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(failuresBucket).Delete([]byte(FailureKey(contract, signature)))
	})
}

// List returns every persisted record, sorted by key.
func (s *FailureStore) List() ([]*FailureRecord, error) {
	records := make([]*FailureRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(failuresBucket).ForEach(func(k, v []byte) error {
			record := &FailureRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return errors.Wrapf(err, "corrupt failure record %q", k)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})
	return records, nil
}
