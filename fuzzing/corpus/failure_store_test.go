package corpus

import (
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFailureStoreRoundTrip verifies records survive closing and reopening the store.
func TestFailureStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFailureStore(dir)
	require.NoError(t, err)

	missing, err := store.Load("Counter", "testFuzz(uint256)")
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := &FailureRecord{
		RunID:     uuid.New(),
		Contract:  "Counter",
		Signature: "testFuzz(uint256)",
		Calls: []StoredCall{{
			Sender:   common.HexToAddress("0x01"),
			Target:   common.HexToAddress("0x02"),
			Calldata: []byte{0xde, 0xad},
		}},
		Reason: "boom",
	}
	require.NoError(t, store.Save(record))
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.False(t, record.Timestamp.IsZero())
	require.NoError(t, store.Close())

	store, err = OpenFailureStore(dir)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load("Counter", "testFuzz(uint256)")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, record.Calls, loaded.Calls)
	assert.Equal(t, "boom", loaded.Reason)
}

// TestFailureStoreListAndRemove verifies records are listed in key order and can be removed.
func TestFailureStoreListAndRemove(t *testing.T) {
	store, err := OpenFailureStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(&FailureRecord{Contract: "B", Signature: "invariantB()"}))
	require.NoError(t, store.Save(&FailureRecord{Contract: "A", Signature: "invariantA()"}))
	require.NoError(t, store.Save(&FailureRecord{Contract: "A", Signature: "invariantA()", Reason: "replaced"}))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A:invariantA()", records[0].Key())
	assert.Equal(t, "replaced", records[0].Reason)
	assert.Equal(t, "B:invariantB()", records[1].Key())

	require.NoError(t, store.Remove("A", "invariantA()"))
	records, err = store.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
