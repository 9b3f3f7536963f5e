package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDocumentBulkOnly(t *testing.T) {
	bulk := json.RawMessage(`[{"id":"a"},{"id":"b"}]`)
	got, err := mergeDocument(bulk, nil)
	require.NoError(t, err)
	assert.Equal(t, string(bulk), string(got))
}

func TestMergeDocumentEmpty(t *testing.T) {
	_, err := mergeDocument(nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeDocumentChildrenCollapseArray(t *testing.T) {
	bulk := json.RawMessage(`[{"id":"a","v":1},{"id":"b","v":2}]`)
	children := map[string]json.RawMessage{
		"a": json.RawMessage(`{"id":"a","v":9}`),
		"c": json.RawMessage(`{"id":"c","v":3}`),
	}

	got, err := mergeDocument(bulk, children)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"id":"a","v":9},"b":{"id":"b","v":2},"c":{"id":"c","v":3}}`, string(got))
}

func TestMergeDocumentArrayElementsWithoutIDKeyedByIndex(t *testing.T) {
	bulk := json.RawMessage(`[{"v":1},{"id":"b","v":2}]`)
	children := map[string]json.RawMessage{
		"c": json.RawMessage(`{"id":"c"}`),
	}

	got, err := mergeDocument(bulk, children)
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":{"v":1},"b":{"id":"b","v":2},"c":{"id":"c"}}`, string(got))
}

func TestMergeDocumentChildrenOverObjectBulk(t *testing.T) {
	bulk := json.RawMessage(`{"a":{"id":"a","v":1}}`)
	children := map[string]json.RawMessage{
		"a": json.RawMessage(`{"id":"a","v":2}`),
	}

	got, err := mergeDocument(bulk, children)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"id":"a","v":2}}`, string(got))
}

func TestMergeDocumentDeterministic(t *testing.T) {
	children := map[string]json.RawMessage{
		"z": json.RawMessage(`1`),
		"a": json.RawMessage(`2`),
		"m": json.RawMessage(`3`),
	}

	first, err := mergeDocument(nil, children)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := mergeDocument(nil, children)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(first))
}
