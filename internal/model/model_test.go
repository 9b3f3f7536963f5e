package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	cfg := &TenantConfig{Name: "City Library"}
	assert.Equal(t, "City Library - LMS", cfg.Title())
}

func TestHasFeature(t *testing.T) {
	cfg := &TenantConfig{EnabledFeatures: []string{"biometric", "sms"}}
	assert.True(t, cfg.HasFeature("sms"))
	assert.False(t, cfg.HasFeature("whatsapp"))
}

func TestParseRecord(t *testing.T) {
	rec, ok := ParseRecord(json.RawMessage(`{"id":"s1","name":"Asha"}`))
	require.True(t, ok)
	assert.Equal(t, "s1", rec.ID)
	assert.JSONEq(t, `{"id":"s1","name":"Asha"}`, string(rec.Raw))

	_, ok = ParseRecord(json.RawMessage(`{"name":"no id"}`))
	assert.False(t, ok)

	_, ok = ParseRecord(json.RawMessage(`[1,2,3]`))
	assert.False(t, ok)

	_, ok = ParseRecord(json.RawMessage(`null`))
	assert.False(t, ok)
}

func TestCollectionShape(t *testing.T) {
	assert.True(t, IsListShaped(CollectionStudents))
	assert.True(t, IsListShaped(CollectionPayments))
	assert.False(t, IsListShaped(CollectionSettings))

	assert.True(t, IsKnownCollection(CollectionActivityLog))
	assert.False(t, IsKnownCollection("books"))

	// Students and payments never ride the bulk push.
	for _, key := range BulkPushCollections {
		assert.False(t, IsListShaped(key), "collection %s", key)
	}
}
