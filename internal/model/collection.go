package model

// Collection keys understood by the sync engine. The set is fixed: one entry
// per logical collection or scalar setting.
const (
	CollectionStudents    = "students"
	CollectionPayments    = "payments"
	CollectionHalls       = "halls"
	CollectionShifts      = "shifts"
	CollectionSettings    = "settings"
	CollectionActivityLog = "activityLog"
	CollectionOwner       = "owner"
)

// AllCollections is the full set of keys, in bulk-sync order.
var AllCollections = []string{
	CollectionStudents,
	CollectionPayments,
	CollectionHalls,
	CollectionShifts,
	CollectionSettings,
	CollectionActivityLog,
	CollectionOwner,
}

// BulkPushCollections are the keys copied local-to-cloud in bulk. Students
// and payments are excluded on purpose: they are kept consistent through the
// granular item path only, so a stale bulk overwrite cannot clobber
// concurrent writes from another session.
var BulkPushCollections = []string{
	CollectionHalls,
	CollectionShifts,
	CollectionSettings,
	CollectionActivityLog,
	CollectionOwner,
}

// IsListShaped reports whether a collection is an ordered sequence of
// records with unique ids.
func IsListShaped(key string) bool {
	return key == CollectionStudents || key == CollectionPayments
}

// IsKnownCollection reports whether key is one of the fixed collection keys.
func IsKnownCollection(key string) bool {
	for _, k := range AllCollections {
		if k == key {
			return true
		}
	}
	return false
}
