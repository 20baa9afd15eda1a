package database

// MergeItem applies last-write-wins semantics over an existing row and the
// latest observed record. The storage identity, stable identity and
// creation timestamp of the existing row are preserved; everything else is
// overwritten with the incoming values. Pure function, no storage side
// effects.
func MergeItem(existing, incoming Item) Item {
	merged := incoming
	merged.ID = existing.ID
	merged.StableID = existing.StableID
	merged.CreatedAt = existing.CreatedAt
	return merged
}
