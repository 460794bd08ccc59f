package models

// InsertResult reports the outcome of a store insert. Acknowledged is false
// when the store did not confirm the write.
type InsertResult struct {
	Acknowledged  bool
	InsertedCount int64
}

// DeleteResult reports the outcome of a single-record delete. Deleted is the
// record that was removed, or nil if nothing matched.
type DeleteResult struct {
	Acknowledged bool
	Deleted      *RefreshToken
}
