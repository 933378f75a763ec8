// Package store is the DynamoDB data access layer under the archive.
//
// It keeps referential integrity for hierarchical entities without a
// relational database:
//
//   - parent validation on create, in the same transaction as the write
//   - unique field values within a parent scope, enforced by constraint records
//   - optimistic locking through a version attribute
//   - soft deletes through a TTL attribute, with orphan protection
//   - cascade deletes driven by DynamoDB Streams (see package stream)
//
// Entities implement [Entity]; children also implement [ParentChecker] and
// entities with unique values implement [UniqueFielder]. An Instantiation is
// a child of its Asset; a picklist entry is a child of its vocabulary scope
// ("vocabulary#formatColors") with a unique name.
//
// Children of one parent can be spread over several relationship partitions:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//
// Errors are sentinels to be tested with errors.Is: [ErrNotFound],
// [ErrParentNotFound], [ErrAlreadyExists], [ErrHasChildren],
// [ErrConcurrentModification] and [ErrDuplicateValue].
package store
