// Package archive persists Assets, Instantiations and picklist entries in
// DynamoDB through package store.
//
// An Instantiation is stored as one item with its owned collections embedded,
// so saving replaces every collection atomically under the optimistic lock.
// Instantiations are children of their Asset: creating one checks the Asset
// exists, and deleting an Asset with instantiations requires a cascade.
// Picklist entries are scoped by vocabulary with a unique name, which makes
// concurrent resolve-or-create converge on one entry.
package archive
