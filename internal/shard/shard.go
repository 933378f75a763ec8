// Package shard derives partition keys for the relationship and unique-constraint tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported shard count. Shard numbers are two hex digits.
const MaxShards = 256

// Of returns the shard number of key among numShards shards.
func Of(key string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}

// PartitionKey formats the relationship partition key of parentRef's shard n.
func PartitionKey(parentRef string, n int) string {
	return fmt.Sprintf("%s#%02x", parentRef, n)
}

// PartitionKeys returns every relationship partition key of parentRef.
func PartitionKeys(parentRef string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	keys := make([]string, numShards)
	for n := range keys {
		keys[n] = PartitionKey(parentRef, n)
	}
	return keys
}

// RelationshipPK computes the partition key of a parent/child relationship record.
// Children of one parent spread across numShards partitions by childRef hash.
func RelationshipPK(parentRef, childRef string, numShards int) string {
	return PartitionKey(parentRef, Of(childRef, numShards))
}

// UniqueConstraintPK computes the key of a unique constraint record. Values are
// unique per (scope, entityType, field); scope is typically the parent reference,
// e.g. "vocabulary#formatColors" for picklist names.
func UniqueConstraintPK(scope, entityType, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s#%s", scope, entityType, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}
