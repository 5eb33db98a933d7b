// Package shard provides object key generation for attachment blobs.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported prefix count.
const MaxShards = 256

// ObjectKey computes the blob object key for an item.
// With numShards=1 the key is the item id itself.
// With numShards>1 the key is prefixed with a two-digit hex shard derived
// from the item id hash, spreading uploads across key prefixes.
func ObjectKey(itemID string, numShards int) string {
	if numShards <= 1 {
		return itemID
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	return fmt.Sprintf("%02x/%s", Of(itemID, numShards), itemID)
}

// Of returns the shard number of an item id.
func Of(itemID string, numShards int) uint32 {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(itemID))
	return h.Sum32() % uint32(numShards)
}
