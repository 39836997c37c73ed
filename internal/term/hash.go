package term

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainChannel = "tuplespace/channel/v1"
	DomainGroup   = "tuplespace/group/v1"
	DomainConsume = "tuplespace/consume/v1"
	DomainLeaf    = "tuplespace/leaf/v1"
	DomainRoot    = "tuplespace/root/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChannelHash computes the lock/index hash of a single channel.
// This is the resource key the two-step lock acquires.
func ChannelHash(c Channel) string {
	canonical, err := MarshalCanonical(string(c))
	if err != nil {
		// A bare string cannot fail canonical marshaling.
		panic(fmt.Sprintf("ChannelHash: %v", err))
	}
	return hashWithDomain(DomainChannel, canonical)
}

// GroupKey computes the content-addressed key of an ordered channel group.
// Order matters: the group is the exact ordered list a consume named, since
// patterns correspond to channels positionally.
func GroupKey(channels []Channel) string {
	arr := make(Array, len(channels))
	for i, c := range channels {
		arr[i] = String(string(c))
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		panic(fmt.Sprintf("GroupKey: %v", err))
	}
	return hashWithDomain(DomainGroup, canonical)
}

// ConsumeID computes the content-addressed provenance id of a consume event
// over (channels, patterns, continuation, persist, sequence). Callers that
// need deterministic replay record this id when a continuation fires.
//
// Installs pass seq 0 so a registered install has the same id across resets;
// ordinary consumes pass the store's logical sequence at registration.
func ConsumeID(channels []Channel, patterns []Pattern, k Continuation, persist bool, seq int64) (string, error) {
	chans := make(Array, len(channels))
	for i, c := range channels {
		chans[i] = String(string(c))
	}
	pats := make(Array, len(patterns))
	for i, p := range patterns {
		pats[i] = String(string(p))
	}

	obj := Object{
		"channels":     chans,
		"patterns":     pats,
		"continuation": k.canonicalMap(),
		"persist":      Bool(persist),
		"seq":          Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConsumeID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainConsume, canonical), nil
}

// MustConsumeID is like ConsumeID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConsumeID(channels []Channel, patterns []Pattern, k Continuation, persist bool, seq int64) string {
	id, err := ConsumeID(channels, patterns, k, persist, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// RootHash computes the checkpoint root over a set of leaf hashes.
// Leaf order is irrelevant: hashes are sorted before hashing, so the root
// depends only on content. The root of the empty leaf set is EmptyRootHash.
func RootHash(leafHashes []string) string {
	sorted := make([]string, len(leafHashes))
	copy(sorted, leafHashes)
	sort.Strings(sorted)

	arr := make(Array, len(sorted))
	for i, h := range sorted {
		arr[i] = String(h)
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		panic(fmt.Sprintf("RootHash: %v", err))
	}
	return hashWithDomain(DomainRoot, canonical)
}

// EmptyRootHash returns the canonical root of the empty state.
func EmptyRootHash() string {
	return RootHash(nil)
}

// LeafHash computes the content hash of one GNAT leaf for root derivation.
func LeafHash(g GNAT) (string, error) {
	canonical, err := MarshalGNAT(g)
	if err != nil {
		return "", fmt.Errorf("LeafHash: %w", err)
	}
	return hashWithDomain(DomainLeaf, canonical), nil
}
