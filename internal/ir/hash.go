package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTask    = "geochunk/task/v1"
	DomainDataset = "geochunk/dataset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TaskKey computes the key of a task within a graph.
//
// Keys have the form "<name>-<12 hex digits>" so traces stay readable while
// the digest keeps them unique across graphs: the same name at the same
// sequence number in two graphs yields two keys.
func TaskKey(graphID, name string, seq int64) (string, error) {
	obj := IRObject{
		"graph_id": IRString(graphID),
		"name":     IRString(name),
		"seq":      IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TaskKey: failed to marshal: %w", err)
	}

	return name + "-" + hashWithDomain(DomainTask, canonical)[:12], nil
}

// Digest computes the content digest of a canonical description (e.g. a
// dataset's schema and values) under the given domain.
func Digest(domain string, obj IRObject) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustTaskKey is like TaskKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTaskKey(graphID, name string, seq int64) string {
	key, err := TaskKey(graphID, name, seq)
	if err != nil {
		panic(err)
	}
	return key
}
