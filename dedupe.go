// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a digest covering every field of r, including the
// order of AdditionalInfo.  Equal records share a fingerprint.
func (r AppRecord) Fingerprint() [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	writeField(h, r.Name)
	writeField(h, r.Version)
	writeField(h, r.Vendor)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(r.LastModified))
	h.Write(ts[:])
	for _, k := range r.AdditionalInfo.keys {
		writeField(h, k)
		writeField(h, r.AdditionalInfo.values[k])
	}
	var sum [blake2b.Size256]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// length prefixed so that ("ab","c") and ("a","bc") differ
func writeField(h hash.Hash, s string) {
	var n [binary.MaxVarintLen64]byte
	h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
	h.Write([]byte(s))
}

// Dedupe drops every record equal to one seen earlier, keeping the first
// occurrence in place.
func Dedupe(records []AppRecord) []AppRecord {
	seen := make(map[[blake2b.Size256]byte][]int, len(records))
	out := make([]AppRecord, 0, len(records))
	for _, r := range records {
		fp := r.Fingerprint()
		dup := false
		for _, i := range seen[fp] {
			if out[i].Equal(r) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[fp] = append(seen[fp], len(out))
		out = append(out, r)
	}
	return out
}
