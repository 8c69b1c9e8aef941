package domain

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a 16-char lowercase hex digest of an alert's labels, used for
// deduplication. Equal fingerprints imply equal label maps. It is not a
// security primitive; xxhash is unseeded and therefore stable across processes
// and builds, which the dedup contract depends on.
type Fingerprint string

// FingerprintFromLabels hashes (key, value) pairs in sorted key order. Keys and
// values are length-prefixed so adjacent pairs cannot collide by concatenation.
func FingerprintFromLabels(labels map[string]string) Fingerprint {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	var n [8]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint64(n[:], uint64(len(k)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(k)
		v := labels[k]
		binary.LittleEndian.PutUint64(n[:], uint64(len(v)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(v)
	}
	return Fingerprint(fmt.Sprintf("%016x", d.Sum64()))
}

func (f Fingerprint) String() string { return string(f) }
