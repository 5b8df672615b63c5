package revision

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

const digestPrefix = "blake3:"

// payloadDomainKey separates graph payload digests from any other BLAKE3
// use. Changing it invalidates every stored digest.
var payloadDomainKey = [32]byte{
	'b', 'r', 'a', 'n', 'c', 'h', 'i', 'n', 'g', '.', 'g', 'r', 'a', 'p', 'h', '.',
	'v', '2', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest returns the keyed BLAKE3 digest of the canonical JSON encoding of g.
// Drafts use it to skip writes when an autosave carries no changes.
func Digest(g graph.Graph) string {
	payload, err := graph.MarshalCanonical(g)
	if err != nil {
		// Graph holds only strings, numbers, and booleans.
		panic("revision: canonical graph encoding failed: " + err.Error())
	}
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		panic("revision: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(payload)
	return digestPrefix + hex.EncodeToString(hasher.Sum(nil))
}
