package util

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentETag returns a strong ETag naming data by its CIDv1 (raw codec,
// sha2-256), so identical previews share a validator across replicas.
func ContentETag(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return ""
	}
	return `"` + cid.NewCidV1(cid.Raw, sum).String() + `"`
}
