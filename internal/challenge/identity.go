package challenge

import "strconv"

// IdentityOf returns a short content-stable fingerprint for an
// (image reference, answer) pair. Equal pairs always produce the same
// identity across processes and restarts; it is the key for all per-image
// state. The hash is a 32-bit rolling hash (h = h*31 + c over the
// order-sensitive concatenation) folded to a positive base-36 string.
// It is a fingerprint, not a unique id: collisions are accepted.
func IdentityOf(imageURL, answer string) string {
	var h int32
	for _, c := range imageURL + "_" + answer {
		h = h<<5 - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	return strconv.FormatInt(v, 36)
}
