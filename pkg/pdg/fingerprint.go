package pdg

import (
	"strconv"

	"github.com/minio/highwayhash"

	"github.com/l3aro/go-stmt-graph/pkg/cfg"
)

var fingerprintKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint hashes the ordered (kind, code) pairs of statements. Two
// functions with identical flattened text share a fingerprint regardless of
// name or node ids.
func Fingerprint(statements []cfg.Statement) string {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		// Only returned for a key that is not 32 bytes.
		return ""
	}
	for _, st := range statements {
		if st.SID == cfg.EntrySID {
			continue
		}
		h.Write([]byte(st.Kind))
		h.Write([]byte{0})
		h.Write([]byte(st.Code))
		h.Write([]byte{'\n'})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
