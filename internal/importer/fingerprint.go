package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint computes the deduplication key for a message: the hex SHA-256
// of timestamp, address, and body concatenated in that order. Two backup
// entries are "the same message" exactly when their fingerprints match.
func Fingerprint(timestamp int64, address, body string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte(address))
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
