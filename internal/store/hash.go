package store

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// DomainQuery separates query hashes from any other hash in the history.
const DomainQuery = "hubmapy/query/v1"

// QueryHash returns the hex SHA-256 of the NFC-normalised query text.
func QueryHash(query string) string {
	return hashWithDomain(DomainQuery, norm.NFC.Bytes([]byte(query)))
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
