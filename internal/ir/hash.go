package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainProviderPayload = "relnego/provider_data/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadDigest returns a stable content digest of a provider payload.
// Identical provider state always produces the same digest, which lets logs
// and traces show whether a republish actually changed anything.
func PayloadDigest(p ProviderPayload) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("PayloadDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProviderPayload, canonical), nil
}

// ShortDigest truncates a digest for log output.
func ShortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
