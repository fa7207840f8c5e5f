// Package privacy pseudonymises identifiers before they leave the service.
package privacy

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hasher computes a keyed BLAKE2b-256 digest. The same key yields stable
// digests, so audit consumers can correlate without seeing the raw value.
type Hasher struct {
	key []byte
}

// NewHasher requires a key of 1 to 64 bytes.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("privacy key must be 1-%d bytes, got %d", blake2b.Size, len(key))
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

// HashSubject normalises value (trim, upper case) and returns its hex digest.
// Empty input hashes to "".
func (h *Hasher) HashSubject(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if h == nil || value == "" {
		return ""
	}
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return ""
	}
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// AnonymizeIP truncates an address to its /24 (IPv4) or /48 (IPv6) prefix
// for logging. Unparseable input yields "".
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.String()
}
