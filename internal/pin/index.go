package pin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Index derives keyed lookup values for PINs so a candidate can be matched to
// at most one account before the slow hash is checked. Values carry a short
// key fingerprint; values written under another key are not Indexed and the
// caller falls back to verifying the hash.
type Index struct {
	key []byte
	id  string
}

// NewIndex returns nil for an empty key, which disables indexing.
func NewIndex(key []byte) *Index {
	if len(key) == 0 {
		return nil
	}
	k := append([]byte(nil), key...)
	mac := hmac.New(sha256.New, k)
	mac.Write([]byte("pin-index"))
	return &Index{key: k, id: hex.EncodeToString(mac.Sum(nil))[:8]}
}

// Lookup returns the stored lookup value for pin.
func (x *Index) Lookup(pin string) string {
	if x == nil {
		return ""
	}
	mac := hmac.New(sha256.New, x.key)
	mac.Write([]byte(pin))
	return x.id + ":" + hex.EncodeToString(mac.Sum(nil))
}

// Indexed reports whether lookup was written under this index's key.
func (x *Index) Indexed(lookup string) bool {
	if x == nil {
		return false
	}
	id, _, ok := strings.Cut(lookup, ":")
	return ok && id == x.id
}

// Match reports whether lookup was derived from pin. The bool is false when
// lookup is not Indexed and the hash has to be checked instead.
func (x *Index) Match(lookup, pin string) (matched, indexed bool) {
	if !x.Indexed(lookup) {
		return false, false
	}
	return hmac.Equal([]byte(lookup), []byte(x.Lookup(pin))), true
}
