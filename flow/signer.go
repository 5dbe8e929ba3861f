package flow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
)

// SignatureParam is the name of the parameter carrying the signature.
const SignatureParam = "s"

// Sign computes the gateway signature: keys sorted lexicographically,
// key+value concatenated with no separator, HMAC-SHA256 with secret, hex.
// An existing "s" entry is ignored.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha256.New, []byte(secret))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(params[k]))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedValues returns params as url.Values with the signature attached.
func SignedValues(params map[string]string, secret string) url.Values {
	values := make(url.Values, len(params)+1)
	for k, v := range params {
		if k == SignatureParam {
			continue
		}
		values.Set(k, v)
	}
	values.Set(SignatureParam, Sign(params, secret))
	return values
}
