package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const minSecretLength = 16

// Signer signs access tokens and supplies the keys that verify them
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc
	GetVerificationKey(token *jwt.Token) (any, error)

	GetSigningMethod() jwt.SigningMethod
}

// HMACsigner signs with HS256. Tokens signed with a retired secret keep
// verifying until they expire, so the secret can be rotated without logging
// everyone out.
type HMACsigner struct {
	current []byte
	retired [][]byte
}

func NewHMACSigner(secret string, retired ...string) (*HMACsigner, error) {
	if len(secret) < minSecretLength {
		return nil, errors.Errorf("HMAC secret must be at least %d bytes", minSecretLength)
	}
	s := &HMACsigner{current: []byte(secret)}
	for i, r := range retired {
		if len(r) < minSecretLength {
			return nil, errors.Errorf("retired HMAC secret %d must be at least %d bytes", i, minSecretLength)
		}
		s.retired = append(s.retired, []byte(r))
	}
	return s, nil
}

func (h *HMACsigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.current)
	if err != nil {
		return "", errors.Wrap(err, "HMACsigner.Sign")
	}
	return signed, nil
}

func (h *HMACsigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if len(h.retired) == 0 {
		return h.current, nil
	}
	keys := jwt.VerificationKeySet{Keys: []jwt.VerificationKey{h.current}}
	for _, r := range h.retired {
		keys.Keys = append(keys.Keys, r)
	}
	return keys, nil
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
