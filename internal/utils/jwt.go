package utils // package utils provides helpers for token creation and password hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failure kinds. Handlers and middleware map these to
// specific unauthorized messages so callers can tell an expired token from
// a forged one.
var (
	// ErrTokenExpired is returned for a token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is returned for a token whose nbf claim lies in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
)

// AccessToken is a signed HS256 bearer token. Exp is the zero time when the
// token was issued without an expiry claim.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 JWT whose payload identifies a single
// operator account: the subject claim carries the user id. ttlMin controls
// the expiry claim; a ttl of 0 omits exp entirely, reproducing the legacy
// unbounded-lifetime token.
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(userID, 10),
		"iat": now.Unix(),
	}
	var exp time.Time
	if ttlMin > 0 {
		exp = now.Add(time.Duration(ttlMin) * time.Minute)
		claims["exp"] = exp.Unix()
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and time claims of a token and
// returns the user id embedded in its subject. Failures are reduced to the
// sentinel kinds above.
func ParseAccessToken(secret, raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return 0, ErrTokenNotYetValid
		default:
			return 0, ErrTokenInvalid
		}
	}
	if !tok.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	// The subject is written as a decimal string; older clients may carry a
	// numeric claim, which the JSON decoder surfaces as float64.
	switch sub := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil || id == 0 {
			return 0, ErrTokenInvalid
		}
		return id, nil
	case float64:
		if sub <= 0 {
			return 0, ErrTokenInvalid
		}
		return uint64(sub), nil
	}
	return 0, ErrTokenInvalid
}
