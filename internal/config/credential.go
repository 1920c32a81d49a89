package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for credentials that are not parseable JWTs.
var ErrNotJWT = errors.New("credential is not a JWT")

// Credential describes the realtime bearer token. The signature is not
// verified; the platform does that, this only drives startup warnings.
type Credential struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
	Expired   bool
}

// InspectCredential decodes token claims without verifying the signature.
func InspectCredential(token string, now time.Time) (Credential, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	var cred Credential
	if sub, err := claims.GetSubject(); err == nil {
		cred.Subject = sub
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: exp: %v", ErrNotJWT, err)
	}
	if exp != nil {
		cred.ExpiresAt = exp.Time.UTC()
		cred.Expired = !cred.ExpiresAt.After(now)
	}
	return cred, nil
}
