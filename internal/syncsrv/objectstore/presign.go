package objectstore

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

const presignIssuer = "flowershow-contentsync"

// Presigner issues and verifies HS256 tokens naming an object key. A token is
// served at {baseURL}/raw/{token}.
type Presigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

func NewPresigner(secret, baseURL string) *Presigner {
	return &Presigner{
		secret:  []byte(secret),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

type rawClaims struct {
	jwt.RegisteredClaims
}

func (p *Presigner) Token(key string, ttl time.Duration) (string, apperrors.Error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, rawClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			Issuer:    presignIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	s, err := token.SignedString(p.secret)
	if err != nil {
		return "", ErrObjectStore.MsgErr("unable to sign link", err)
	}
	return s, nil
}

func (p *Presigner) URL(key string, ttl time.Duration) (string, apperrors.Error) {
	token, err := p.Token(key, ttl)
	if err != nil {
		return "", err
	}
	return p.baseURL + "/raw/" + token, nil
}

// Verify returns the object key carried by a valid, unexpired token.
func (p *Presigner) Verify(token string) (string, apperrors.Error) {
	var claims rawClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(presignIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", ErrInvalidToken.Err(err)
	}
	if err := validateKey(claims.Subject); err != nil {
		return "", ErrInvalidToken.Err(err)
	}
	return claims.Subject, nil
}
