package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrMissingRole   = errors.New("missing_role")
)

// Issuer firma y valida tokens HS256 con un secreto compartido.
type Issuer struct {
	Iss       string        // "iss"
	AccessTTL time.Duration // TTL por defecto
	secret    []byte
	now       func() time.Time
}

func NewIssuer(iss, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{
		Iss:       iss,
		AccessTTL: ttl,
		secret:    []byte(secret),
		now:       time.Now,
	}
}

// Sign emite un access token para sub con rol y permisos.
func (i *Issuer) Sign(sub, role string, perms []string, name string) (string, time.Time, error) {
	if strings.TrimSpace(sub) == "" {
		return "", time.Time{}, errors.New("sub required")
	}
	if strings.TrimSpace(role) == "" {
		return "", time.Time{}, ErrMissingRole
	}
	now := i.now()
	exp := now.Add(i.AccessTTL)
	claims := Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Role:  role,
		Perms: perms,
		Name:  name,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign: %w", err)
	}
	return signed, exp, nil
}

// Parse valida firma HS256, exp/nbf (30s de tolerancia) e iss si está configurado.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(30 * time.Second),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	}
	if i.Iss != "" {
		opts = append(opts, jwtv5.WithIssuer(i.Iss))
	}

	var claims Claims
	tok, err := jwtv5.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenInvalidIssuer) {
			return nil, ErrInvalidIssuer
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if claims.Role == "" {
		return nil, ErrMissingRole
	}
	return &claims, nil
}
