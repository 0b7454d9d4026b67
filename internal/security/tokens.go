package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token is malformed, expired, or signed for someone else.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims identifies the account owner behind a bearer session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UserID returns the subject claim.
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenProvider issues and validates owner session tokens. It signs with RS256/ES256 when a key pair
// is configured and falls back to HS256 with a shared secret.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	ttl       time.Duration
}

// NewTokenProvider returns an asymmetric TokenProvider (RS256 for RSA keys, ES256 for ECDSA).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch KeyAlg(publicKey) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{method: method, signKey: privateKey, verifyKey: publicKey, issuer: issuer, audience: audience, ttl: ttl}, nil
}

// NewHMACTokenProvider returns a TokenProvider signing with HS256.
func NewHMACTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{method: jwt.SigningMethodHS256, signKey: secret, verifyKey: secret, issuer: issuer, audience: audience, ttl: ttl}, nil
}

// Issue signs a session token for the owner. Session issuance normally belongs to the external login flow;
// the server only validates. Issue is used by cmd/seed and tests.
func (p *TokenProvider) Issue(userID, email, name string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Name:  name,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	return token, expiresAt, err
}

// Validate parses the token and checks signature, algorithm, exp, iss and aud.
func (p *TokenProvider) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SessionSettings selects the session signing material.
type SessionSettings struct {
	Secret     string
	PrivateKey string
	PublicKey  string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// NewSessionProvider prefers an asymmetric key pair and falls back to the HS256 secret.
func NewSessionProvider(s SessionSettings) (*TokenProvider, error) {
	if s.PrivateKey != "" || s.PublicKey != "" {
		signer, pub, err := LoadKeyPair(s.PrivateKey, s.PublicKey)
		if err != nil {
			return nil, err
		}
		return NewTokenProvider(signer, pub, s.Issuer, s.Audience, s.TTL)
	}
	return NewHMACTokenProvider([]byte(s.Secret), s.Issuer, s.Audience, s.TTL)
}
