package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

var (
	testPairOnce sync.Once
	testPrivPEM  string
	testPubPEM   string
	testPairErr  error
)

// TestKeyPairPEM returns an ES256 key pair generated once per test binary. For tests only.
func TestKeyPairPEM() (privatePEM, publicPEM string, err error) {
	testPairOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			testPairErr = err
			return
		}
		privDER, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			testPairErr = err
			return
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testPairErr = err
			return
		}
		testPrivPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}))
		testPubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	})
	return testPrivPEM, testPubPEM, testPairErr
}

// NewTestTokenProvider returns a session provider over TestKeyPairPEM with issuer "test-issuer"
// and audience "test-audience".
func NewTestTokenProvider() (*TokenProvider, error) {
	priv, pub, err := TestKeyPairPEM()
	if err != nil {
		return nil, err
	}
	return NewSessionProvider(SessionSettings{
		PrivateKey: priv,
		PublicKey:  pub,
		Issuer:     "test-issuer",
		Audience:   "test-audience",
		TTL:        time.Hour,
	})
}
