// Package coinbase holds the Coinbase adapters: the ticker feed worker, the
// candle REST client and the authenticated account source.
package coinbase

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Credentials is an Advanced Trade API key pair. The private key never
// leaves memory.
type Credentials struct {
	KeyName    string
	PrivatePEM string
}

// Configured reports whether both halves of the key pair are present.
func (c Credentials) Configured() bool {
	return c.KeyName != "" && c.PrivatePEM != ""
}

// Authenticate mints a short-lived token and attaches it to the request.
func (c Credentials) Authenticate(req *http.Request) error {
	if !c.Configured() {
		return errors.New("coinbase auth not configured (set ORACLE_COINBASE_KEY_NAME + ORACLE_COINBASE_PRIVATE_KEY)")
	}
	token, err := MintJWT(c.KeyName, c.PrivatePEM, 25*time.Second)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("CB-ACCESS-KEY", c.KeyName)
	return nil
}

// MintJWT builds a short-lived RS256 token for the Advanced Trade API.
func MintJWT(keyName, privatePEM string, ttl time.Duration) (string, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return "", errors.New("invalid private key (no PEM block)")
	}
	var priv *rsa.PrivateKey
	switch block.Type {
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", err
		}
		var ok bool
		priv, ok = k.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("not an RSA private key")
		}
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return "", err
		}
		priv = k
	default:
		return "", fmt.Errorf("unsupported key type: %s", block.Type)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": keyName,
		"aud": "retail_rest_api",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"jti": uuid.New().String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
}
