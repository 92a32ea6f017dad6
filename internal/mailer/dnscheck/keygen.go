package dnscheck

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// DKIMKeyPair is a freshly generated signing key: the private half as PEM for
// the relay configuration, the public half in the DNS TXT publishing form.
type DKIMKeyPair struct {
	PrivateKeyPEM string `json:"private_key_pem"`
	PublicKeyTXT  string `json:"public_key_txt"`
	Bits          int    `json:"bits"`
}

// GenerateDKIMKeyPair creates an RSA key pair for DKIM signing. Bits below
// 1024 are rejected; 2048 is the sensible default.
func GenerateDKIMKeyPair(bits int) (*DKIMKeyPair, error) {
	if bits == 0 {
		bits = 2048
	}
	if bits < 1024 {
		return nil, fmt.Errorf("dkim key size %d too small", bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	return &DKIMKeyPair{
		PrivateKeyPEM: string(privPEM),
		PublicKeyTXT:  "v=DKIM1; k=rsa; p=" + base64.StdEncoding.EncodeToString(pubDER),
		Bits:          bits,
	}, nil
}
