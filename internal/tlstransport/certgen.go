package tlstransport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

const (
	ephemeralCertCN       = "serial-bridge"
	ephemeralCertValidity = 365 * 24 * time.Hour
	ephemeralKeyBits      = 2048
)

// GenerateEphemeralCert produces a throwaway self-signed RSA-2048
// certificate/key pair for auto mode. It is never written to disk.
// WrapServer calls it for every accepted connection, so each connection
// is served with a freshly minted certificate and the Bridge/Client
// cannot pin it even if they wanted to (they don't — InsecureSkipVerify
// is always set).
func GenerateEphemeralCert() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate rsa key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: ephemeralCertCN},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(ephemeralCertValidity),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}
