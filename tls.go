package kdbipc

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadTLSConfig builds a *tls.Config from the PKCS#12 identity named
// by KDBPLUS_TLS_KEY_FILE/KDBPLUS_TLS_KEY_FILE_SECRET (§6.4). It is
// read once, at listener or dial construction, and never mutated
// thereafter (§5).
func LoadTLSConfig() (*tls.Config, error) {
	path := os.Getenv("KDBPLUS_TLS_KEY_FILE")
	if path == "" {
		return nil, fmt.Errorf("kdbipc: KDBPLUS_TLS_KEY_FILE is not set")
	}
	secret := os.Getenv("KDBPLUS_TLS_KEY_FILE_SECRET")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kdbipc: reading %s: %w", path, err)
	}
	key, cert, err := pkcs12.Decode(data, secret)
	if err != nil {
		return nil, fmt.Errorf("kdbipc: decoding PKCS#12 bundle %s: %w", path, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}},
	}, nil
}
