// Copyright 2016 Google Inc. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//     http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package certutil generates the key pairs and self-signed certificates the
// TLS-ALPN-01 and TLS-SNI-01 challenge preparers need (spec §6, "Crypto &
// X.509 (consumed)"). Grounded on the controller's CSR generation in the
// donated acme CLI's cert.go, extended here to self-signing instead of CSR
// building since these certs never go to the CA -- the CA only ever fetches
// them over TLS during validation.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/jmhodges/clock"
)

// Validity is the fixed validity window for challenge certificates (spec
// §4.7.2/§4.7.3: "Validity 7 days").
const Validity = 7 * 24 * time.Hour

// idPeAcmeIdentifier is the OID of the ACME TLS-ALPN-01 acmeIdentifier
// extension (RFC 8737 §3).
var idPeAcmeIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 31}

// GenerateKey creates a fresh ECDSA P-256 key pair, the same curve the
// controller's anyKey/writeKey helpers default to for account and challenge
// keys.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("certutil: generate key: %v", err)
	}
	return key, nil
}

// EncodeKeyPEM renders an ECDSA private key as a PEM block, matching the
// encoding the controller's writeKey uses for account/challenge keys.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("certutil: marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// EncodeCertPEM renders a DER certificate as a PEM block.
func EncodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func serialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

// Generator builds challenge certificates off an injectable clock, the same
// role clk plays in the storage authority constructors across the pack
// (e.g. sheurich-boulder's sa.NewSQLStorageAuthority) -- swappable per call
// site rather than a package-level time.Now var, so tests can pin NotBefore.
type Generator struct {
	Clock clock.Clock
}

// NewGenerator builds a Generator backed by the real wall clock.
func NewGenerator() Generator {
	return Generator{Clock: clock.New()}
}

func (g Generator) clock() clock.Clock {
	if g.Clock == nil {
		return clock.New()
	}
	return g.Clock
}

// SelfSignALPN builds a self-signed certificate covering domain, carrying a
// critical acmeIdentifier extension whose value is the DER-encoded octet
// string of sha256(keyAuthz) (spec §4.7.2). The returned values are
// PEM-encoded key and certificate, ready to persist to the store.
func (g Generator) SelfSignALPN(domain string, keyAuthz string) (keyPEM, certPEM []byte, err error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	sum := sha256.Sum256([]byte(keyAuthz))
	extValue, err := asn1.Marshal(sum[:])
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: marshal acmeIdentifier: %v", err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: serial number: %v", err)
	}
	now := g.clock().Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    now,
		NotAfter:     now.Add(Validity),
		ExtraExtensions: []pkix.Extension{{
			Id:       idPeAcmeIdentifier,
			Critical: true,
			Value:    extValue,
		}},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: create certificate: %v", err)
	}
	keyPEM, err = EncodeKeyPEM(key)
	if err != nil {
		return nil, nil, err
	}
	return keyPEM, EncodeCertPEM(der), nil
}

// SelfSignSNI builds a self-signed certificate whose subject is domain and
// whose SAN list contains sniName, the TLS-SNI-01 derived hostname (spec
// §4.7.3).
func (g Generator) SelfSignSNI(domain, sniName string) (keyPEM, certPEM []byte, err error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: serial number: %v", err)
	}
	now := g.clock().Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{sniName},
		NotBefore:    now,
		NotAfter:     now.Add(Validity),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("certutil: create certificate: %v", err)
	}
	keyPEM, err = EncodeKeyPEM(key)
	if err != nil {
		return nil, nil, err
	}
	return keyPEM, EncodeCertPEM(der), nil
}

// CoversDomain reports whether certPEM (as stored for the TLS-ALPN-01 or
// TLS-SNI-01 artifact) already covers domain, so preparers can decide whether to
// regenerate (spec §4.7.2: "regenerate only when missing or when the
// existing cert does not cover domain").
func CoversDomain(certPEM []byte, domain string) (bool, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return false, fmt.Errorf("certutil: no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("certutil: parse certificate: %v", err)
	}
	if err := cert.VerifyHostname(domain); err != nil {
		return false, nil
	}
	return true, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of s (spec §6, "SHA-256
// returning lowercase hex").
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
