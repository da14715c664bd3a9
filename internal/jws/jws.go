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

// Package jws adapts go-jose's signer to the narrow operation the
// authorization core needs: sign a JSON claimset with the account key and a
// server-issued nonce, and compute the account key's JWK thumbprint (spec
// §6, "JWS primitive (consumed)").
package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	jose "gopkg.in/go-jose/go-jose.v2"
)

// Signer signs ACME request bodies with an account key.
type Signer interface {
	// Sign produces a signed envelope for claimset, binding nonce into the
	// protected header so the server can detect replay.
	Sign(claimset interface{}, nonce string) ([]byte, error)
	// Thumbprint returns the base64url(SHA-256(canonical JWK)) of the
	// account public key (spec §6, RFC 7638).
	Thumbprint() (string, error)
}

type keySigner struct {
	key        crypto.Signer
	thumbprint string // memoized; see SPEC_FULL §8
}

// New builds a Signer from an account private key. Only RSA and ECDSA keys
// are supported, matching what the wider ACME client ecosystem (and the
// vendored google/acme package this replaces) ever generates for account
// keys.
func New(key crypto.Signer) (Signer, error) {
	if _, err := signatureAlgorithm(key); err != nil {
		return nil, err
	}
	return &keySigner{key: key}, nil
}

func signatureAlgorithm(key crypto.Signer) (jose.SignatureAlgorithm, error) {
	switch k := key.Public().(type) {
	case *rsa.PublicKey:
		return jose.RS256, nil
	case *ecdsa.PublicKey:
		switch k.Params().BitSize {
		case 256:
			return jose.ES256, nil
		case 384:
			return jose.ES384, nil
		case 521:
			return jose.ES512, nil
		}
	}
	return "", fmt.Errorf("jws: unsupported account key type %T", key.Public())
}

func (s *keySigner) Sign(claimset interface{}, nonce string) ([]byte, error) {
	payload, err := json.Marshal(claimset)
	if err != nil {
		return nil, fmt.Errorf("jws: marshal claimset: %v", err)
	}
	alg, err := signatureAlgorithm(s.key)
	if err != nil {
		return nil, err
	}
	opts := &jose.SignerOptions{EmbedJWK: true}
	opts.WithHeader("nonce", nonce)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: s.key}, opts)
	if err != nil {
		return nil, fmt.Errorf("jws: new signer: %v", err)
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("jws: sign: %v", err)
	}
	full := obj.FullSerialize()
	return []byte(full), nil
}

func (s *keySigner) Thumbprint() (string, error) {
	if s.thumbprint != "" {
		return s.thumbprint, nil
	}
	jwk := jose.JSONWebKey{Key: s.key.Public()}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("jws: thumbprint: %v", err)
	}
	s.thumbprint = base64.RawURLEncoding.EncodeToString(thumb)
	return s.thumbprint, nil
}
