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

package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	jose "gopkg.in/go-jose/go-jose.v2"
)

func testECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSignProducesVerifiableJWSWithNonce(t *testing.T) {
	key := testECKey(t)
	signer, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	claimset := map[string]string{"resource": "new-authz"}
	out, err := signer.Sign(claimset, "abc123")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sig, err := jose.ParseSigned(string(out))
	if err != nil {
		t.Fatalf("ParseSigned: %v", err)
	}
	payload, err := sig.Verify(&key.PublicKey)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["resource"] != "new-authz" {
		t.Errorf("payload = %v, want resource=new-authz", got)
	}
	if len(sig.Signatures) != 1 || sig.Signatures[0].Header.Nonce != "abc123" {
		t.Errorf("nonce header = %q, want %q", sig.Signatures[0].Header.Nonce, "abc123")
	}
}

func TestThumbprintIsStableAndMemoized(t *testing.T) {
	key := testECKey(t)
	signer, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := signer.Thumbprint()
	if err != nil {
		t.Fatalf("Thumbprint: %v", err)
	}
	b, err := signer.Thumbprint()
	if err != nil {
		t.Fatalf("Thumbprint (2nd call): %v", err)
	}
	if a != b {
		t.Errorf("Thumbprint not stable across calls: %q != %q", a, b)
	}
	if a == "" {
		t.Errorf("Thumbprint = empty string")
	}
}

func TestThumbprintDiffersByKey(t *testing.T) {
	s1, err := New(testECKey(t))
	if err != nil {
		t.Fatal(err)
	}
	s2, err := New(testECKey(t))
	if err != nil {
		t.Fatal(err)
	}
	t1, err := s1.Thumbprint()
	if err != nil {
		t.Fatal(err)
	}
	t2, err := s2.Thumbprint()
	if err != nil {
		t.Fatal(err)
	}
	if t1 == t2 {
		t.Errorf("distinct keys produced the same thumbprint %q", t1)
	}
}

func TestNewSupportsRSAKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	if _, err := New(key); err != nil {
		t.Fatalf("New(rsaKey) = %v, want success", err)
	}
}
