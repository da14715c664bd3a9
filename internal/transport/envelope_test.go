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

package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/jws"
)

func testSigner(t *testing.T) jws.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := jws.New(key)
	if err != nil {
		t.Fatalf("jws.New: %v", err)
	}
	return signer
}

func testLogger() logr.Logger {
	return stdr.New(nil)
}

const testDirectoryBody = `{
	"new-authz": "https://ca.example/new-authz",
	"new-cert": "https://ca.example/new-cert",
	"new-reg": "https://ca.example/new-reg",
	"revoke-cert": "https://ca.example/revoke-cert"
}`

func TestWarmNonceFetchesDirectoryAndNonce(t *testing.T) {
	var headCalls, getCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "nonce-1")
		switch r.Method {
		case http.MethodHead:
			headCalls++
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			getCalls++
			w.Write([]byte(testDirectoryBody))
		}
	}))
	defer srv.Close()

	env := New(srv.Client(), srv.URL, testSigner(t), 2, testLogger())
	if err := env.WarmNonce(context.Background()); err != nil {
		t.Fatalf("WarmNonce: %v", err)
	}
	// The directory response already carries a Replay-Nonce, so the cache is
	// primed without a separate HEAD.
	if headCalls != 0 || getCalls != 1 {
		t.Errorf("headCalls=%d getCalls=%d, want 0,1", headCalls, getCalls)
	}
	dir, err := env.Directory(context.Background())
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if dir.NewAuthz != "https://ca.example/new-authz" {
		t.Errorf("dir.NewAuthz = %q", dir.NewAuthz)
	}
	// Directory already cached: no further GET.
	if getCalls != 1 {
		t.Errorf("Directory() issued a redundant fetch: getCalls=%d", getCalls)
	}
}

func TestPOSTConsumesNonceOnce(t *testing.T) {
	var nonceSeq = []string{"n1", "n2"}
	var postNonces []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead, http.MethodGet:
			if len(nonceSeq) > 0 {
				w.Header().Set("Replay-Nonce", nonceSeq[0])
				nonceSeq = nonceSeq[1:]
			}
			if r.Method == http.MethodGet {
				w.Write([]byte(testDirectoryBody))
			}
		case http.MethodPost:
			var env map[string]interface{}
			json.NewDecoder(r.Body).Decode(&env)
			protected, _ := env["protected"].(string)
			postNonces = append(postNonces, protected)
			w.Header().Set("Replay-Nonce", "after-post")
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	env := New(srv.Client(), srv.URL, testSigner(t), 2, testLogger())
	if err := env.WarmNonce(context.Background()); err != nil {
		t.Fatalf("WarmNonce: %v", err)
	}
	before := env.nonce
	if before == "" {
		t.Fatalf("nonce not primed")
	}

	consumed := false
	err := env.POST(context.Background(), srv.URL, Post(map[string]string{"resource": "new-authz"}, func(resp *http.Response) error {
		consumed = true
		return nil
	}))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if !consumed {
		t.Fatalf("consume was not called")
	}
	if env.nonce != "after-post" {
		t.Errorf("nonce after POST = %q, want the server-supplied after-post nonce", env.nonce)
	}
}

func TestPOSTClassifiesProblemDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Replay-Nonce", "n1")
		case http.MethodGet:
			w.Header().Set("Replay-Nonce", "n1")
			w.Write([]byte(testDirectoryBody))
		case http.MethodPost:
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"type":   "urn:ietf:params:acme:error:malformed",
				"detail": "invalid identifier",
			})
		}
	}))
	defer srv.Close()

	env := New(srv.Client(), srv.URL, testSigner(t), 2, testLogger())
	if err := env.WarmNonce(context.Background()); err != nil {
		t.Fatalf("WarmNonce: %v", err)
	}
	err := env.POST(context.Background(), srv.URL, Post(map[string]string{"resource": "new-authz"}, func(resp *http.Response) error {
		t.Fatalf("consume called on non-2xx response")
		return nil
	}))
	if !acmeerr.Is(err, acmeerr.Invalid) {
		t.Fatalf("POST() error = %v, want acmeerr.Invalid", err)
	}
}

func TestGETSkipsDirectoryAndSigning(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	env := New(srv.Client(), srv.URL, testSigner(t), 2, testLogger())
	var got map[string]string
	err := env.GET(context.Background(), srv.URL, Get(DecodeJSON(&got)))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no directory/nonce round trip)", calls)
	}
	if got["status"] != "pending" {
		t.Errorf("got = %v", got)
	}
}
