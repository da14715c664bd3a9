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

// Package transport implements the signed request envelope and the
// directory/nonce manager (spec §4.2, §4.3): every authenticated round-trip
// to the ACME server goes through an Envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/jws"
	"github.com/domainauthz/acmecore/internal/wire"
)

// maxResponseBytes caps how much of a response body is read, matching the
// 1 MiB cap spec §6 assigns the HTTP transport.
const maxResponseBytes = 1 << 20

// ResponseConsumer decides what to do with a successful (2xx) response. It
// is the "consume(response) -> result" half of the strategy spec §9
// recommends in place of the on_json/on_res callback pair; whether it reads
// JSON or a raw body is the consumer's own business.
type ResponseConsumer func(*http.Response) error

// PostStrategy is the "build_payload / consume" pair spec §9 asks for, for
// a signed POST.
type PostStrategy interface {
	// BuildPayload returns the JSON-serializable claimset to sign and send.
	BuildPayload() (interface{}, error)
	Consume(resp *http.Response) error
}

// GetStrategy is the read-only half: no payload, only a consumer.
type GetStrategy interface {
	Consume(resp *http.Response) error
}

type postStrategy struct {
	payload interface{}
	consume ResponseConsumer
}

func (p postStrategy) BuildPayload() (interface{}, error) { return p.payload, nil }
func (p postStrategy) Consume(resp *http.Response) error  { return p.consume(resp) }

// Post builds a PostStrategy from a claimset and a response consumer.
func Post(payload interface{}, consume ResponseConsumer) PostStrategy {
	return postStrategy{payload: payload, consume: consume}
}

type getStrategy struct{ consume ResponseConsumer }

func (g getStrategy) Consume(resp *http.Response) error { return g.consume(resp) }

// Get builds a GetStrategy from a response consumer.
func Get(consume ResponseConsumer) GetStrategy {
	return getStrategy{consume: consume}
}

// DecodeJSON returns a ResponseConsumer that decodes the response body as
// JSON into dest. A decode failure on an otherwise-successful response
// classifies as Invalid (spec §4.2: "JSON parse error on a 2xx -> invalid").
func DecodeJSON(dest interface{}) ResponseConsumer {
	return func(resp *http.Response) error {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("decode response: %v", err)}
		}
		return nil
	}
}

// Envelope drives signed and unsigned requests against one ACME server: it
// owns the lazily-fetched directory and the single-slot nonce cache (spec
// §3 "ACME Context").
type Envelope struct {
	Client      *http.Client
	DirectoryURL string
	Signer      jws.Signer
	Version     int // protocol major version; caller-supplied, spec §9
	Log         logr.Logger

	directory *wire.Directory
	nonce     string
}

// New builds an Envelope. client, signer and directoryURL must be non-nil/non-empty.
func New(client *http.Client, directoryURL string, signer jws.Signer, version int, log logr.Logger) *Envelope {
	return &Envelope{
		Client:       client,
		DirectoryURL: directoryURL,
		Signer:       signer,
		Version:      version,
		Log:          log,
	}
}

// WarmNonce primes the nonce cache ahead of the first Register call, so
// that call doesn't pay for an extra HEAD round-trip (SPEC_FULL §8).
func (e *Envelope) WarmNonce(ctx context.Context) error {
	if err := e.ensureDirectory(ctx); err != nil {
		return err
	}
	return e.ensureNonce(ctx)
}

func (e *Envelope) ensureDirectory(ctx context.Context) error {
	if e.directory != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.DirectoryURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	e.absorbNonce(resp)
	if resp.StatusCode != http.StatusOK {
		return e.classifyResponse(resp)
	}
	var dir wire.Directory
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&dir); err != nil {
		return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("decode directory: %v", err)}
	}
	if missing := dir.Missing(); len(missing) > 0 {
		return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("directory missing endpoints: %v", missing)}
	}
	e.directory = &dir
	return nil
}

// Directory returns the fetched directory, fetching it first if necessary.
func (e *Envelope) Directory(ctx context.Context) (*wire.Directory, error) {
	if err := e.ensureDirectory(ctx); err != nil {
		return nil, err
	}
	return e.directory, nil
}

func (e *Envelope) ensureNonce(ctx context.Context) error {
	if e.nonce != "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.DirectoryURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	nonce := resp.Header.Get("Replay-Nonce")
	if nonce == "" {
		return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: "no Replay-Nonce in HEAD response"}
	}
	e.nonce = nonce
	return nil
}

// absorbNonce stores the nonce from a response, if any, per spec §4.3:
// "Servers deliver Replay-Nonce on any response". Called on every response,
// success or failure.
func (e *Envelope) absorbNonce(resp *http.Response) {
	if n := resp.Header.Get("Replay-Nonce"); n != "" {
		e.nonce = n
	}
}

// POST executes a signed request against url following the algorithm of
// spec §4.2.
func (e *Envelope) POST(ctx context.Context, url string, strategy PostStrategy) error {
	if err := e.ensureDirectory(ctx); err != nil {
		return err
	}
	if err := e.ensureNonce(ctx); err != nil {
		return err
	}
	nonce := e.nonce
	e.nonce = "" // consume-then-clear: single-use (spec §4.3)

	claimset, err := strategy.BuildPayload()
	if err != nil {
		return err
	}
	body, err := e.Signer.Sign(claimset, nonce)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/jose+json")
	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	e.absorbNonce(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return e.classifyResponse(resp)
	}
	return strategy.Consume(resp)
}

// GET executes an unsigned request against url, skipping directory/nonce
// handling and signing entirely (spec §4.2: "The GET variant skips steps
// 1-3 and 4's signing").
func (e *Envelope) GET(ctx context.Context, url string, strategy GetStrategy) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	e.absorbNonce(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return e.classifyResponse(resp)
	}
	return strategy.Consume(resp)
}

// classifyResponse maps a non-2xx response to a *acmeerr.Error, preferring
// the RFC 7807 problem document when present (spec §4.2 step 7).
func (e *Envelope) classifyResponse(resp *http.Response) error {
	if resp.Header.Get("Content-Type") == "application/problem+json" {
		var p wire.Problem
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&p); err == nil {
			kind := acmeerr.Classify(p.Type)
			return &acmeerr.Error{Kind: kind, Detail: p.Detail, URL: resp.Request.URL.String(), ProblemType: p.Type}
		}
	}
	kind := acmeerr.FromHTTPStatus(resp.StatusCode)
	return &acmeerr.Error{Kind: kind, Detail: resp.Status, URL: resp.Request.URL.String()}
}
