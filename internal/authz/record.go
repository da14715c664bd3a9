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

// Package authz implements the Authorization Record and its Register,
// Update, and Delete operations (spec §3, §4.4, §4.5, §4.8).
package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/transport"
	"github.com/domainauthz/acmecore/internal/wire"
)

// State is the server-side lifecycle state of an authorization.
type State int

const (
	StateUnknown State = iota
	StatePending
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Record tracks one (domain, authorization-URL) pair, its server-side
// lifecycle state, and its local artifact directory (spec §3).
type Record struct {
	Domain string
	URL    string
	// Dir is the local artifact directory key: usually Domain, but for
	// TLS-SNI-01 a derived hostname (spec §4.7.3).
	Dir   string
	State State
	// Resource is the last server JSON snapshot. It is deliberately not
	// persisted (spec §4.9); it is reacquired by Update.
	Resource []byte
}

// String returns a log-friendly identity for the record (spec §7: "every
// failure logs ... the Authorization Record identity (domain + url)").
func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.Domain, r.URL)
}

// Challenges decodes the record's last resource snapshot into the
// authorization's offered challenges, for the Challenge Selector (spec §4.6).
func (r *Record) Challenges() ([]wire.Challenge, error) {
	if r.Resource == nil {
		return nil, &acmeerr.Error{Kind: acmeerr.Invalid, Detail: "no resource snapshot available"}
	}
	az, err := wire.ParseAuthorization(r.Resource)
	if err != nil {
		return nil, &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("decode authorization: %v", err)}
	}
	return az.Challenges, nil
}

// newAuthzRequest is the claimset for Register (spec §4.4 step 1).
type newAuthzRequest struct {
	Resource   string       `json:"resource"`
	Identifier wire.AuthzID `json:"identifier"`
}

// Register creates a new authorization for domain against the server
// fronted by env, per spec §4.4.
func Register(ctx context.Context, env *transport.Envelope, domain string) (*Record, error) {
	dir, err := env.Directory(ctx)
	if err != nil {
		return nil, err
	}

	req := newAuthzRequest{Resource: "new-authz", Identifier: wire.AuthzID{Type: "dns", Value: domain}}
	rec := &Record{Domain: domain, State: StateUnknown}

	consume := func(resp *http.Response) error {
		location := resp.Header.Get("Location")
		if location == "" {
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: "new-authz response missing Location header"}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("read response: %v", err)}
		}
		if !json.Valid(body) {
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: "new-authz response is not valid JSON"}
		}
		rec.URL = location
		rec.Resource = body
		return nil
	}

	if err := env.POST(ctx, dir.NewAuthz, transport.Post(req, consume)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update polls the server for the current state of the authorization at
// rec.URL, per spec §4.5.
func Update(ctx context.Context, env *transport.Envelope, rec *Record, log logr.Logger) error {
	consume := func(resp *http.Response) error {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("read response: %v", err)}
		}
		az, err := wire.ParseAuthorization(body)
		if err != nil {
			rec.State = StateUnknown
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("decode authorization: %v", err)}
		}
		if az.Identifier.Value != "" {
			rec.Domain = az.Identifier.Value
		}
		rec.Resource = body

		switch az.Status {
		case "pending":
			rec.State = StatePending
			log.Info("authorization pending", "record", rec.String())
		case "valid":
			rec.State = StateValid
			log.Info("authorization valid", "record", rec.String())
		case "invalid":
			rec.State = StateInvalid
			log.Error(nil, "authorization invalid", "record", rec.String())
		default:
			rec.State = StateUnknown
			log.Error(nil, "authorization unknown status", "record", rec.String(), "status", az.Status)
			return &acmeerr.Error{Kind: acmeerr.Invalid, Detail: fmt.Sprintf("unexpected status %q", az.Status)}
		}
		return nil
	}

	return env.GET(ctx, rec.URL, transport.Get(consume))
}

// deactivateRequest is the claimset for Delete (spec §4.8).
type deactivateRequest struct {
	Status string `json:"status"`
}

// Delete deactivates the authorization at rec.URL. The record's in-memory
// state is intentionally left untouched -- the caller is expected to drop
// it (spec §4.8). Unlike the controller this core does not reset any
// account reference as a side effect (spec §9 open question 2).
func Delete(ctx context.Context, env *transport.Envelope, rec *Record) error {
	consume := func(resp *http.Response) error { return nil }
	req := deactivateRequest{Status: "deactivated"}
	return env.POST(ctx, rec.URL, transport.Post(req, consume))
}
