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

package challenge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/authz"
	"github.com/domainauthz/acmecore/internal/certutil"
	"github.com/domainauthz/acmecore/internal/jws"
	"github.com/domainauthz/acmecore/internal/store"
	"github.com/domainauthz/acmecore/internal/transport"
	"github.com/domainauthz/acmecore/internal/wire"
)

// Preparer produces and persists the artifact for one challenge type, then
// notifies the server the proof is ready (spec §4.7).
type Preparer interface {
	Prepare(ctx context.Context, env *transport.Envelope, st store.Store, signer jws.Signer, rec *authz.Record, ch wire.Challenge) error
}

// PreparerFor returns the Preparer for t, or a NotImplemented error if no
// preparer is compiled in for it (spec §7).
func PreparerFor(t Type) (Preparer, error) {
	switch t {
	case HTTP01:
		return http01Preparer{}, nil
	case TLSALPN01:
		return tlsALPN01Preparer{gen: certutil.NewGenerator()}, nil
	case TLSSNI01:
		return tlsSNI01Preparer{gen: certutil.NewGenerator()}, nil
	default:
		return nil, &acmeerr.Error{Kind: acmeerr.NotImplemented, Detail: fmt.Sprintf("no preparer for challenge type %q", t)}
	}
}

// deriveKeyAuthz computes the key authorization for ch (spec §4.7 step 1).
// needsNotify reports whether ch's carried key_authz was absent or stale
// and must therefore be (re)announced to the server.
func deriveKeyAuthz(ch wire.Challenge, signer jws.Signer) (keyAuthz string, needsNotify bool, err error) {
	thumb, err := signer.Thumbprint()
	if err != nil {
		return "", false, err
	}
	computed := ch.Token + "." + thumb
	if ch.KeyAuthz == "" {
		return computed, true, nil
	}
	if ch.KeyAuthz != computed {
		return computed, true, nil
	}
	return computed, false, nil
}

// notify tells the server the proof is ready by POSTing to ch.URI (spec
// §4.7 step 3). For protocol v1 the request carries {"resource":"challenge"};
// keyAuthorization is included whenever non-empty.
func notify(ctx context.Context, env *transport.Envelope, ch wire.Challenge, keyAuthz string) error {
	req := map[string]interface{}{}
	if env.Version == 1 {
		req["resource"] = "challenge"
	}
	if keyAuthz != "" {
		req["keyAuthorization"] = keyAuthz
	}
	consume := func(resp *http.Response) error { return nil }
	return env.POST(ctx, ch.URI, transport.Post(req, consume))
}
