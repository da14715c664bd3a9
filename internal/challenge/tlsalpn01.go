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

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/authz"
	"github.com/domainauthz/acmecore/internal/certutil"
	"github.com/domainauthz/acmecore/internal/jws"
	"github.com/domainauthz/acmecore/internal/store"
	"github.com/domainauthz/acmecore/internal/transport"
	"github.com/domainauthz/acmecore/internal/wire"
)

// tlsALPN01Preparer implements the TLS-ALPN-01 challenge (spec §4.7.2): a
// self-signed certificate for domain carrying a critical acmeIdentifier
// extension over sha256(key_authz).
type tlsALPN01Preparer struct {
	gen certutil.Generator
}

const (
	tlsALPN01KeyName  = "tls-alpn-01.key"
	tlsALPN01CertName = "tls-alpn-01.crt"
)

func (p tlsALPN01Preparer) Prepare(ctx context.Context, env *transport.Envelope, st store.Store, signer jws.Signer, rec *authz.Record, ch wire.Challenge) error {
	keyAuthz, needsNotify, err := deriveKeyAuthz(ch, signer)
	if err != nil {
		return err
	}
	rec.Dir = rec.Domain

	regenerate := true
	existingCert, loadErr := st.Load(store.ChallengesGroup, rec.Dir, tlsALPN01CertName, store.Cert)
	if loadErr == nil {
		if covers, err := certutil.CoversDomain(existingCert, rec.Domain); err == nil && covers {
			regenerate = false
		}
	} else if loadErr != store.ErrNotFound {
		return &acmeerr.Error{Kind: acmeerr.General, Detail: loadErr.Error()}
	}

	if regenerate {
		keyPEM, certPEM, err := p.gen.SelfSignALPN(rec.Domain, keyAuthz)
		if err != nil {
			return &acmeerr.Error{Kind: acmeerr.General, Detail: err.Error()}
		}
		if err := st.Save(store.ChallengesGroup, rec.Dir, tlsALPN01KeyName, store.Key, keyPEM, 0600); err != nil {
			return err
		}
		if err := st.Save(store.ChallengesGroup, rec.Dir, tlsALPN01CertName, store.Cert, certPEM, 0644); err != nil {
			return err
		}
	}

	if !needsNotify {
		return nil
	}
	return notify(ctx, env, ch, keyAuthz)
}
