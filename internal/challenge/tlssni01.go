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

// tlsSNI01Preparer implements the TLS-SNI-01 challenge (spec §4.7.3): a
// self-signed certificate whose SAN contains a hostname derived from
// sha256(key_authz), served under that derived name instead of domain.
type tlsSNI01Preparer struct {
	gen certutil.Generator
}

const (
	tlsSNI01KeyName  = "tls-sni-01.key"
	tlsSNI01CertName = "tls-sni-01.crt"
	sniSuffix        = ".acme.invalid"
)

// deriveSNIName computes the challenge DNS name from key_authz (spec
// §4.7.3): h = lowercase hex sha256(key_authz); dns = h[0:32] + "." +
// h[32:64] + ".acme.invalid".
func deriveSNIName(keyAuthz string) string {
	h := certutil.SHA256Hex(keyAuthz)
	return h[0:32] + "." + h[32:64] + sniSuffix
}

func (p tlsSNI01Preparer) Prepare(ctx context.Context, env *transport.Envelope, st store.Store, signer jws.Signer, rec *authz.Record, ch wire.Challenge) error {
	keyAuthz, needsNotify, err := deriveKeyAuthz(ch, signer)
	if err != nil {
		return err
	}
	dns := deriveSNIName(keyAuthz)
	rec.Dir = dns

	regenerate := true
	existingCert, loadErr := st.Load(store.ChallengesGroup, rec.Dir, tlsSNI01CertName, store.Cert)
	if loadErr == nil {
		if covers, err := certutil.CoversDomain(existingCert, dns); err == nil && covers {
			regenerate = false
		}
	} else if loadErr != store.ErrNotFound {
		return &acmeerr.Error{Kind: acmeerr.General, Detail: loadErr.Error()}
	}

	if regenerate {
		keyPEM, certPEM, err := p.gen.SelfSignSNI(rec.Domain, dns)
		if err != nil {
			return &acmeerr.Error{Kind: acmeerr.General, Detail: err.Error()}
		}
		if err := st.Save(store.ChallengesGroup, rec.Dir, tlsSNI01KeyName, store.Key, keyPEM, 0600); err != nil {
			return err
		}
		if err := st.Save(store.ChallengesGroup, rec.Dir, tlsSNI01CertName, store.Cert, certPEM, 0644); err != nil {
			return err
		}
	}

	if !needsNotify {
		return nil
	}
	return notify(ctx, env, ch, keyAuthz)
}
