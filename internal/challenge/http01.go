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

	"github.com/domainauthz/acmecore/internal/authz"
	"github.com/domainauthz/acmecore/internal/jws"
	"github.com/domainauthz/acmecore/internal/store"
	"github.com/domainauthz/acmecore/internal/transport"
	"github.com/domainauthz/acmecore/internal/wire"
)

// http01Preparer implements the HTTP-01 challenge (spec §4.7.1): the
// artifact is the raw key-authorization string, served later by an
// out-of-process responder from the store.
type http01Preparer struct{}

const http01Name = "http-01"

func (http01Preparer) Prepare(ctx context.Context, env *transport.Envelope, st store.Store, signer jws.Signer, rec *authz.Record, ch wire.Challenge) error {
	keyAuthz, needsNotify, err := deriveKeyAuthz(ch, signer)
	if err != nil {
		return err
	}

	rec.Dir = rec.Domain
	artifact := []byte(keyAuthz)
	matches, err := store.Matches(st, store.ChallengesGroup, rec.Dir, http01Name, store.Text, artifact)
	if err != nil {
		return err
	}
	if !matches {
		if err := st.Save(store.ChallengesGroup, rec.Dir, http01Name, store.Text, artifact, 0644); err != nil {
			return err
		}
	}

	if !needsNotify {
		return nil
	}
	return notify(ctx, env, ch, keyAuthz)
}
