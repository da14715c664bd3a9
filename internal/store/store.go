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

// Package store defines the blob-store interface the challenge preparers
// use to persist validation artifacts (spec §3 "Store artifact", §6 "Blob
// store (consumed)"), and a boltdb-backed implementation.
package store

import "errors"

// ErrNotFound is returned by Load when the key does not exist.
var ErrNotFound = errors.New("store: not found")

// Kind describes how a value is encoded, mirroring spec §6's "Kinds at
// least: text, key, cert".
type Kind int

const (
	Text Kind = iota
	Key
	Cert
)

// ChallengesGroup is the top-level namespace (group) for a Store entry; it
// is the only group the core uses (spec §3).
const ChallengesGroup = "challenges"

// Store persists and retrieves artifacts keyed by (group, key, name). It is
// presumed to serialize its own writes (spec §5); the core does not lock.
type Store interface {
	Load(group, key, name string, kind Kind) ([]byte, error)
	Save(group, key, name string, kind Kind, value []byte, mode uint32) error
}

// Matches reports whether the artifact currently stored at (group,key,name)
// is byte-identical to want. A missing artifact is reported as a mismatch,
// never an error. The HTTP-01 preparer uses it as its "stale or absent"
// check; the TLS-ALPN-01 and TLS-SNI-01 preparers decide whether to
// regenerate with certutil.CoversDomain instead.
func Matches(s Store, group, key, name string, kind Kind, want []byte) (bool, error) {
	got, err := s.Load(group, key, name, kind)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(got) != len(want) {
		return false, nil
	}
	for i := range got {
		if got[i] != want[i] {
			return false, nil
		}
	}
	return true, nil
}
