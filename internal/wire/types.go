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

// Package wire holds the JSON shapes exchanged with an ACME server:
// the directory document, authorization resources, and challenge objects.
package wire

import "encoding/json"

// Directory lists the endpoints a server advertises. All four fields are
// mandatory per spec §4.3; Envelope.ensureDirectory fails setup if any is
// missing.
type Directory struct {
	NewAuthz   string `json:"new-authz"`
	NewCert    string `json:"new-cert"`
	NewReg     string `json:"new-reg"`
	RevokeCert string `json:"revoke-cert"`
}

// Missing returns the names of any directory fields that are empty.
func (d *Directory) Missing() []string {
	var missing []string
	if d.NewAuthz == "" {
		missing = append(missing, "new-authz")
	}
	if d.NewCert == "" {
		missing = append(missing, "new-cert")
	}
	if d.NewReg == "" {
		missing = append(missing, "new-reg")
	}
	if d.RevokeCert == "" {
		missing = append(missing, "revoke-cert")
	}
	return missing
}

// AuthzID identifies what an authorization is for.
type AuthzID struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// Authorization is the server's JSON representation of an authorization
// resource, as read by Update (spec §4.5).
type Authorization struct {
	Status     string      `json:"status"`
	Identifier AuthzID     `json:"identifier"`
	Challenges []Challenge `json:"challenges"`
}

// Challenge is one server-offered validation mechanism. Some protocol
// versions name the response-POST target "url", others "uri"; UnmarshalJSON
// reads whichever is present, per spec §3.
type Challenge struct {
	Index    int
	Type     string
	URI      string
	Token    string
	KeyAuthz string
}

type challengeWire struct {
	Type             string `json:"type"`
	URI              string `json:"uri,omitempty"`
	URL              string `json:"url,omitempty"`
	Token            string `json:"token"`
	KeyAuthorization string `json:"keyAuthorization,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler, preferring "uri" but falling
// back to "url" when the server (ACME v2+) used that name instead.
func (c *Challenge) UnmarshalJSON(b []byte) error {
	var w challengeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	c.Type = w.Type
	c.Token = w.Token
	c.KeyAuthz = w.KeyAuthorization
	if w.URI != "" {
		c.URI = w.URI
	} else {
		c.URI = w.URL
	}
	return nil
}

// MarshalJSON round-trips using "uri", the v1 field name; callers that need
// v2 "url" semantics only ever marshal a Challenge back for equality checks
// in tests, not for wire transmission (the core only ever POSTs *to*
// c.URI, it never re-serializes a Challenge for the server).
func (c Challenge) MarshalJSON() ([]byte, error) {
	return json.Marshal(challengeWire{
		Type:             c.Type,
		URI:              c.URI,
		Token:            c.Token,
		KeyAuthorization: c.KeyAuthz,
	})
}

// indexChallenges stamps each entry of the already-decoded challenge array
// with its position, since Authorization.Challenges alone loses index
// information the Challenge type itself doesn't carry on the wire.
func (a *Authorization) indexChallenges() {
	for i := range a.Challenges {
		a.Challenges[i].Index = i
	}
}

// ParseAuthorization decodes a raw authorization document (as read off an
// HTTP response body) into an Authorization, indexing challenges.
func ParseAuthorization(b []byte) (*Authorization, error) {
	var a Authorization
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	a.indexChallenges()
	return &a, nil
}

// Problem is an RFC 7807 problem document, as returned by ACME servers on
// error (spec §4.2 step 7, §7).
type Problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}
