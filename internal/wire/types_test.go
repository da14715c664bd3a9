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

package wire

import "testing"

func TestChallengeUnmarshalPrefersURI(t *testing.T) {
	var c Challenge
	if err := c.UnmarshalJSON([]byte(`{"type":"http-01","uri":"https://ca/chal/1","token":"tok"}`)); err != nil {
		t.Fatal(err)
	}
	if c.URI != "https://ca/chal/1" {
		t.Errorf("URI = %q, want the uri field value", c.URI)
	}
}

func TestChallengeUnmarshalFallsBackToURL(t *testing.T) {
	var c Challenge
	if err := c.UnmarshalJSON([]byte(`{"type":"http-01","url":"https://ca/chal/2","token":"tok"}`)); err != nil {
		t.Fatal(err)
	}
	if c.URI != "https://ca/chal/2" {
		t.Errorf("URI = %q, want the url field value", c.URI)
	}
}

func TestDirectoryMissing(t *testing.T) {
	d := Directory{NewAuthz: "a", NewReg: "b"}
	missing := d.Missing()
	if len(missing) != 2 {
		t.Fatalf("Missing() = %v, want 2 entries", missing)
	}
}

func TestDirectoryComplete(t *testing.T) {
	d := Directory{NewAuthz: "a", NewCert: "b", NewReg: "c", RevokeCert: "d"}
	if missing := d.Missing(); len(missing) != 0 {
		t.Fatalf("Missing() = %v, want none", missing)
	}
}

func TestParseAuthorizationIndexesChallenges(t *testing.T) {
	body := []byte(`{
		"status":"pending",
		"identifier":{"type":"dns","value":"example.org"},
		"challenges":[
			{"type":"dns-01","uri":"https://ca/1","token":"t1"},
			{"type":"http-01","uri":"https://ca/2","token":"t2"}
		]
	}`)
	az, err := ParseAuthorization(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(az.Challenges) != 2 {
		t.Fatalf("len(Challenges) = %d, want 2", len(az.Challenges))
	}
	if az.Challenges[0].Index != 0 || az.Challenges[1].Index != 1 {
		t.Errorf("challenge indices = %d,%d, want 0,1", az.Challenges[0].Index, az.Challenges[1].Index)
	}
	if az.Identifier.Value != "example.org" {
		t.Errorf("Identifier.Value = %q, want example.org", az.Identifier.Value)
	}
}
