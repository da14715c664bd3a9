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

package authz

import "encoding/json"

// wireRecord is the stable on-disk shape of a Record (spec §4.9):
// {domain, location, dir, state}, with state as the integer ordinal of
// unknown=0 | pending=1 | valid=2 | invalid=3. Resource is deliberately
// excluded -- it is reacquired by Update.
type wireRecord struct {
	Domain   string `json:"domain"`
	Location string `json:"location"`
	Dir      string `json:"dir"`
	State    int    `json:"state"`
}

// ToJSON renders the persisted fields of rec to the stable JSON shape.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		Domain:   r.Domain,
		Location: r.URL,
		Dir:      r.Dir,
		State:    int(r.State),
	})
}

// FromJSON parses the stable JSON shape back into a Record. Resource is
// left nil; callers must Update before relying on Challenges().
func FromJSON(b []byte) (*Record, error) {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return &Record{
		Domain: w.Domain,
		URL:    w.Location,
		Dir:    w.Dir,
		State:  State(w.State),
	}, nil
}
