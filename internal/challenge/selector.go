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

// Package challenge implements the Challenge Selector and the three
// Challenge Preparers (spec §4.6, §4.7).
package challenge

import (
	"fmt"
	"strings"

	"github.com/domainauthz/acmecore/internal/acmeerr"
	"github.com/domainauthz/acmecore/internal/wire"
)

// Type is one of the recognized challenge type tokens, modeled as a closed
// tagged variant per spec §9 ("a future DNS-01 adds a variant").
type Type string

const (
	HTTP01    Type = "http-01"
	TLSALPN01 Type = "tls-alpn-01"
	TLSSNI01  Type = "tls-sni-01"
)

// Select picks the first mutually acceptable challenge: it walks the
// caller's preferred types in order and, for each, scans offered for the
// first case-insensitive match (spec §4.6 -- "caller order wins over
// server order").
func Select(preferred []Type, offered []wire.Challenge) (wire.Challenge, error) {
	for _, want := range preferred {
		for _, c := range offered {
			if strings.EqualFold(c.Type, string(want)) {
				return c, nil
			}
		}
	}
	return wire.Challenge{}, &acmeerr.Error{
		Kind:   acmeerr.Invalid,
		Detail: fmt.Sprintf("no acceptable challenge: offered=%v configured=%v", typesOf(offered), preferred),
	}
}

func typesOf(cs []wire.Challenge) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}
