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

// Package acmeerr defines the closed error-kind taxonomy the authorization
// core surfaces to its caller, and the RFC 7807 problem-document classifier
// that feeds it.
package acmeerr

import (
	"fmt"
	"strings"
)

// Kind is a coarse category for a Error. The set is closed: callers switch
// on it rather than matching strings.
type Kind int

const (
	// General covers anything that doesn't fit a more specific Kind,
	// including classified connection/tls/dns/caa/serverInternal problems.
	General Kind = iota
	Invalid
	NotFound
	AccessDenied
	TryAgain
	BadArgument
	NotImplemented
	// Retryable marks a problem the caller may retry as-is (badNonce); the
	// Envelope already clears its nonce cache on any response, so the next
	// call fetches a fresh one automatically.
	Retryable
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not-found"
	case AccessDenied:
		return "access-denied"
	case TryAgain:
		return "try-again"
	case BadArgument:
		return "bad-argument"
	case NotImplemented:
		return "not-implemented"
	case Retryable:
		return "retryable"
	default:
		return "general"
	}
}

// Error is the error type the core returns to its caller.
type Error struct {
	Kind   Kind
	Detail string
	// URL and ProblemType are populated when the error originates from an
	// ACME problem document or HTTP status, for logging per spec §7.
	URL         string
	ProblemType string
}

func (e *Error) Error() string {
	if e.ProblemType != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, e.ProblemType)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New constructs an *Error of the given Kind.
func New(k Kind, msg string, args ...interface{}) error {
	return &Error{Kind: k, Detail: fmt.Sprintf(msg, args...)}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, k Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == k
}

// classifyTable is the fixed, compile-time table from spec §4.1. Keys are
// lower-case problem-subtype tokens (the part after the last colon of the
// stripped urn prefix).
var classifyTable = map[string]Kind{
	"badcsr":                Invalid,
	"badnonce":              Retryable,
	"badsignaturealgorithm": Invalid,
	"invalidcontact":        BadArgument,
	"unsupportedcontact":    BadArgument,
	"malformed":             Invalid,
	"ratelimited":           BadArgument,
	"rejectedidentifier":    BadArgument,
	"serverinternal":        General,
	"unauthorized":          AccessDenied,
	"unsupportedidentifier": BadArgument,
	"useractionrequired":    TryAgain,
	"badrevocationreason":   Invalid,
	"caa":                   General,
	"dns":                   General,
	"connection":            General,
	"tls":                   General,
	"incorrectresponse":     General,
}

// recognizedPrefixes are stripped, longest first, before table lookup.
var recognizedPrefixes = []string{
	"urn:ietf:params:acme:error:",
	"urn:acme:error:",
	"urn:ietf:params:",
	"urn:",
}

// Classify maps an ACME problem-document "type" string to a Kind, per the
// fixed table in spec §4.1. Unrecognized types classify as General.
func Classify(problemType string) Kind {
	t := problemType
	for _, p := range recognizedPrefixes {
		if strings.HasPrefix(strings.ToLower(t), p) {
			t = t[len(p):]
			break
		}
	}
	k, ok := classifyTable[strings.ToLower(t)]
	if !ok {
		return General
	}
	return k
}

// FromHTTPStatus maps a non-2xx, non-problem-document HTTP status to a
// Kind, per spec §4.2 step 7.
func FromHTTPStatus(status int) Kind {
	switch status {
	case 400:
		return Invalid
	case 403:
		return AccessDenied
	case 404:
		return NotFound
	default:
		return General
	}
}
