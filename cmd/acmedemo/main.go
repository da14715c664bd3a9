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

// Command acmedemo drives one domain authorization end to end: register,
// poll for offered challenges, prepare the first mutually acceptable one,
// and poll to a terminal state. It is a thin composition root over the
// internal packages, not a production CLI -- the core has no CLI surface
// (spec §6).
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/certifi/gocertifi"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/domainauthz/acmecore/internal/authz"
	"github.com/domainauthz/acmecore/internal/certutil"
	"github.com/domainauthz/acmecore/internal/challenge"
	"github.com/domainauthz/acmecore/internal/jws"
	"github.com/domainauthz/acmecore/internal/store"
	"github.com/domainauthz/acmecore/internal/transport"
)

var (
	domain       = ""
	acmeURL      = "https://acme-staging-v02.api.letsencrypt.org/directory"
	dataDir      = "/var/lib/acmecore"
	challenges   = "http-01,tls-alpn-01,tls-sni-01"
	pollInterval = 3
	version      = 2
)

func main() {
	flag.StringVar(&domain, "domain", domain, "Domain to authorize.")
	flag.StringVar(&acmeURL, "acme-url", acmeURL, "ACME directory URL.")
	flag.StringVar(&dataDir, "data-dir", dataDir, "Data directory path.")
	flag.StringVar(&challenges, "challenges", challenges, "Comma-separated preferred challenge types, in order.")
	flag.IntVar(&pollInterval, "poll-interval", pollInterval, "Seconds between authorization polls.")
	flag.IntVar(&version, "protocol-version", version, "ACME protocol major version.")
	flag.Parse()

	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	stdr.SetVerbosity(1)

	if domain == "" {
		logger.Error(nil, "no -domain specified")
		os.Exit(2)
	}

	if err := run(logger); err != nil {
		logger.Error(err, "authorization failed", "domain", domain)
		os.Exit(1)
	}
}

func run(logger logr.Logger) error {
	ctx := context.Background()

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("data dir: %v", err)
	}

	certPool, err := gocertifi.CACerts()
	if err != nil {
		return fmt.Errorf("ca bundle: %v", err)
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: certPool}},
	}

	accountKey, err := certutil.GenerateKey()
	if err != nil {
		return fmt.Errorf("account key: %v", err)
	}
	signer, err := jws.New(accountKey)
	if err != nil {
		return fmt.Errorf("jws signer: %v", err)
	}

	env := transport.New(httpClient, acmeURL, signer, version, logger)
	if err := env.WarmNonce(ctx); err != nil {
		return fmt.Errorf("warm nonce: %v", err)
	}

	st, err := store.OpenBolt(filepath.Join(dataDir, "data.db"))
	if err != nil {
		return fmt.Errorf("open store: %v", err)
	}
	defer st.Close()

	rec, err := authz.Register(ctx, env, domain)
	if err != nil {
		return fmt.Errorf("register: %v", err)
	}
	logger.Info("registered authorization", "record", rec.String())

	if err := authz.Update(ctx, env, rec, logger); err != nil {
		return fmt.Errorf("update: %v", err)
	}

	if rec.State == authz.StatePending {
		offered, err := rec.Challenges()
		if err != nil {
			return fmt.Errorf("decode challenges: %v", err)
		}
		preferred := parsePreferred(challenges)
		chosen, err := challenge.Select(preferred, offered)
		if err != nil {
			return fmt.Errorf("select challenge: %v", err)
		}
		preparer, err := challenge.PreparerFor(challenge.Type(strings.ToLower(chosen.Type)))
		if err != nil {
			return fmt.Errorf("preparer: %v", err)
		}
		if err := preparer.Prepare(ctx, env, st, signer, rec, chosen); err != nil {
			return fmt.Errorf("prepare %s: %v", chosen.Type, err)
		}
		logger.Info("prepared challenge", "type", chosen.Type, "dir", rec.Dir)
	}

	for rec.State != authz.StateValid && rec.State != authz.StateInvalid {
		time.Sleep(time.Duration(pollInterval) * time.Second)
		if err := authz.Update(ctx, env, rec, logger); err != nil {
			return fmt.Errorf("poll update: %v", err)
		}
	}

	logger.Info("authorization finished", "record", rec.String(), "state", rec.State.String())
	return nil
}

func parsePreferred(csv string) []challenge.Type {
	parts := strings.Split(csv, ",")
	out := make([]challenge.Type, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, challenge.Type(p))
		}
	}
	return out
}
