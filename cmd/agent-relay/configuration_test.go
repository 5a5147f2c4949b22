// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/dtn7/dtn7-agents/pkg/relay"
)

func TestParseConfig(t *testing.T) {
	hash, err := relay.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}

	dir, err := ioutil.TempDir("", "agent-relay")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := path.Join(dir, "relay.toml")
	content := fmt.Sprintf(`
[relay]
name = "lab"
listen = ":9090"

[discovery]
ipv4 = true

[[account]]
identity = "alice@example.org"
hash = %q

[[account]]
identity = "bob@example.org"
hash = %q
`, hash, hash)

	if err := ioutil.WriteFile(filename, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	conf, accounts, announcement, err := parseConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	if l := accounts.Len(); l != 2 {
		t.Fatalf("expected two accounts, got %d", l)
	}
	if err := accounts.Authenticate("alice@example.org", "secret"); err != nil {
		t.Fatal(err)
	}

	if announcement.Port != 9090 || announcement.Name != "lab" || announcement.Path != "/ws" {
		t.Fatalf("unexpected announcement %v", announcement)
	}
	if conf.Discovery.Interval != 10 {
		t.Fatalf("discovery interval did not fall back to its default, %d", conf.Discovery.Interval)
	}
}

func TestParseConfigInvalidAccount(t *testing.T) {
	dir, err := ioutil.TempDir("", "agent-relay")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := path.Join(dir, "relay.toml")
	content := `
[[account]]
identity = "alice"
hash = "plain"
`
	if err := ioutil.WriteFile(filename, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := parseConfig(filename); err == nil {
		t.Fatal("invalid account was accepted")
	}
}
