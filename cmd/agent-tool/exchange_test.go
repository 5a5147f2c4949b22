// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

func TestMailDirStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "agent-tool")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	md := &mailDir{dir: dir}

	env := message.Message{Sender: "x@y", To: "z@y", Body: "hello", Thread: "t"}.Prepare()
	if err := md.store(env); err != nil {
		t.Fatal(err)
	}

	if _, own := md.written.Load(env.ID); !own {
		t.Fatal("stored file was not marked as written")
	}

	env2, err := readEnvelope(filepath.Join(dir, env.ID))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(env, env2) {
		t.Fatalf("expected %v, got %v", env, env2)
	}
}

func TestReadEnvelopeInvalid(t *testing.T) {
	dir, err := ioutil.TempDir("", "agent-tool")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	if _, err := readEnvelope(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("reading a missing file succeeded")
	}

	partial := filepath.Join(dir, "partial")
	if err := ioutil.WriteFile(partial, []byte{0x86, 0x60}, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readEnvelope(partial); err == nil {
		t.Fatal("reading a partial file succeeded")
	}
}
