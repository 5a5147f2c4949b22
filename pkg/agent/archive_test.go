// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/storage"
)

func TestArchive(t *testing.T) {
	dir, err := ioutil.TempDir("", "archive")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	network := connection.NewNetwork()
	a, _ := newTestAgent(t, network, "alice@example.org")

	archive := NewArchive(store)
	if err := a.AddBehaviour(archive, nil); err != nil {
		t.Fatal(err)
	}

	for _, thread := range []string{"t1", "t1", "t2"} {
		deliver(t, network, message.Message{Sender: "bob@example.org", To: "alice@example.org", Thread: thread})
	}

	eventually(t, time.Second, func() bool {
		mis, _ := store.QuerySender("bob@example.org")
		return len(mis) == 3
	})

	if mis, err := store.QueryThread("t1"); err != nil {
		t.Fatal(err)
	} else if len(mis) != 2 {
		t.Fatalf("expected two archived messages in t1, got %d", len(mis))
	}

	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := archive.Join(time.Second); err != nil {
		t.Fatal(err)
	}
}
