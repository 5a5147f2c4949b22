// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-agents/pkg/storage"
)

// Archive is a Behaviour storing each received Message in a storage.Store.
type Archive struct {
	*Cyclic

	store *storage.Store
}

// NewArchive creates a new Archive Behaviour for a Store. The Store is not closed by the Archive.
func NewArchive(store *storage.Store) *Archive {
	a := &Archive{store: store}
	a.Cyclic = NewCyclic(a.step)
	return a
}

func (a *Archive) step(ctx context.Context, b *Base) error {
	msg, err := b.Receive(ctx)
	if err != nil {
		return err
	}

	env := msg.Prepare()
	if err := a.store.Push(env); err != nil {
		log.WithError(err).WithField("envelope", env.ID).Warn("Archiving message errored")
	}
	return nil
}
