// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"os"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

const dirBadger string = "db"

// Store implements a persistent archive for Envelopes together with meta data.
type Store struct {
	bh *badgerhold.Store

	badgerDir string
}

// NewStore creates a new Store or opens an existing Store from the given path.
func NewStore(dir string) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:        bh,
			badgerDir: badgerDir,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Push a received Envelope to the Store. An already known Envelope is ignored.
func (s *Store) Push(env *message.Envelope) error {
	return s.PushAt(env, time.Now())
}

// PushAt is like Push, with an explicit reception time.
func (s *Store) PushAt(env *message.Envelope, received time.Time) error {
	if s.KnowsMessage(env.ID) {
		log.WithField("envelope", env.ID).Debug("Envelope ID is known, ignoring push")
		return nil
	}

	mi, err := newMessageItem(env, received)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"envelope": env.ID,
		"sender":   mi.Sender,
		"thread":   mi.Thread,
	}).Debug("Envelope ID is unknown, inserting MessageItem")

	return s.bh.Insert(mi.Id, mi)
}

// Delete a MessageItem by its Envelope ID. Unknown IDs are ignored.
func (s *Store) Delete(id string) error {
	if !s.KnowsMessage(id) {
		return nil
	}

	log.WithField("envelope", id).Debug("Store deletes MessageItem")
	return s.bh.Delete(id, MessageItem{})
}

// DeleteOlderThan removes all MessageItems received before the given time. The amount of deleted items is returned.
func (s *Store) DeleteOlderThan(t time.Time) (n int, err error) {
	var mis []MessageItem
	if mis, err = s.QueryReceivedBefore(t); err != nil {
		return
	}

	for _, mi := range mis {
		logger := log.WithField("envelope", mi.Id)
		if delErr := s.Delete(mi.Id); delErr != nil {
			logger.WithError(delErr).Warn("Failed to delete outdated MessageItem")
			err = delErr
		} else {
			logger.Debug("Deleted outdated MessageItem")
			n++
		}
	}
	return
}

// QueryID fetches the MessageItem for the requested Envelope ID.
func (s *Store) QueryID(id string) (mi MessageItem, err error) {
	err = s.bh.Get(id, &mi)
	return
}

// QuerySender fetches all MessageItems sent by some agent, ignoring the resource.
func (s *Store) QuerySender(sender message.Address) (mis []MessageItem, err error) {
	err = s.bh.Find(&mis, badgerhold.Where("Sender").Eq(sender.Bare().String()))
	return
}

// QueryThread fetches all MessageItems of a conversation thread.
func (s *Store) QueryThread(thread string) (mis []MessageItem, err error) {
	err = s.bh.Find(&mis, badgerhold.Where("Thread").Eq(thread))
	return
}

// QueryReceivedBefore fetches all MessageItems received before the given time.
func (s *Store) QueryReceivedBefore(t time.Time) (mis []MessageItem, err error) {
	err = s.bh.Find(&mis, badgerhold.Where("Received").Lt(t))
	return
}

// KnowsMessage checks if an Envelope with this ID is stored.
func (s *Store) KnowsMessage(id string) bool {
	_, err := s.QueryID(id)
	return err != badgerhold.ErrNotFound
}
