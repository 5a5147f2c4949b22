// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtn7/dtn7-agents/pkg/message"
)

// ErrAuthentication is returned for unknown identities or wrong passwords.
var ErrAuthentication = errors.New("authentication failed")

// Accounts maps bare Addresses to bcrypt password hashes. Without any account, every registration is accepted.
type Accounts struct {
	sync.RWMutex

	hashes map[message.Address][]byte
}

// NewAccounts creates an empty, and therefore open, set of Accounts.
func NewAccounts() *Accounts {
	return &Accounts{hashes: make(map[message.Address][]byte)}
}

// HashPassword creates a bcrypt hash to be used with AddHash, e.g., for a configuration file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// Add an account with a plain password.
func (accs *Accounts) Add(identity message.Address, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return accs.AddHash(identity, hash)
}

// AddHash adds an account with a bcrypt hash.
func (accs *Accounts) AddHash(identity message.Address, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return err
	}

	accs.Lock()
	defer accs.Unlock()

	accs.hashes[identity.Bare()] = []byte(hash)
	return nil
}

// Len is the amount of accounts.
func (accs *Accounts) Len() int {
	accs.RLock()
	defer accs.RUnlock()

	return len(accs.hashes)
}

// Authenticate an identity. Open Accounts accept everyone.
func (accs *Accounts) Authenticate(identity message.Address, password string) error {
	accs.RLock()
	defer accs.RUnlock()

	if len(accs.hashes) == 0 {
		return nil
	}

	hash, ok := accs.hashes[identity.Bare()]
	if !ok {
		return ErrAuthentication
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrAuthentication
	}
	return nil
}
