// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
// SPDX-FileCopyrightText: 2020 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// NotifyFunc is called for each received Announcement with the announcing peer's address.
type NotifyFunc func(announcement Announcement, addr string)

// Manager publishes and receives Announcements.
type Manager struct {
	notifyFunc NotifyFunc

	stopChan4 chan struct{}
	stopChan6 chan struct{}
}

// NewManager for Announcements will be created and started. The NotifyFunc is optional; an empty list of
// Announcements only listens.
func NewManager(
	announcements []Announcement, announcementInterval time.Duration,
	ipv4, ipv6 bool, notifyFunc NotifyFunc) (*Manager, error) {

	var manager = &Manager{
		notifyFunc: notifyFunc,
	}
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":      announcementInterval,
		"IPv4":          ipv4,
		"IPv6":          ipv6,
		"announcements": announcements,
	}).Info("Starting discovery Manager")

	msg, err := MarshalAnnouncements(announcements)
	if err != nil {
		return nil, err
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
		notify           func(discovered peerdiscovery.Discovered)
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4, manager.notify},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6, manager.notify6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		set := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            announcementInterval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        true,
			IPVersion:        set.ipVersion,
			Notify:           set.notify,
		}

		discoverErrChan := make(chan error)
		go func() {
			_, discoverErr := peerdiscovery.Discover(set)
			discoverErrChan <- discoverErr
		}()

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}

		case <-time.After(time.Second):
			break
		}
	}

	return manager, nil
}

func (manager *Manager) notify6(discovered peerdiscovery.Discovered) {
	// Bracket IPv6 addresses to be used within URLs.
	discovered.Address = fmt.Sprintf("[%s]", discovered.Address)

	manager.notify(discovered)
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	announcements, err := UnmarshalAnnouncements(discovered.Payload)
	if err != nil {
		log.WithError(err).WithField("peer", discovered.Address).
			Warn("Peer discovery failed to parse incoming package")
		return
	}

	for _, announcement := range announcements {
		log.WithFields(log.Fields{
			"peer":    discovered.Address,
			"message": announcement,
		}).Debug("Peer discovery received an announcement")

		if manager.notifyFunc != nil {
			manager.notifyFunc(announcement, discovered.Address)
		}
	}
}

// Close this Manager.
func (manager *Manager) Close() {
	for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
		if c != nil {
			c <- struct{}{}
		}
	}
}

// Discover listens until the first relay was announced and returns its URL. An error is returned if no relay was
// announced within the timeout.
func Discover(timeout time.Duration, ipv4, ipv6 bool) (url string, err error) {
	found := make(chan string, 1)
	var foundOnce sync.Once

	manager, err := NewManager(nil, time.Second, ipv4, ipv6, func(announcement Announcement, addr string) {
		foundOnce.Do(func() {
			found <- announcement.URL(addr)
		})
	})
	if err != nil {
		return "", err
	}
	defer manager.Close()

	select {
	case url = <-found:
		log.WithField("relay", url).Info("Discovered relay")
		return url, nil

	case <-time.After(timeout):
		return "", fmt.Errorf("no relay was discovered within %v", timeout)
	}
}
