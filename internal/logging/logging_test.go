// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestConfApply(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	tests := []struct {
		conf  Conf
		valid bool
		level log.Level
	}{
		{Conf{Level: "debug"}, true, log.DebugLevel},
		{Conf{Level: "warn", Format: "json"}, true, log.WarnLevel},
		{Conf{Level: "loud"}, false, log.WarnLevel},
		{Conf{Level: "info", Format: "xml"}, false, log.InfoLevel},
	}

	for _, test := range tests {
		err := test.conf.Apply()
		if test.valid && err != nil {
			t.Fatalf("%v errored: %v", test.conf, err)
		} else if !test.valid && err == nil {
			t.Fatalf("%v did not error", test.conf)
		}

		if lvl := log.GetLevel(); lvl != test.level {
			t.Fatalf("%v: expected level %v, got %v", test.conf, test.level, lvl)
		}
	}
}
