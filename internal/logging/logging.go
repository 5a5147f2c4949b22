// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging configures logrus from a configuration file's logging block.
package logging

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Conf describes the Logging-configuration block.
type Conf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// Apply the configuration to logrus' standard logger. An unknown level or format is reported, but the remaining
// configuration is applied nevertheless.
func (conf Conf) Apply() (err error) {
	if conf.Level != "" {
		if lvl, lvlErr := log.ParseLevel(conf.Level); lvlErr != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    lvlErr,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
			err = lvlErr
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.WithField("format", conf.Format).Warn("Unknown logging format")
		err = fmt.Errorf("unknown logging format %q", conf.Format)
	}

	return
}
