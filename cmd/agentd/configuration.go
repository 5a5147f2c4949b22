// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/dtn7-agents/pkg/agent"
	"github.com/dtn7/dtn7-agents/pkg/connection"
	"github.com/dtn7/dtn7-agents/pkg/discovery"
	"github.com/dtn7/dtn7-agents/internal/logging"
	"github.com/dtn7/dtn7-agents/pkg/message"
	"github.com/dtn7/dtn7-agents/pkg/storage"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Agent     agentConf
	Logging   logging.Conf
	Worker    workerConf
	Discovery discoveryConf
	Ping      pingConf
	Archive   archiveConf
}

// agentConf describes the Agent-configuration block.
type agentConf struct {
	Identity       string
	Password       string
	Relay          string
	VerifySecurity bool `toml:"verify-security"`
}

// workerConf describes the Worker-configuration block; all values are durations, e.g., "5s".
type workerConf struct {
	ConnectTimeout    string `toml:"connect-timeout"`
	DisconnectTimeout string `toml:"disconnect-timeout"`
	TaskTimeout       string `toml:"task-timeout"`
}

// discoveryConf describes the Discovery-configuration block, used if no relay is configured.
type discoveryConf struct {
	IPv4    bool
	IPv6    bool
	Timeout string
}

// pingConf describes the Ping-configuration block.
type pingConf struct {
	Enabled bool
}

// archiveConf describes the Archive-configuration block.
type archiveConf struct {
	Store  string
	MaxAge string `toml:"max-age"`
}

// daemon bundles everything started from a configuration.
type daemon struct {
	agent  *agent.Agent
	store  *storage.Store
	maxAge time.Duration
}

// parseDuration of a configuration value; an empty value results in the fallback.
func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// parseWorker creates the agent.Config from the worker block. Connect and disconnect timeouts must be positive; a
// zero task timeout disables it.
func parseWorker(conf workerConf) (agentConf agent.Config, err error) {
	agentConf = agent.DefaultConfig()

	var errs error
	var dErr error

	if agentConf.Worker.ConnectTimeout, dErr = parseDuration(
		"worker.connect-timeout", conf.ConnectTimeout, agentConf.Worker.ConnectTimeout); dErr != nil {
		errs = multierror.Append(errs, dErr)
	}
	if agentConf.Worker.DisconnectTimeout, dErr = parseDuration(
		"worker.disconnect-timeout", conf.DisconnectTimeout, agentConf.Worker.DisconnectTimeout); dErr != nil {
		errs = multierror.Append(errs, dErr)
	}
	if agentConf.Worker.ConnectTimeout <= 0 && conf.ConnectTimeout != "" {
		errs = multierror.Append(errs, fmt.Errorf("worker.connect-timeout must be positive"))
	}
	if agentConf.Worker.DisconnectTimeout <= 0 && conf.DisconnectTimeout != "" {
		errs = multierror.Append(errs, fmt.Errorf("worker.disconnect-timeout must be positive"))
	}
	if agentConf.Worker.TaskTimeout, dErr = parseDuration(
		"worker.task-timeout", conf.TaskTimeout, agentConf.Worker.TaskTimeout); dErr != nil {
		errs = multierror.Append(errs, dErr)
	}

	err = errs
	return
}

// parseConfig reads and validates the TOML configuration without starting anything.
func parseConfig(filename string) (conf tomlConfig, agentConfig agent.Config, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	var errs error

	if _, idErr := message.ParseAddress(conf.Agent.Identity); idErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("agent.identity: %w", idErr))
	}

	if conf.Agent.Relay == "" && !conf.Discovery.IPv4 && !conf.Discovery.IPv6 {
		errs = multierror.Append(errs, fmt.Errorf("agent.relay is empty and discovery is disabled"))
	}

	if _, dErr := parseDuration("discovery.timeout", conf.Discovery.Timeout, 0); dErr != nil {
		errs = multierror.Append(errs, dErr)
	}
	if _, dErr := parseDuration("archive.max-age", conf.Archive.MaxAge, 0); dErr != nil {
		errs = multierror.Append(errs, dErr)
	}

	if wConf, wErr := parseWorker(conf.Worker); wErr != nil {
		errs = multierror.Append(errs, wErr)
	} else {
		agentConfig = wConf
	}

	err = errs
	return
}

// parseDaemon creates and starts the Agent with its Behaviours based on the given TOML configuration.
func parseDaemon(filename string) (d *daemon, err error) {
	conf, agentConfig, err := parseConfig(filename)
	if err != nil {
		return
	}

	if err = conf.Logging.Apply(); err != nil {
		return
	}

	relay := conf.Agent.Relay
	if relay == "" {
		timeout, _ := parseDuration("discovery.timeout", conf.Discovery.Timeout, 10*time.Second)
		if relay, err = discovery.Discover(timeout, conf.Discovery.IPv4, conf.Discovery.IPv6); err != nil {
			return
		}
	}

	creds := connection.Credentials{
		Identity:       message.Address(conf.Agent.Identity),
		Password:       conf.Agent.Password,
		VerifySecurity: conf.Agent.VerifySecurity,
	}

	log.WithFields(log.Fields{
		"identity": creds.Identity,
		"relay":    relay,
	}).Info("Starting agent")

	d = &daemon{}
	if d.agent, err = agent.New(creds, connection.WebSocketFactory(relay), agentConfig); err != nil {
		d = nil
		return
	}

	if conf.Ping.Enabled {
		if err = d.agent.AddBehaviour(agent.NewPing(), agent.PingTemplate()); err != nil {
			_ = d.close()
			d = nil
			return
		}
	}

	if conf.Archive.Store != "" {
		d.maxAge, _ = parseDuration("archive.max-age", conf.Archive.MaxAge, 0)

		if d.store, err = storage.NewStore(conf.Archive.Store); err != nil {
			_ = d.close()
			d = nil
			return
		}
		if err = d.agent.AddBehaviour(agent.NewArchive(d.store), nil); err != nil {
			_ = d.close()
			d = nil
			return
		}
	}

	return
}

// close stops the Agent and closes the Store afterwards.
func (d *daemon) close() error {
	var errs error

	if err := d.agent.Stop(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs
}
