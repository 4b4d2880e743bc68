// SPDX-License-Identifier: LGPL-2.1-only

// Package config parses the daemon's `-f <config-file>` ini file.
package config

import "github.com/go-ini/ini"

// Daemon is the daemon-wide configuration loaded at startup.
type Daemon struct {
	DatastoreDir   string `ini:"datastore_dir"`
	AuditDBPath    string `ini:"audit_db_path"`
	YangDir        string `ini:"yang_dir"`
	SocketPath     string `ini:"socket_path"`
	JSONSocketPath string `ini:"json_socket_path"`
	Transport      string `ini:"transport"`
	ListenAddr     string `ini:"listen_addr"`
	LogLevel       string `ini:"log_level"`
	PluginsFile    string `ini:"plugins_file"`
	AutolockMode   bool   `ini:"autolock_mode"`
}

func defaults() Daemon {
	return Daemon{
		DatastoreDir:   "/var/lib/yconfd",
		AuditDBPath:    "/var/lib/yconfd/audit.db",
		YangDir:        "/usr/share/yconfd/yang",
		SocketPath:     "/run/yconfd/main.sock",
		JSONSocketPath: "/run/yconfd/json.sock",
		Transport:      "UNIX",
		LogLevel:       "error",
		PluginsFile:    "/etc/yconfd/plugins.yaml",
		AutolockMode:   false,
	}
}

// Load reads path as an ini file into Daemon, starting from sane defaults
// so an entirely empty or partial file is still a valid configuration.
func Load(path string) (Daemon, error) {
	d := defaults()
	if path == "" {
		return d, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return d, err
	}
	if err := f.Section("").MapTo(&d); err != nil {
		return d, err
	}
	return d, nil
}
