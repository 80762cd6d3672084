package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr               string
	DefaultSimID       string
	ConfigFile         string
	DefaultWidth       float64
	DefaultHeight      float64
	AutoStart          bool
	SnapshotDir        string
	SnapshotEveryTicks int64
	LogLevel           string
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string) error
}

var resolvers = []configResolver{
	{
		flagName:    "addr",
		envVarName:  "BOUNCE_ADDR",
		defaultVal:  ":8080",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		flagName:    "sim-id",
		envVarName:  "BOUNCE_SIM_ID",
		defaultVal:  "",
		description: "if set, create a simulation with this ID at startup",
		setter:      func(c *ServerConfig, v string) error { c.DefaultSimID = v; return nil },
	},
	{
		flagName:    "config-file",
		envVarName:  "BOUNCE_CONFIG_FILE",
		defaultVal:  "",
		description: "optional YAML physics config, merged over the built-in defaults",
		setter:      func(c *ServerConfig, v string) error { c.ConfigFile = v; return nil },
	},
	{
		flagName:    "width",
		envVarName:  "BOUNCE_WIDTH",
		defaultVal:  "800",
		description: "field width of the startup simulation",
		setter: func(c *ServerConfig, v string) (err error) {
			c.DefaultWidth, err = strconv.ParseFloat(v, 64)
			return err
		},
	},
	{
		flagName:    "height",
		envVarName:  "BOUNCE_HEIGHT",
		defaultVal:  "600",
		description: "field height of the startup simulation",
		setter: func(c *ServerConfig, v string) (err error) {
			c.DefaultHeight, err = strconv.ParseFloat(v, 64)
			return err
		},
	},
	{
		flagName:    "autostart",
		envVarName:  "BOUNCE_AUTOSTART",
		defaultVal:  "true",
		description: "start ticking the startup simulation immediately",
		setter: func(c *ServerConfig, v string) (err error) {
			c.AutoStart, err = strconv.ParseBool(v)
			return err
		},
	},
	{
		flagName:    "snapshot-dir",
		envVarName:  "BOUNCE_SNAPSHOT_DIR",
		defaultVal:  "./data",
		description: "Directory where simulation snapshots are stored",
		setter:      func(c *ServerConfig, v string) error { c.SnapshotDir = v; return nil },
	},
	{
		flagName:    "snapshot-every-ticks",
		envVarName:  "BOUNCE_SNAPSHOT_EVERY_TICKS",
		defaultVal:  "0",
		description: "How often to write snapshots (in number of ticks); 0 disables periodic snapshots",
		setter: func(c *ServerConfig, v string) (err error) {
			c.SnapshotEveryTicks, err = strconv.ParseInt(v, 10, 64)
			return err
		},
	},
	{
		flagName:    "log-level",
		envVarName:  "BOUNCE_LOG_LEVEL",
		defaultVal:  "info",
		description: "Log level: debug, info, warn, error",
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
}

// loadServerConfig resolves every option from, in order of precedence, the
// command line, the environment and the built-in default.
func loadServerConfig(fs *flag.FlagSet, args []string, getenv func(string) string) (ServerConfig, error) {
	cfg := ServerConfig{}

	flagVars := make(map[string]*string, len(resolvers))
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		if err := resolver.setter(&cfg, value); err != nil {
			return ServerConfig{}, fmt.Errorf("invalid value for %s: %q: %w", resolver.flagName, value, err)
		}
	}

	if cfg.SnapshotEveryTicks < 0 {
		return ServerConfig{}, fmt.Errorf("snapshot-every-ticks must not be negative, got %d", cfg.SnapshotEveryTicks)
	}

	return cfg, nil
}

// loadServerConfigFromProcess reads the process flags and environment.
func loadServerConfigFromProcess() (ServerConfig, error) {
	return loadServerConfig(flag.CommandLine, os.Args[1:], os.Getenv)
}
