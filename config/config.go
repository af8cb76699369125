// Package config loads the server's TOML configuration file the way the
// teacher's agent config does: environment variables of the form $VAR or
// ${VAR} are substituted into the raw bytes before the influxdata/toml
// parser ever sees them, and the result is unmarshaled onto a typed
// struct via toml.UnmarshalTable.
package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/influxdata/toml"
	"github.com/influxdata/toml/ast"
)

var envVarRe = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

var envVarEscaper = strings.NewReplacer(
	`"`, `\"`,
	`\`, `\\`,
)

// Config is the full set of server-wide settings read from goredis.toml
// (spec.md's ambient "configuration" concern, expanded per SPEC_FULL.md).
// Field names match the TOML keys (influxdata/toml lower-cases them).
type Config struct {
	Bind           string `toml:"bind"`
	Port           int    `toml:"port"`
	Databases      int    `toml:"databases"`
	Shards         int    `toml:"shards"`
	RequirePass    string `toml:"requirepass"`
	MaxMemory      string `toml:"maxmemory"`
	MaxMemoryPolicy string `toml:"maxmemory_policy"`

	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`

	AppendOnly      bool   `toml:"appendonly"`
	AppendFilename  string `toml:"appendfilename"`
	AppendFsync     string `toml:"appendfsync"`
	Dir             string `toml:"dir"`
	DBFilename      string `toml:"dbfilename"`
	Save            string `toml:"save"`

	SlowlogLogSlowerThan int64 `toml:"slowlog_log_slower_than"`
	SlowlogMaxLen        int   `toml:"slowlog_max_len"`

	mu      sync.RWMutex
	dynamic map[string]string
}

// Default returns the built-in defaults, applied before any TOML file or
// CLI flag overrides them.
func Default() *Config {
	return &Config{
		Bind:                 "127.0.0.1",
		Port:                 6379,
		Databases:            16,
		Shards:               16,
		MaxMemoryPolicy:      "noeviction",
		LogLevel:             "info",
		AppendFilename:       "appendonly.aof",
		AppendFsync:          "everysec",
		Dir:                  ".",
		DBFilename:           "dump.rdb",
		Save:                 "3600 1 300 100 60 10000",
		SlowlogLogSlowerThan: 10000,
		SlowlogMaxLen:        128,
		dynamic:              make(map[string]string),
	}
}

// Load reads path, applying environment-variable substitution the same
// way the teacher's agent config does, and unmarshals it onto a
// Default()-initialized Config.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config file %s: %w", path, err)
	}
	tbl, err := parseWithEnv(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	if err := toml.UnmarshalTable(tbl, c); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	c.dynamic = make(map[string]string)
	return c, nil
}

func parseWithEnv(contents []byte) (*ast.Table, error) {
	contents = trimBOM(contents)
	for _, m := range envVarRe.FindAllSubmatch(contents, -1) {
		if len(m) != 3 {
			continue
		}
		name := m[1]
		if name == nil {
			name = m[2]
		}
		if name == nil {
			continue
		}
		val, ok := os.LookupEnv(strings.TrimPrefix(string(name), "$"))
		if ok {
			contents = bytes.Replace(contents, m[0], []byte(envVarEscaper.Replace(val)), 1)
		}
	}
	return toml.Parse(contents)
}

func trimBOM(f []byte) []byte {
	return bytes.TrimPrefix(f, []byte("\xef\xbb\xbf"))
}

// The remaining methods implement command.ConfigStore so CONFIG GET/SET
// can reach in-memory overrides without a restart (spec.md component L).
// Only a deliberately small, well-known set of keys is mutable at
// runtime; everything else requires editing the TOML file and
// restarting, same as real Redis's non-dynamic parameters.

func (c *Config) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch name {
	case "requirepass":
		return c.RequirePass, true
	case "maxmemory-policy":
		return c.MaxMemoryPolicy, true
	case "maxmemory":
		return c.MaxMemory, true
	case "appendonly":
		return strconv.FormatBool(c.AppendOnly), true
	case "appendfsync":
		return c.AppendFsync, true
	case "slowlog-log-slower-than":
		return strconv.FormatInt(c.SlowlogLogSlowerThan, 10), true
	case "slowlog-max-len":
		return strconv.Itoa(c.SlowlogMaxLen), true
	case "databases":
		return strconv.Itoa(c.Databases), true
	case "save":
		return c.Save, true
	default:
		v, ok := c.dynamic[name]
		return v, ok
	}
}

func (c *Config) Set(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case "requirepass":
		c.RequirePass = value
	case "maxmemory-policy":
		c.MaxMemoryPolicy = value
	case "maxmemory":
		c.MaxMemory = value
	case "appendfsync":
		c.AppendFsync = value
	case "slowlog-log-slower-than":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("argument couldn't be parsed into an integer")
		}
		c.SlowlogLogSlowerThan = n
	case "slowlog-max-len":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("argument couldn't be parsed into an integer")
		}
		c.SlowlogMaxLen = n
	case "save":
		c.Save = value
	default:
		if c.dynamic == nil {
			c.dynamic = make(map[string]string)
		}
		c.dynamic[name] = value
	}
	return nil
}

func (c *Config) Names(pattern string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := []string{
		"requirepass", "maxmemory-policy", "maxmemory", "appendonly",
		"appendfsync", "slowlog-log-slower-than", "slowlog-max-len", "databases", "save",
	}
	for k := range c.dynamic {
		all = append(all, k)
	}
	if pattern == "" || pattern == "*" {
		return all
	}
	var out []string
	for _, k := range all {
		if matched, _ := globLikeMatch(pattern, k); matched {
			out = append(out, k)
		}
	}
	return out
}

// globLikeMatch supports the subset of glob syntax CONFIG GET actually
// needs in practice: an exact match, or a trailing "*" matching any suffix
// (so a bare "*" matches every name). A "*" elsewhere, "?" and "[...]" are
// compared literally.
func globLikeMatch(pattern, name string) (bool, error) {
	if pattern == name {
		return true, nil
	}
	if strings.Contains(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}
