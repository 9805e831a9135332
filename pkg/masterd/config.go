// Package masterd runs the master server daemon.
package masterd

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// Config contains the daemon configuration. The prf struct tag is the
// variable name in the preferences file; the env tag is the environment
// variable that overrides it. Preferences-file variable names are matched
// case-insensitively.
type Config struct {
	// Name of this master server instance.
	Name string `prf:"name" env:"MASTERD_NAME"`

	// Region the master server is in (free-form, informational).
	Region string `prf:"region" env:"MASTERD_REGION"`

	// Addresses to listen and send on. The preferences file may repeat the
	// variable; the env var is comma-separated. An entry without a port
	// uses Port.
	Address []string `prf:"address" env:"MASTERD_ADDRESS"`

	// UDP port to listen on, applied to Address entries without one.
	Port uint32 `prf:"port" env:"MASTERD_PORT"`

	// Seconds since a server's last info response before it is delisted.
	Heartbeat uint32 `prf:"heartbeat" env:"MASTERD_HEARTBEAT"`

	// Log verbosity, 0 (quiet) through 5 (debug).
	Verbosity uint32 `prf:"verbosity" env:"MASTERD_VERBOSITY"`

	// Prefix log messages with timestamps when nonzero.
	Timestamp uint32 `prf:"timestamp" env:"MASTERD_TIMESTAMP"`

	FloodMaxTickets   uint32 `prf:"flood::MaxTickets" env:"MASTERD_FLOOD_MAX_TICKETS"`
	FloodResetTime    uint32 `prf:"flood::TicketsResetTime" env:"MASTERD_FLOOD_TICKETS_RESET_TIME"`
	FloodBanTime      uint32 `prf:"flood::BanTime" env:"MASTERD_FLOOD_BAN_TIME"`
	FloodForgetTime   uint32 `prf:"flood::ForgetTime" env:"MASTERD_FLOOD_FORGET_TIME"`
	FloodBadMsgTicket uint32 `prf:"flood::TicksOnBadMessage" env:"MASTERD_FLOOD_TICKS_ON_BAD_MESSAGE"`

	// Populate the registry with synthetic servers at startup.
	TestingMode uint32 `prf:"testingMode" env:"MASTERD_TESTING_MODE"`

	// Require clients to complete a session challenge before list queries
	// are served.
	ChallengeMode uint32 `prf:"challengeMode" env:"MASTERD_CHALLENGE_MODE"`

	// Cap on servers packed into one list response; zero means no cap
	// beyond the page limit.
	MaxServersInResponse uint32 `prf:"maxServersInResponse" env:"MASTERD_MAX_SERVERS_IN_RESPONSE"`

	// Cap on pages per list response; zero means the protocol limit.
	MaxPacketsInResponse uint32 `prf:"maxPacketsInResponse" env:"MASTERD_MAX_PACKETS_IN_RESPONSE"`

	MaxSessionsPerPeer    uint32 `prf:"maxSessionsPerPeer" env:"MASTERD_MAX_SESSIONS_PER_PEER"`
	SessionTimeoutSeconds uint32 `prf:"sessionTimeoutSeconds" env:"MASTERD_SESSION_TIMEOUT_SECONDS"`

	// Address to serve Prometheus metrics on; empty disables the endpoint.
	MetricsAddr string `prf:"metricsAddr" env:"MASTERD_METRICS_ADDR"`

	// Path of the pid file; empty disables it.
	PIDFile string `prf:"pidfile" env:"MASTERD_PIDFILE"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		Name:                  "PBMS",
		Region:                "Earth",
		Address:               []string{"0.0.0.0"},
		Port:                  28002,
		Heartbeat:             180,
		Verbosity:             4,
		Timestamp:             1,
		FloodMaxTickets:       300,
		FloodResetTime:        60,
		FloodBanTime:          600,
		FloodForgetTime:       900,
		FloodBadMsgTicket:     50,
		MaxSessionsPerPeer:    10,
		SessionTimeoutSeconds: 120,
		PIDFile:               "./masterd.pid",
	}
}

// prfEntity describes one preferences-file variable (or a section header)
// for parsing and for generating the commented default file. Field is the
// Config field name; empty for sections.
type prfEntity struct {
	Field string
	Name  string
	Doc   string
}

var prfEntities = []prfEntity{
	{Doc: "General Server Settings"},
	{Field: "Name", Name: "name",
		Doc: "Name of the Master Server. Default: \"PBMS\""},
	{Field: "Region", Name: "region",
		Doc: "Region the Master Server is in. Default: \"Earth\""},
	{Field: "Address", Name: "address",
		Doc: "Address that the daemon listens and sends on. Repeat the variable to\n" +
			"bind more than one address; an IPv6 bind is kept best-effort.\n" +
			"Default: \"0.0.0.0\" for all IPv4 interfaces."},
	{Field: "Port", Name: "port",
		Doc: "Port number that the daemon listens and sends on. Default: 28002"},
	{Field: "Heartbeat", Name: "heartbeat",
		Doc: "How long since the last heartbeat from a server before it is deleted.\n" +
			"Default: 180 (3min)"},
	{Field: "Verbosity", Name: "verbosity",
		Doc: "Verbosity of log output. Default: 4\n" +
			"   0 - No Messages (except initial startup messages)\n" +
			"   1 - Error Messages\n" +
			"   2 - Warning Messages\n" +
			"   3 - Informative Messages\n" +
			"   4 - Verbose [miscellaneous] Messages\n" +
			"   5 - Debug Messages (warning: message flood)\n\n" +
			" The chosen message output level will include all those above it."},
	{Field: "Timestamp", Name: "timestamp",
		Doc: "Enable prefixing timestamps to messages. Set to 0 (zero) to not timestamp.\n" +
			"Default: 1 (Enable)"},

	{Doc: "Flood Control Settings\n\n" +
		"Flood control uses a ticket based approach to deal with remote hosts\n" +
		"that are either game clients continously querying us or malicious parties\n" +
		"attempting to cause a Denial of Service attack by keeping the master busy.\n\n" +
		"A remote host is ticketed for every packet it sends to this master server.\n" +
		"Bad or unknown packets incur an extra penalty so offenders get banned a lot\n" +
		"sooner. Once maximum tickets is reached the remote host is temporarily\n" +
		"banned and ignored until the ban expires. A remote host is forgotten about\n" +
		"after $flood::ForgetTime seconds of silence, except while banned; once\n" +
		"unbanned the forget time restarts so they are not forgotten too soon."},
	{Field: "FloodMaxTickets", Name: "flood::MaxTickets",
		Doc: "Maximum number of tickets before a remote host is banned.\nDefault: 300"},
	{Field: "FloodResetTime", Name: "flood::TicketsResetTime",
		Doc: "Time in seconds until the tickets placed on a remote host is reset.\n" +
			"Default: 60  (1 minute)"},
	{Field: "FloodBanTime", Name: "flood::BanTime",
		Doc: "Time in seconds for how long a remote host is banned once reaching max tickets.\n" +
			"Default: 600 (10 minutes)"},
	{Field: "FloodForgetTime", Name: "flood::ForgetTime",
		Doc: "Time in seconds after last hearing from a remote before it's forgotten about.\n" +
			"Default: 900 (15 minutes)"},
	{Field: "FloodBadMsgTicket", Name: "flood::TicksOnBadMessage",
		Doc: "Number of tickets placed against remote host for sending bad or\n" +
			"unknown formatted packets.\nDefault: 50"},

	{Doc: "Session Settings"},
	{Field: "ChallengeMode", Name: "challengeMode",
		Doc: "Require clients to complete a challenge handshake before list queries\n" +
			"are answered. Defeats source-address spoofing. Default: 0 (off)"},
	{Field: "MaxSessionsPerPeer", Name: "maxSessionsPerPeer",
		Doc: "Maximum concurrent query sessions per remote host, capped at 10.\nDefault: 10"},
	{Field: "SessionTimeoutSeconds", Name: "sessionTimeoutSeconds",
		Doc: "Seconds of idle time before a query session expires.\nDefault: 120"},

	{Doc: "Miscellaneous Settings"},
	{Field: "TestingMode", Name: "testingMode",
		Doc: "Populate the server list with synthetic test servers at startup and\n" +
			"keep them listed forever. Default: 0 (off)"},
	{Field: "MaxServersInResponse", Name: "maxServersInResponse",
		Doc: "Maximum servers packed into one list response. 0 means no cap beyond\n" +
			"the packet limit. Default: 0"},
	{Field: "MaxPacketsInResponse", Name: "maxPacketsInResponse",
		Doc: "Maximum packets per list response. 0 means the protocol limit of 254.\n" +
			"Default: 0"},
	{Field: "MetricsAddr", Name: "metricsAddr",
		Doc: "Address to serve Prometheus metrics on, e.g. \"127.0.0.1:9090\".\n" +
			"Empty disables the endpoint. Default: disabled"},
	{Field: "PIDFile", Name: "pidfile",
		Doc: "Path of the process id file. Empty disables it.\nDefault: \"./masterd.pid\""},
}

// LoadPrefs reads the preferences file at path into c. When the file does
// not exist, a commented default file is written in its place and c is left
// at the defaults. Unknown variables are collected and returned so the
// caller can log them once logging is up.
func (c *Config) LoadPrefs(path string) (unknown []string, created bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("read preferences: %w", err)
		}
		if err := c.CreatePrefs(path); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	// repeated address variables replace the default list, not append to it
	addressSeen := false

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] != '$' {
			continue
		}
		name, value := line[1:], ""
		if i := strings.IndexAny(name, " \t"); i >= 0 {
			name, value = name[:i], name[i+1:]
		}
		value = strings.ReplaceAll(strings.TrimSpace(value), "\"", "")

		ent := lookupEntity(name)
		if ent == nil {
			unknown = append(unknown, name)
			continue
		}
		fv := reflect.ValueOf(c).Elem().FieldByName(ent.Field)
		switch fv.Interface().(type) {
		case string:
			fv.SetString(value)
		case uint32:
			v, _ := strconv.ParseUint(value, 10, 64)
			fv.SetUint(v & 0xFFFFFFFF)
		case []string:
			if !addressSeen {
				fv.Set(reflect.ValueOf([]string{}))
				addressSeen = true
			}
			fv.Set(reflect.Append(fv, reflect.ValueOf(value)))
		}
	}
	return unknown, false, nil
}

func lookupEntity(name string) *prfEntity {
	for i := range prfEntities {
		if prfEntities[i].Field != "" && strings.EqualFold(prfEntities[i].Name, name) {
			return &prfEntities[i]
		}
	}
	return nil
}

// CreatePrefs writes a fully commented preferences file with the current
// values of c. The write is atomic so a crash cannot leave a half-written
// file behind.
func (c *Config) CreatePrefs(path string) error {
	const rule = "#-----------------------------------------------------------------------------"
	var b strings.Builder
	b.WriteString("#=============================================================================\n")
	b.WriteString("# Pushbutton Labs' Torque Master Server Preferences/Configuration File\n")
	b.WriteString("#=============================================================================\n\n")

	cv := reflect.ValueOf(c).Elem()
	for _, ent := range prfEntities {
		if ent.Field == "" {
			b.WriteString("\n" + rule + "\n")
		}
		for _, dl := range strings.Split(ent.Doc, "\n") {
			b.WriteString("# " + dl + "\n")
		}
		if ent.Field == "" {
			b.WriteString(rule + "\n\n")
			continue
		}
		switch v := cv.FieldByName(ent.Field).Interface().(type) {
		case string:
			fmt.Fprintf(&b, "$%s %q\n\n", ent.Name, v)
		case uint32:
			fmt.Fprintf(&b, "$%s %d\n\n", ent.Name, v)
		case []string:
			for _, s := range v {
				fmt.Fprintf(&b, "$%s %q\n", ent.Name, s)
			}
			b.WriteString("\n")
		}
	}
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// UnmarshalEnv overlays MASTERD_* environment variables onto c. Variables
// come from es ("KEY=VALUE" form, as in os.Environ); unset variables leave
// the current values alone.
func (c *Config) UnmarshalEnv(es []string) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "MASTERD_") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}
	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		key, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}
		val, exists := em[key]
		if !exists {
			continue
		}
		delete(em, key)
		switch cvf := cv.FieldByName(ctf.Name); cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case uint32:
			if v, err := strconv.ParseUint(val, 10, 32); err == nil {
				cvf.SetUint(v)
			} else {
				return fmt.Errorf("env %s: parse %q: %w", key, val, err)
			}
		case []string:
			if val == "" {
				cvf.Set(reflect.ValueOf([]string{}))
			} else {
				cvf.Set(reflect.ValueOf(strings.Split(val, ",")))
			}
		}
	}
	for key := range em {
		return fmt.Errorf("unknown environment variable %q", key)
	}
	return nil
}

// Clamp enforces the valid ranges on the loaded configuration. Out-of-range
// values are forced back rather than rejected so a bad preferences file
// never prevents startup.
func (c *Config) Clamp() {
	if c.Port > 65535 {
		c.Port = 28002
	}
	if c.Heartbeat > 3600 {
		c.Heartbeat = 3600
	}
	if c.Verbosity > 5 {
		c.Verbosity = 5
	}
	if c.MaxSessionsPerPeer > 10 {
		c.MaxSessionsPerPeer = 10
	}
	if len(c.Address) == 0 {
		c.Address = []string{"0.0.0.0"}
	}
}

// BindAddrs returns the listen addresses with the default port applied to
// entries that lack one. Bare IPv6 literals get bracketed.
func (c *Config) BindAddrs() []string {
	out := make([]string, 0, len(c.Address))
	for _, a := range c.Address {
		if _, _, err := net.SplitHostPort(a); err == nil {
			out = append(out, a)
			continue
		}
		if strings.Contains(a, ":") {
			a = "[" + a + "]"
		}
		out = append(out, fmt.Sprintf("%s:%d", a, c.Port))
	}
	return out
}
