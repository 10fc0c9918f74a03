// Package settings handles the parsing and validation of the gateway
// configuration from command-line arguments and environment variables.
package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/warden-ac/warden/device"
	"github.com/warden-ac/warden/logger"
)

// Settings represents the complete application configuration.
type Settings struct {
	Connection Connection    `group:"Connection Options" namespace:"conn" env-namespace:"WARDEN_CONN"`
	Admission  Admission     `group:"Admission Options" namespace:"admission" env-namespace:"WARDEN_ADMISSION"`
	Discord    Discord       `group:"Discord Options" namespace:"discord" env-namespace:"WARDEN_DISCORD"`
	Storage    Storage       `group:"Storage Options" namespace:"db" env-namespace:"WARDEN_DB"`
	Sentry     Sentry        `group:"Sentry Options" namespace:"sentry" env-namespace:"WARDEN_SENTRY"`
	Logger     logger.Config `group:"Logger Options" namespace:"log" env-namespace:"WARDEN_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Connection holds the game-server connection configuration.
type Connection struct {
	RemoteAddress string        `short:"r" long:"remote" env:"REMOTE" description:"Address of the Bedrock server to attach to" default:"127.0.0.1:19132"`
	TokenFile     string        `long:"token-file" env:"TOKEN_FILE" description:"Path to the cached Live token used for Xbox Live sign-in" default:"token.json"`
	ShortBackoff  time.Duration `long:"short-backoff" env:"SHORT_BACKOFF" description:"Reconnect delay after a generic transport error" default:"5s"`
	LongBackoff   time.Duration `long:"long-backoff" env:"LONG_BACKOFF" description:"Reconnect delay after a duplicate-session conflict" default:"30s"`
	DialTimeout   time.Duration `long:"dial-timeout" env:"DIAL_TIMEOUT" description:"Timeout for one connection attempt" default:"30s"`
}

// Admission holds the admission-pipeline configuration.
type Admission struct {
	Trusted       []string      `long:"trusted" env:"TRUSTED" env-delim:"," description:"Names exempt from alt and device checks"`
	AltDetection  bool          `long:"alt-detection" env:"ALT_DETECTION" description:"Enable alt-account detection via Xbox Live metrics"`
	MinSocial     int           `long:"min-social" env:"MIN_SOCIAL" description:"Alt threshold: gamerscore" default:"100"`
	MinFriends    int           `long:"min-friends" env:"MIN_FRIENDS" description:"Alt threshold: friend count" default:"50"`
	MinFollowers  int           `long:"min-followers" env:"MIN_FOLLOWERS" description:"Alt threshold: follower count" default:"50"`
	BannedDevices []string      `long:"banned-device" env:"BANNED_DEVICES" env-delim:"," description:"Device names refused outright (e.g. 'Windows 10')"`
	DeviceCheck   bool          `long:"device-check" env:"DEVICE_CHECK" description:"Enable device-spoof verification against Xbox Live presence"`
	LeaveGrace    time.Duration `long:"leave-grace" env:"LEAVE_GRACE" description:"Roster absence required before a departure is confirmed" default:"7s"`
	CommandPrefix string        `long:"command-prefix" env:"COMMAND_PREFIX" description:"Chat prefix diverted to command-usage notifications" default:"!"`
	Ranks         []string      `long:"rank" env:"RANKS" env-delim:"," description:"Playtime rank tiers as <duration>=<tag>, e.g. 24h=veteran"`
}

// Discord holds the webhook endpoints for each notification channel.
type Discord struct {
	ModerationURL string `long:"moderation-url" env:"MODERATION_URL" description:"Webhook for admission and security notices"`
	ChatURL       string `long:"chat-url" env:"CHAT_URL" description:"Webhook for relayed player chat"`
	StatusURL     string `long:"status-url" env:"STATUS_URL" description:"Webhook for connection status notices"`
}

// Storage holds database configuration.
type Storage struct {
	Path string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"warden.db"`
}

// Sentry holds crash-reporting configuration.
type Sentry struct {
	DSN string `long:"dsn" env:"DSN" description:"Sentry DSN, empty disables reporting"`
}

// RankTier is one parsed playtime rank threshold.
type RankTier struct {
	Playtime time.Duration
	Tag      string
}

// RankTiers parses the configured rank list, sorted by ascending playtime.
// Malformed entries are skipped.
func (a Admission) RankTiers() []RankTier {
	tiers := make([]RankTier, 0, len(a.Ranks))
	for _, r := range a.Ranks {
		dur, tag, ok := strings.Cut(r, "=")
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(dur))
		if err != nil || tag == "" {
			continue
		}
		tiers = append(tiers, RankTier{Playtime: d, Tag: strings.TrimSpace(tag)})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Playtime < tiers[j].Playtime })
	return tiers
}

// UnknownDevices returns the entries of the banned-device list that match
// no known platform name, typically typos like "Win10" for "Windows 10".
// A misspelled entry would otherwise silently never ban anyone.
func (a Admission) UnknownDevices() []string {
	var unknown []string
	for _, name := range a.BannedDevices {
		if _, ok := device.ParseName(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Trusted reports whether the name is on the static trusted list.
func (a Admission) IsTrusted(name string) bool {
	for _, t := range a.Trusted {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the
// help flag is invoked.
func Parse() *Settings {
	var cfg Settings
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if ok := isHelp(err, &flagsErr); ok {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if unknown := cfg.Admission.UnknownDevices(); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "unknown device names in banned-device list: %s\n", strings.Join(unknown, ", "))
		os.Exit(1)
	}

	return &cfg
}

func isHelp(err error, out **flags.Error) bool {
	fe, ok := err.(*flags.Error)
	if !ok {
		return false
	}
	*out = fe
	return fe.Type == flags.ErrHelp
}
