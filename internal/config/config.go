package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every runtime knob for the auction service. Values come from
// command-line flags, overridden by BIDMASTER_* environment variables.
type Config struct {
	Port      string
	Database  string
	JWTSecret string
	TokenTTL  time.Duration

	BidCooldown   time.Duration
	BidExtension  time.Duration
	LogRetention  int
	SweepInterval time.Duration
	SweepEnabled  bool
}

// Load parses flags once and resolves the effective configuration.
func Load() Config {
	pflag.String("port", "8080", "HTTP listen port")
	pflag.String("database", "auction.db", "sqlite database path or DSN")
	pflag.String("jwt-secret", "bidmaster-secret-key", "HS256 signing secret")
	pflag.Duration("token-ttl", 24*time.Hour, "JWT lifetime")

	pflag.Duration("bid-cooldown", 15*time.Second, "minimum interval between bids by the same bidder on the same item")
	pflag.Duration("bid-extension", 2*time.Minute, "anti-snipe end time extension applied on every accepted bid")
	pflag.Int("log-retention", 100, "maximum number of audit log entries kept")
	pflag.Duration("sweep-interval", time.Minute, "how often the lifecycle sweep closes expired items")
	pflag.Bool("sweep-enabled", true, "run the background sweep that closes expired items")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BIDMASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return Config{
		Port:          viper.GetString("port"),
		Database:      viper.GetString("database"),
		JWTSecret:     viper.GetString("jwt-secret"),
		TokenTTL:      viper.GetDuration("token-ttl"),
		BidCooldown:   viper.GetDuration("bid-cooldown"),
		BidExtension:  viper.GetDuration("bid-extension"),
		LogRetention:  viper.GetInt("log-retention"),
		SweepInterval: viper.GetDuration("sweep-interval"),
		SweepEnabled:  viper.GetBool("sweep-enabled"),
	}
}
