// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix KUBEFLUME_)
//  3. Config file (config.yaml in . or /etc/kubeflume/)
//  4. Compiled defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ConfigOption struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

const (
	KeyServerAddress        = "server.address"
	KeyServerAllowedOrigins = "server.allowed_origins"
	KeyServerOIDCIssuerURL  = "server.oidc.issuer_url"
	KeyServerOIDCClientID   = "server.oidc.client_id"
)

const (
	KeyAgentCluster                 = "agent.cluster"
	KeyAgentKubeconfig              = "agent.kubeconfig"
	KeyAgentStateDir                = "agent.state_dir"
	KeyAgentMinServerVersion        = "agent.min_server_version"
	KeyAgentDebugEnabled            = "agent.debug.enabled"
	KeyAgentDiscoverySuccessTTL     = "agent.discovery.success_ttl"
	KeyAgentDiscoveryFailureTTL     = "agent.discovery.failure_ttl"
	KeyAgentDiscoveryEvictionPeriod = "agent.discovery.eviction_period"
	KeyAgentWatchStrategy           = "agent.watch.strategy"
	KeyAgentWatchExpiry             = "agent.watch.expiry"
	KeyAgentWatchDressEvents        = "agent.watch.dress_events"
	KeyAgentWatchIdleTimeout        = "agent.watch.idle_timeout"
	KeyAgentWatchReconnectInterval  = "agent.watch.reconnect_interval"
	KeyAgentWatches                 = "agent.watches"
	KeyAgentKafkaBrokers            = "agent.kafka.brokers"
	KeyAgentKafkaTopic              = "agent.kafka.topic"
	KeyAgentLeaderElectionEnabled   = "agent.leader_election.enabled"
	KeyAgentLeaderElectionNamespace = "agent.leader_election.namespace"
	KeyAgentLeaderElectionLeaseName = "agent.leader_election.lease_name"
)

var ServerOptions = []ConfigOption{
	{Key: KeyServerAddress, Flag: flag(KeyServerAddress), Default: ":8299", Description: "Status server listen address"},
	{Key: KeyServerAllowedOrigins, Flag: flag(KeyServerAllowedOrigins), Default: []string{}, Description: "Status server allowed origins"},
	{Key: KeyServerOIDCIssuerURL, Flag: flag(KeyServerOIDCIssuerURL), Default: "", Description: "OIDC issuer url (empty disables authentication)"},
	{Key: KeyServerOIDCClientID, Flag: flag(KeyServerOIDCClientID), Default: "kubeflume", Description: "OIDC client id"},
}

var AgentOptions = []ConfigOption{
	{Key: KeyAgentCluster, Flag: flag(KeyAgentCluster), Default: "default", Description: "Cluster name recorded in checkpoints and messages"},
	{Key: KeyAgentKubeconfig, Flag: flag(KeyAgentKubeconfig), Default: "", Description: "Kubeconfig path (empty uses in-cluster config)"},
	{Key: KeyAgentStateDir, Flag: flag(KeyAgentStateDir), Default: "/var/lib/kubeflume", Description: "Directory for persisted watch checkpoints"},
	{Key: KeyAgentMinServerVersion, Flag: flag(KeyAgentMinServerVersion), Default: "", Description: "Minimum supported cluster version (empty disables the gate)"},
	{Key: KeyAgentDebugEnabled, Flag: flag(KeyAgentDebugEnabled), Default: false, Description: "Agent debug logging"},
	{Key: KeyAgentDiscoverySuccessTTL, Flag: flag(KeyAgentDiscoverySuccessTTL), Default: time.Hour, Description: "How long successful discovery answers stay cached"},
	{Key: KeyAgentDiscoveryFailureTTL, Flag: flag(KeyAgentDiscoveryFailureTTL), Default: 5 * time.Minute, Description: "How long failed discovery lookups stay cached"},
	{Key: KeyAgentDiscoveryEvictionPeriod, Flag: flag(KeyAgentDiscoveryEvictionPeriod), Default: 10 * time.Minute, Description: "Discovery cache eviction period"},
	{Key: KeyAgentWatchStrategy, Flag: flag(KeyAgentWatchStrategy), Default: "CURRENT", Description: "Default initial resourceVersion strategy (CURRENT, NULL, ZERO, RESTORE-NULL, RESTORE-CURRENT)"},
	{Key: KeyAgentWatchExpiry, Flag: flag(KeyAgentWatchExpiry), Default: "CURRENT", Description: "Default recovery strategy after a 410 Gone (CURRENT, NULL, ZERO)"},
	{Key: KeyAgentWatchDressEvents, Flag: flag(KeyAgentWatchDressEvents), Default: true, Description: "Normalise core/v1 Event payloads before emitting"},
	{Key: KeyAgentWatchIdleTimeout, Flag: flag(KeyAgentWatchIdleTimeout), Default: 5 * time.Minute, Description: "Reconnect watches idle for this long"},
	{Key: KeyAgentWatchReconnectInterval, Flag: flag(KeyAgentWatchReconnectInterval), Default: 10 * time.Second, Description: "How often pending reconnects are attempted"},
	{Key: KeyAgentKafkaBrokers, Flag: flag(KeyAgentKafkaBrokers), Default: []string{}, Description: "Kafka broker addresses (empty logs events instead)"},
	{Key: KeyAgentKafkaTopic, Flag: flag(KeyAgentKafkaTopic), Default: "kubeflume-events", Description: "Kafka topic for watch events"},
	{Key: KeyAgentLeaderElectionEnabled, Flag: flag(KeyAgentLeaderElectionEnabled), Default: false, Description: "Run watches only while holding the leader lease"},
	{Key: KeyAgentLeaderElectionNamespace, Flag: flag(KeyAgentLeaderElectionNamespace), Default: "", Description: "Namespace of the leader lease (empty autodetects)"},
	{Key: KeyAgentLeaderElectionLeaseName, Flag: flag(KeyAgentLeaderElectionLeaseName), Default: "kubeflume-agent-leader", Description: "Name of the leader lease"},
}

// WatchSpec is one configured watch session, unmarshalled from the
// agent.watches list. A target is either a ready list/watch endpoint
// or a kind (plus optional api_version and namespace) that is resolved
// into one at startup. Zero values inherit the agent.watch.* defaults.
type WatchSpec struct {
	Name              string        `mapstructure:"name"`
	Endpoint          string        `mapstructure:"endpoint"`
	APIVersion        string        `mapstructure:"api_version"`
	Kind              string        `mapstructure:"kind"`
	Namespace         string        `mapstructure:"namespace"`
	Strategy          string        `mapstructure:"strategy"`
	Expiry            string        `mapstructure:"expiry"`
	DressEvents       *bool         `mapstructure:"dress_events"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range ServerOptions {
		v.SetDefault(o.Key, o.Default)
	}

	for _, o := range AgentOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kubeflume/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("KUBEFLUME")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

func (c *Config) BindFlags(fs *pflag.FlagSet, options []ConfigOption) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) ServerAddress() string {
	return c.v.GetString(KeyServerAddress) // KUBEFLUME_SERVER_ADDRESS
}

func (c *Config) ServerAllowedOrigins() []string {
	return c.v.GetStringSlice(KeyServerAllowedOrigins) // KUBEFLUME_SERVER_ALLOWED_ORIGINS
}

func (c *Config) ServerOIDCIssuerURL() string {
	return c.v.GetString(KeyServerOIDCIssuerURL) // KUBEFLUME_SERVER_OIDC_ISSUER_URL
}

func (c *Config) ServerOIDCClientID() string {
	return c.v.GetString(KeyServerOIDCClientID) // KUBEFLUME_SERVER_OIDC_CLIENT_ID
}

func (c *Config) AgentCluster() string {
	return c.v.GetString(KeyAgentCluster) // KUBEFLUME_AGENT_CLUSTER
}

func (c *Config) AgentKubeconfig() string {
	return c.v.GetString(KeyAgentKubeconfig) // KUBEFLUME_AGENT_KUBECONFIG
}

func (c *Config) AgentStateDir() string {
	return c.v.GetString(KeyAgentStateDir) // KUBEFLUME_AGENT_STATE_DIR
}

func (c *Config) AgentMinServerVersion() string {
	return c.v.GetString(KeyAgentMinServerVersion) // KUBEFLUME_AGENT_MIN_SERVER_VERSION
}

func (c *Config) AgentDebugEnabled() bool {
	return c.v.GetBool(KeyAgentDebugEnabled) // KUBEFLUME_AGENT_DEBUG_ENABLED
}

func (c *Config) AgentDiscoverySuccessTTL() time.Duration {
	return c.v.GetDuration(KeyAgentDiscoverySuccessTTL) // KUBEFLUME_AGENT_DISCOVERY_SUCCESS_TTL
}

func (c *Config) AgentDiscoveryFailureTTL() time.Duration {
	return c.v.GetDuration(KeyAgentDiscoveryFailureTTL) // KUBEFLUME_AGENT_DISCOVERY_FAILURE_TTL
}

func (c *Config) AgentDiscoveryEvictionPeriod() time.Duration {
	return c.v.GetDuration(KeyAgentDiscoveryEvictionPeriod) // KUBEFLUME_AGENT_DISCOVERY_EVICTION_PERIOD
}

func (c *Config) AgentWatchStrategy() string {
	return c.v.GetString(KeyAgentWatchStrategy) // KUBEFLUME_AGENT_WATCH_STRATEGY
}

func (c *Config) AgentWatchExpiry() string {
	return c.v.GetString(KeyAgentWatchExpiry) // KUBEFLUME_AGENT_WATCH_EXPIRY
}

func (c *Config) AgentWatchDressEvents() bool {
	return c.v.GetBool(KeyAgentWatchDressEvents) // KUBEFLUME_AGENT_WATCH_DRESS_EVENTS
}

func (c *Config) AgentWatchIdleTimeout() time.Duration {
	return c.v.GetDuration(KeyAgentWatchIdleTimeout) // KUBEFLUME_AGENT_WATCH_IDLE_TIMEOUT
}

func (c *Config) AgentWatchReconnectInterval() time.Duration {
	return c.v.GetDuration(KeyAgentWatchReconnectInterval) // KUBEFLUME_AGENT_WATCH_RECONNECT_INTERVAL
}

// AgentWatches returns the configured watch sessions. The list is
// file-only; it has no flag or environment form.
func (c *Config) AgentWatches() ([]WatchSpec, error) {
	var specs []WatchSpec
	if err := c.v.UnmarshalKey(KeyAgentWatches, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", KeyAgentWatches, err)
	}
	return specs, nil
}

func (c *Config) AgentKafkaBrokers() []string {
	return c.v.GetStringSlice(KeyAgentKafkaBrokers) // KUBEFLUME_AGENT_KAFKA_BROKERS
}

func (c *Config) AgentKafkaTopic() string {
	return c.v.GetString(KeyAgentKafkaTopic) // KUBEFLUME_AGENT_KAFKA_TOPIC
}

func (c *Config) AgentLeaderElectionEnabled() bool {
	return c.v.GetBool(KeyAgentLeaderElectionEnabled) // KUBEFLUME_AGENT_LEADER_ELECTION_ENABLED
}

func (c *Config) AgentLeaderElectionNamespace() string {
	return c.v.GetString(KeyAgentLeaderElectionNamespace) // KUBEFLUME_AGENT_LEADER_ELECTION_NAMESPACE
}

func (c *Config) AgentLeaderElectionLeaseName() string {
	return c.v.GetString(KeyAgentLeaderElectionLeaseName) // KUBEFLUME_AGENT_LEADER_ELECTION_LEASE_NAME
}

func flag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "server-")
	flag = strings.TrimPrefix(flag, "agent-")
	return flag
}
