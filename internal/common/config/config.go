// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Chain         ChainConfig        `mapstructure:"chain"`
	Wallet        WalletConfig       `mapstructure:"wallet"`
	Ipfs          IpfsConfig         `mapstructure:"ipfs"`
	Encryption    EncryptionConfig   `mapstructure:"encryption"`
	Indexer       IndexerConfig      `mapstructure:"indexer"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Submission    SubmissionConfig   `mapstructure:"submission"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

// ChainConfig describes the chain the service submits transactions to.
type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	ChainName       string `mapstructure:"chain_name"`
	RegistryAddress string `mapstructure:"registry_address"`
	ReceiptTimeout  int    `mapstructure:"receipt_timeout"` // milliseconds
}

// WalletConfig holds the signing key for the grantee session.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"` // hex, no 0x prefix
}

// IpfsConfig points at the pinning service and public gateway.
type IpfsConfig struct {
	PinningURL string `mapstructure:"pinning_url"`
	GatewayURL string `mapstructure:"gateway_url"`
	JWT        string `mapstructure:"jwt"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// EncryptionConfig points at the threshold-encryption network.
type EncryptionConfig struct {
	URL         string `mapstructure:"url"`
	AuthTimeout int    `mapstructure:"auth_timeout"` // milliseconds
	Timeout     int    `mapstructure:"timeout"`      // milliseconds
}

// IndexerConfig points at the metadata indexer's GraphQL endpoint.
type IndexerConfig struct {
	URL         string `mapstructure:"url"`
	Timeout     int    `mapstructure:"timeout"`       // milliseconds
	SyncTimeout int    `mapstructure:"sync_timeout"`  // milliseconds
	PollEvery   int    `mapstructure:"poll_interval"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TrackingConfig holds the error-tracking collector settings.
type TrackingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds settings for terminal-state notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool   `mapstructure:"enabled"`
		ToPhone string `mapstructure:"to_phone"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// SubmissionConfig tunes the state machine.
type SubmissionConfig struct {
	PhaseTimeout int `mapstructure:"phase_timeout"` // milliseconds, per phase
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
