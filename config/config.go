// Package config loads the service configuration from YAML files with
// environment variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultPath = "."

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres Postgres `json:"postgres" yaml:"postgres"`

	SecretKey SecretKey `json:"secretKey" yaml:"secretKey"`

	GoogleOAuth GoogleOAuth `json:"googleOAuth" yaml:"googleOAuth"`

	Auth Auth `json:"auth" yaml:"auth"`

	Geolocation Geolocation `json:"geolocation" yaml:"geolocation"`

	Security Security `json:"security" yaml:"security"`

	Mail Mail `json:"mail" yaml:"mail"`

	Sweeper Sweeper `json:"sweeper" yaml:"sweeper"`

	// PubSub configuration for event publishing. Nil disables publishing.
	PubSub *PubSub `json:"pubsub" yaml:"pubsub"`
}

// Log defines the structured logging output.
type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// Postgres defines the primary database connection and its read replicas.
type Postgres struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbName" yaml:"dbName"`
	SSLMode  string `json:"sslMode" yaml:"sslMode"`

	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`

	// ReplicaDSNs are full DSNs for read replicas; reads are routed to them.
	ReplicaDSNs []string `json:"replicaDsns" yaml:"replicaDsns"`
}

// SecretKey holds the signing keys.
type SecretKey struct {
	Token string `json:"token" yaml:"token"`
}

// GoogleOAuth defines the identity-provider verification settings.
type GoogleOAuth struct {
	ClientID string `json:"clientId" yaml:"clientId"`
	// ClientSecret and RedirectURI are not needed for ID token verification.
}

// Auth defines authentication and session lifecycle settings.
type Auth struct {
	BcryptCost int           `json:"bcryptCost" yaml:"bcryptCost"`
	TokenTTL   time.Duration `json:"tokenTtl" yaml:"tokenTtl"`
	SessionTTL time.Duration `json:"sessionTtl" yaml:"sessionTtl"`

	// ReconcileInterval bounds how long a revoked session's token keeps
	// working. Defaults to one minute.
	ReconcileInterval time.Duration `json:"reconcileInterval" yaml:"reconcileInterval"`

	// DiscloseVerificationState opts into telling unverified users to check
	// their inbox instead of hiding whether the account exists.
	DiscloseVerificationState bool `json:"discloseVerificationState" yaml:"discloseVerificationState"`
}

// Geolocation defines the IP-to-location resolution settings: the trusted
// edge headers and the external lookup service.
type Geolocation struct {
	// Endpoint of the HTTP lookup service; empty disables external lookups.
	Endpoint      string        `json:"endpoint" yaml:"endpoint"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	RatePerMinute int           `json:"ratePerMinute" yaml:"ratePerMinute"`

	// TrustedIPHeader names the edge-set client IP header, if the deployment
	// runs behind an edge that sets one.
	TrustedIPHeader string `json:"trustedIpHeader" yaml:"trustedIpHeader"`
	CountryHeader   string `json:"countryHeader" yaml:"countryHeader"`
	CityHeader      string `json:"cityHeader" yaml:"cityHeader"`
	RegionHeader    string `json:"regionHeader" yaml:"regionHeader"`
}

// Security defines the anomaly detection thresholds.
type Security struct {
	// BurstThreshold is the failed-login count that raises an alert.
	// The alert re-fires on each exact multiple.
	BurstThreshold int `json:"burstThreshold" yaml:"burstThreshold"`

	// BurstWindow is the rolling window failures are counted within.
	BurstWindow time.Duration `json:"burstWindow" yaml:"burstWindow"`
}

// Mail defines the outbound notification transport.
type Mail struct {
	// RelayEndpoint is the HTTP mail relay; empty disables delivery.
	RelayEndpoint string `json:"relayEndpoint" yaml:"relayEndpoint"`
}

// Sweeper defines the expired-session sweep schedule.
type Sweeper struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// PubSub defines the event publishing backend.
type PubSub struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub.
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider).
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider).
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider).
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	return LoadWithEnv[Config]("config", "config", "../config", "../../config")
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
