package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/docbridge/internal/failure"
)

const (
	SourceFiles = "files"
	SourceMongo = "mongo"

	EnvEncryptionKey = "DOCBRIDGE_ENCRYPTION_KEY"
	EnvMongoURI      = "DOCBRIDGE_MONGO_URI"

	defaultStorePath = "docbridge.db"
	defaultMongoPort = 27017
)

type StoreConfig struct {
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"`
	ForeignKeys   bool   `yaml:"foreign_keys"`
}

type SchemaConfig struct {
	Path   string `yaml:"path"`
	Inline string `yaml:"inline"`
}

type ImportConfig struct {
	Source    string `yaml:"source"`
	Directory string `yaml:"directory"`
}

type ExportConfig struct {
	Target    string `yaml:"target"`
	Directory string `yaml:"directory"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	AuthDatabase string `yaml:"auth_database"`
}

type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Schema SchemaConfig `yaml:"schema"`
	Import ImportConfig `yaml:"import"`
	Export ExportConfig `yaml:"export"`
	Mongo  MongoConfig  `yaml:"mongo"`
}

// LoadEnv loads a .env file from the working directory when one exists.
func LoadEnv() bool {
	return godotenv.Load() == nil
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, failure.Config(fmt.Errorf("failed to read config file: %w", err))
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, failure.Config(fmt.Errorf("failed to parse config: %w", err))
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, failure.Config(err)
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvEncryptionKey); key != "" {
		c.Store.EncryptionKey = key
	}
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		c.Mongo.URI = uri
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = defaultStorePath
	}
	c.Import.Source = NormalizeEndpoint(c.Import.Source)
	c.Export.Target = NormalizeEndpoint(c.Export.Target)
	if c.Mongo.Port == 0 {
		c.Mongo.Port = defaultMongoPort
	}
}

func (c *Config) Validate() error {
	for _, endpoint := range []string{c.Import.Source, c.Export.Target} {
		if endpoint != SourceFiles && endpoint != SourceMongo {
			return fmt.Errorf("unsupported document endpoint: %s", endpoint)
		}
	}
	return nil
}

func (c *Config) GetMongoURI() string {
	if c.Mongo.URI != "" {
		return c.Mongo.URI
	}

	host := c.Mongo.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Mongo.Port
	if port == 0 {
		port = defaultMongoPort
	}

	var credentials string
	if c.Mongo.Username != "" {
		credentials = url.QueryEscape(c.Mongo.Username)
		if c.Mongo.Password != "" {
			credentials = fmt.Sprintf("%s:%s", credentials, url.QueryEscape(c.Mongo.Password))
		}
		credentials += "@"
	}

	targetDatabase := strings.TrimSpace(c.Mongo.Database)
	if targetDatabase != "" {
		targetDatabase = "/" + targetDatabase
	}

	uri := fmt.Sprintf("mongodb://%s%s:%d%s", credentials, host, port, targetDatabase)

	if c.Mongo.AuthDatabase != "" {
		uri = fmt.Sprintf("%s?authSource=%s", uri, url.QueryEscape(c.Mongo.AuthDatabase))
	}

	return uri
}

// NormalizeEndpoint maps the accepted spellings of an import source or
// export target onto SourceFiles or SourceMongo. Unknown values are returned
// as given so Validate can reject them.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.ToLower(strings.TrimSpace(endpoint))
	switch endpoint {
	case "", "file", "files", "dir", "directory":
		return SourceFiles
	case "mongo", "mongodb":
		return SourceMongo
	default:
		return endpoint
	}
}
