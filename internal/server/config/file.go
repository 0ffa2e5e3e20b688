package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/medaccount/internal/flagx"
	"github.com/dmitrijs2005/medaccount/internal/timex"
	"gopkg.in/yaml.v2"
)

// FileConfig is the on-disk shape of the configuration. It uses
// timex.Duration for interval fields, which accepts both "15m" strings and
// integer nanoseconds, and pointers for booleans so an absent key can be told
// apart from false.
//
// Only fields present in the file are copied into the runtime Config.
type FileConfig struct {
	GRPCAddr               string         `json:"grpc_addr" yaml:"grpc_addr"`
	HTTPAddr               string         `json:"http_addr" yaml:"http_addr"`
	DatabaseDSN            string         `json:"database_dsn" yaml:"database_dsn"`
	RedisAddr              string         `json:"redis_addr" yaml:"redis_addr"`
	AMQPURL                string         `json:"amqp_url" yaml:"amqp_url"`
	SecretKey              string         `json:"secret_key" yaml:"secret_key"`
	AccessTTL              timex.Duration `json:"access_ttl" yaml:"access_ttl"`
	RefreshTTL             timex.Duration `json:"refresh_ttl" yaml:"refresh_ttl"`
	RotateRefresh          *bool          `json:"rotate_refresh" yaml:"rotate_refresh"`
	RevokeOnPasswordChange *bool          `json:"revoke_on_password_change" yaml:"revoke_on_password_change"`
	BcryptCost             int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	PurgeInterval          timex.Duration `json:"purge_interval" yaml:"purge_interval"`
	S3RootUser             string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword         string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket               string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region               string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint         string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	LogFormat              string         `json:"log_format" yaml:"log_format"`
	LogLevel               string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads configuration values from the file named by the -c or
// -config flag. Files ending in .yaml or .yml are read as YAML, everything
// else as JSON. Without the flag nothing is loaded. A missing or invalid file
// panics.
func parseFile(config *Config) {

	// try flags
	configFile := flagx.ConfigFileFlag(os.Args[1:])

	// nothing to load
	if configFile == "" {
		return
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTTL.Duration > 0 {
		config.AccessTTL = c.AccessTTL.Duration
	}
	if c.RefreshTTL.Duration > 0 {
		config.RefreshTTL = c.RefreshTTL.Duration
	}
	if c.PurgeInterval.Duration > 0 {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.RotateRefresh != nil {
		config.RotateRefresh = *c.RotateRefresh
	}
	if c.RevokeOnPasswordChange != nil {
		config.RevokeOnPasswordChange = *c.RevokeOnPasswordChange
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
