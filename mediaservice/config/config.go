// Copyright 2025 The mosaic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mosaic-io/mosaic/mediaservice/storage"
	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// Config is the media service configuration.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"logLevel"`

	TempDir        string `mapstructure:"tempDir"`
	MaxUploadBytes int64  `mapstructure:"maxUploadBytes"`

	MaxConcurrent int           `mapstructure:"maxConcurrent"`
	StaleSlotAge  time.Duration `mapstructure:"staleSlotAge"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`

	DedupBackend string        `mapstructure:"dedupBackend"`
	DedupTTL     time.Duration `mapstructure:"dedupTTL"`
	RedisAddr    string        `mapstructure:"redisAddr"`

	MaxImageDim   int   `mapstructure:"maxImageDim"`
	ThumbSize     int   `mapstructure:"thumbSize"`
	MaxVideoBytes int64 `mapstructure:"maxVideoBytes"`

	VerifyAttempts  uint64        `mapstructure:"verifyAttempts"`
	VerifyBaseDelay time.Duration `mapstructure:"verifyBaseDelay"`

	Minio storage.MinioConfig `mapstructure:"minio"`
	S3    storage.S3Config    `mapstructure:"s3"`
}

var (
	once sync.Once

	mu sync.RWMutex

	config Config
)

// InitConfig loads the configuration exactly once.
func InitConfig() error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch()
	})
	return initErr
}

// Get returns a copy of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

// LoadAndWatch reads the config file, applies defaults and flags, and
// reloads on file change.
func LoadAndWatch() error {
	pflag.String("addr", "", "HTTP service address (e.g., '127.0.0.1:9090')")
	pflag.String("logLevel", "", "Log level (debug, info, warn, error, fatal)")
	pflag.String("tempDir", "", "Directory for request-scoped temp payloads")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind pflags: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/mosaic/")

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			mlog.Infof("Config file not found, using defaults.")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	viper.SetDefault("addr", "127.0.0.1:8080")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("tempDir", "./upload-tmp")
	viper.SetDefault("maxUploadBytes", int64(64<<20))
	viper.SetDefault("maxConcurrent", 2)
	viper.SetDefault("staleSlotAge", 5*time.Minute)
	viper.SetDefault("sweepInterval", time.Minute)
	viper.SetDefault("dedupBackend", "memory")
	viper.SetDefault("dedupTTL", 24*time.Hour)
	viper.SetDefault("redisAddr", "localhost:6379")
	viper.SetDefault("maxImageDim", 2000)
	viper.SetDefault("thumbSize", 300)
	viper.SetDefault("maxVideoBytes", int64(512<<20))
	viper.SetDefault("verifyAttempts", 5)
	viper.SetDefault("verifyBaseDelay", 200*time.Millisecond)

	mu.Lock()
	if err := viper.Unmarshal(&config); err != nil {
		mu.Unlock()
		return fmt.Errorf("the initial configuration cannot be decoded into the struct: %w", err)
	}
	mu.Unlock()

	viper.OnConfigChange(func(e fsnotify.Event) {
		mlog.Infof("Config file changed: %s, reloading...", e.Name)

		mu.Lock()
		defer mu.Unlock()

		if err := viper.Unmarshal(&config); err != nil {
			mlog.Errorf("Error while reloading config: %v", err)
			return
		}
		newLogLevel, err := mlog.ParseLevel(config.LogLevel)
		if err != nil {
			mlog.Warnf("New log level in config is invalid: %v. Keeping previous level.", err)
		} else {
			mlog.SetLevel(newLogLevel)
			mlog.Infof("Log level reloaded successfully to: %s", config.LogLevel)
		}
	})
	viper.WatchConfig()

	return nil
}
