// Package funnelmgr wires together the pieces of a s3funnel run: the viper
// configuration, the logger, and the configured object storage backend.
package funnelmgr

import (
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
	"github.com/serverlessresearch/s3funnel/pkg/miniostore"
	"github.com/serverlessresearch/s3funnel/pkg/s3store"
)

type Manager struct {
	Store  funnel.ObjectStore
	Logger funnel.Logger
	Cfg    *viper.Viper
}

// NewManager builds a manager from the user's options. Recognized options:
//
//	"config-file" (string): explicit config file path
//	"logger" (funnel.Logger): replaces the default logrus logger
//	"overrides" (map[string]interface{}): config values set with highest
//	precedence, used for command-line flag overrides
func NewManager(userCfg map[string]interface{}) (*Manager, error) {
	var err error
	mgr := &Manager{}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(funnel.Logger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must satisfy funnel.Logger")
		}
	} else {
		mgr.Logger = logrus.New()
	}

	if overridesRaw, ok := userCfg["overrides"]; ok {
		if overrides, ok := overridesRaw.(map[string]interface{}); ok {
			for key, value := range overrides {
				mgr.Cfg.Set(key, value)
			}
		} else {
			return nil, errors.New("option 'overrides' must be a map[string]interface{}")
		}
	}

	if err = mgr.initStore(); err != nil {
		return nil, err
	}

	return mgr, nil
}

func (self *Manager) Destroy() {
	// Nothing to tear down today; stores hold only pooled HTTP connections.
}

// PoolConfig assembles the worker pool bounds from the resolved config.
func (self *Manager) PoolConfig() funnel.PoolConfig {
	return funnel.PoolConfig{
		Threads:    self.Cfg.GetInt("threads"),
		Timeout:    time.Duration(self.Cfg.GetInt("timeout")) * time.Second,
		Retries:    self.Cfg.GetInt("retries"),
		RetryDelay: self.Cfg.GetDuration("retry-delay"),
	}
}

func (self *Manager) initConfig(cfgPath *string) error {
	// This is a private viper context just for s3funnel (so as not to
	// conflict with the importer's usage).
	self.Cfg = viper.New()

	self.Cfg.SetDefault("default-provider", "aws")
	self.Cfg.SetDefault("providers.aws.objstore", "s3")
	self.Cfg.SetDefault("providers.minio.objstore", "minio")
	self.Cfg.SetDefault("threads", 1)
	self.Cfg.SetDefault("timeout", 0)
	self.Cfg.SetDefault("retries", funnel.DefaultRetries)
	self.Cfg.SetDefault("retry-delay", "500ms")

	// Order of precedence: flags (overrides), ENV, config file, defaults.
	self.Cfg.BindEnv("service.objstore.s3.region", "AWS_DEFAULT_REGION")
	self.Cfg.BindEnv("access-key", "AWS_ACCESS_KEY_ID")
	self.Cfg.BindEnv("secret-key", "AWS_SECRET_ACCESS_KEY")
	self.Cfg.SetDefault("service.objstore.s3.region", "us-east-1")

	if cfgPath != nil {
		// Use config file from the flag.
		self.Cfg.SetConfigFile(*cfgPath)
		if err := self.Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		return nil
	}

	// Default search path is ~/.s3funnel/s3funnel.* then ./s3funnel.*
	// (* can be json, yaml, etc). Having no config file at all is fine;
	// the defaults and environment cover the common case.
	if home, err := homedir.Dir(); err == nil {
		self.Cfg.AddConfigPath(home + "/.s3funnel")
	}
	self.Cfg.AddConfigPath(".")
	self.Cfg.SetConfigName("s3funnel")
	if err := self.Cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to load config")
		}
	}
	return nil
}

func (self *Manager) initStore() error {
	providerName := self.Cfg.GetString("default-provider")
	if providerName == "" {
		return errors.New("no default provider in configuration")
	}

	serviceName := self.Cfg.GetString("providers." + providerName + ".objstore")
	if serviceName == "" {
		return errors.New("provider \"" + providerName + "\" does not provide an object storage service")
	}

	timeout := time.Duration(self.Cfg.GetInt("timeout")) * time.Second

	// The --endpoint flag overrides whichever service is selected.
	endpoint := func(key string) string {
		if ep := self.Cfg.GetString("endpoint"); ep != "" {
			return ep
		}
		return self.Cfg.GetString(key)
	}

	var err error
	switch serviceName {
	case "s3":
		self.Store, err = s3store.New(
			self.Logger.WithField("module", "objstore.s3"),
			s3store.Config{
				Region:    self.Cfg.GetString("service.objstore.s3.region"),
				Endpoint:  endpoint("service.objstore.s3.endpoint"),
				AccessKey: self.Cfg.GetString("access-key"),
				SecretKey: self.Cfg.GetString("secret-key"),
				Insecure:  self.Cfg.GetBool("insecure"),
				Timeout:   timeout,
			})
	case "minio":
		self.Store, err = miniostore.New(
			self.Logger.WithField("module", "objstore.minio"),
			miniostore.Config{
				Endpoint:  endpoint("service.objstore.minio.endpoint"),
				Region:    self.Cfg.GetString("service.objstore.minio.region"),
				AccessKey: self.Cfg.GetString("access-key"),
				SecretKey: self.Cfg.GetString("secret-key"),
				Insecure:  self.Cfg.GetBool("insecure"),
				Timeout:   timeout,
			})
	default:
		return errors.New("unrecognized object storage service: " + serviceName)
	}

	if err != nil {
		return errors.Wrap(err, "failed to initialize service "+serviceName)
	}
	return nil
}
