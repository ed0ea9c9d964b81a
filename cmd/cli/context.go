//go:build !js && !wasm

package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/internal/config"
	"github.com/himanishpuri/TubeTuner/pkg/logger"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
)

type commandContext struct {
	configFlag string
	dbFlag     string
	jsonFlag   bool
	verbose    bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if db := strings.TrimSpace(c.dbFlag); db != "" {
			cfg.Storage.DBPath = db
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withService opens the service for the duration of fn.
func (c *commandContext) withService(cmd *cobra.Command, fn func(tubetuner.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	level := logger.WARN
	if c.verbose {
		level = logger.DEBUG
	}
	log := logger.New(logger.Config{
		Level:  level,
		Prefix: "tuner",
		Output: cmd.ErrOrStderr(),
	})

	svc, err := tubetuner.NewService(append(cfg.ServiceOptions(), tubetuner.WithLogger(log))...)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
