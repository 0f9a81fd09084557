// Command scaff-init is the executable published in the init command
// package. The CLI launches it with the JSON argument array as its only
// argument.
package main

import (
	"os"

	"github.com/scaff-cli/scaff/internal/command"
	"github.com/scaff-cli/scaff/internal/config"
	"github.com/scaff-cli/scaff/internal/initcmd"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/registry"
)

func main() {
	logger := command.NewLogger()

	cfg, err := config.Load(config.New())
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		logger.Fatal("preparing directories", "err", err)
	}

	client := registry.New(registry.WithLogger(logger), registry.WithDefaultRegistry(cfg.RegistryURL()))
	cache := pkgcache.New(cfg.TemplateCacheDir(), client,
		pkgcache.NewTarballInstaller(client, pkgcache.WithInstallerLogger(logger)),
		pkgcache.WithRegistry(cfg.RegistryURL()),
		pkgcache.WithLogger(logger),
	)

	cmd := initcmd.New(initcmd.NewCacheTemplates(cache), initcmd.NewLinePrompter(os.Stdin, os.Stderr), logger)
	command.Main(cmd, logger)
}
