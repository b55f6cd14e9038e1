package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-mngr/mngr/internal/artifact"
	"github.com/go-mngr/mngr/internal/config"
	"github.com/go-mngr/mngr/internal/metrics"
	"github.com/go-mngr/mngr/internal/plugin"
	"github.com/go-mngr/mngr/internal/release"
	"github.com/go-mngr/mngr/internal/session"
	"github.com/go-mngr/mngr/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "mngr",
		Short:   "Interactive manager for plugins released on GitHub",
		Version: version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(log *logrus.Logger, cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version
	level, err := cfg.GetLogLevel()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.Infof("starting mngr (version=%s)", cfg.Version)

	st, err := store.Open(cfg.RegistryFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error(err)
		}
	}()
	reg, created, err := st.LoadOrCreate()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if out == os.Stdout {
		out = color.Output
	}
	if created {
		_, _ = color.New(color.FgGreen).Fprintf(out, "Task successful. mngr made '%s'.\n", st.Path())
	}

	ghClient, err := cfg.CreateGitHubClient(cfg.Token(reg.APIToken))
	if err != nil {
		return err
	}
	files := artifact.NewManager(afero.NewOsFs(), cfg.PluginsDir, cfg.CreateDownloader())
	if err := files.CheckDir(); err != nil {
		_, _ = color.New(color.FgYellow).Fprintf(out, "%v. Updates and removals will fail until it is created.\n", err)
	}

	if err := metrics.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	defer metrics.Unregister()

	ctx := context.Background()
	manager := plugin.NewManager(log, reg, release.NewClient(ghClient), files, cfg.GitHubURL)
	s := session.New(log, manager, st, cmd.InOrStdin(), out)
	if err := s.Run(ctx); err != nil {
		return err
	}

	rows, err := metrics.Summary()
	if err != nil {
		log.Warnf("failed to collect metrics: %v", err)
		return nil
	}
	downloaded, err := metrics.DownloadedBytes()
	if err != nil {
		log.Warnf("failed to collect metrics: %v", err)
	}
	session.PrintSummary(out, rows, downloaded)
	return nil
}
