package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-github/v63/github"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/sync/errgroup"

	"github.com/reposcribe/reposcribe/internal/cache/artifact"
	"github.com/reposcribe/reposcribe/internal/cache/diffcache"
	"github.com/reposcribe/reposcribe/internal/cache/index"
	"github.com/reposcribe/reposcribe/internal/clone"
	"github.com/reposcribe/reposcribe/internal/config"
	"github.com/reposcribe/reposcribe/internal/diffengine"
	"github.com/reposcribe/reposcribe/internal/httpapi"
	"github.com/reposcribe/reposcribe/internal/ingest"
	"github.com/reposcribe/reposcribe/internal/logger"
	"github.com/reposcribe/reposcribe/internal/wsapi"
)

// serveCmd starts the HTTP and WebSocket listeners (spec.md §6).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reposcribe HTTP and WebSocket servers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.ReadConfigFromViper[config.Config](viper.GetViper())
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		log := logger.FromFlags(cfg.LoggingConfig)

		notifyCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx := log.WithContext(notifyCtx)

		cacheDir := cfg.Cache.Dir
		if cacheDir == "" {
			cacheDir, err = index.DefaultDir()
			if err != nil {
				return fmt.Errorf("resolve cache dir: %w", err)
			}
		}

		cloneDriver := clone.New("", clone.NewCredentialSelector())
		if cfg.Clone.TimeoutSeconds > 0 {
			cloneDriver.Timeout = time.Duration(cfg.Clone.TimeoutSeconds) * time.Second
		}
		artifactCache := artifact.New(cfg.Cache.ArtifactMaxBytes)
		indexMaxAge := time.Duration(cfg.Cache.IndexMaxAgeHours) * time.Hour
		indexCache, err := index.Open(cacheDir, cfg.Cache.IndexMaxBytes, indexMaxAge)
		if err != nil {
			return fmt.Errorf("open index cache: %w", err)
		}
		diffCache, err := diffcache.New(cfg.Cache.DiffCapacity)
		if err != nil {
			return fmt.Errorf("build diff cache: %w", err)
		}

		ing := ingest.New(cloneDriver, artifactCache, indexCache).WithGitHub(githubClient())
		gl, err := gitlabClient()
		if err != nil {
			return fmt.Errorf("build gitlab client: %w", err)
		}
		eng := diffengine.New(cloneDriver, diffCache, githubClient(), gl)

		httpSrv := &http.Server{
			Addr:    cfg.HTTPServer.GetAddress(),
			Handler: httpapi.New(ing, eng),
		}
		wsSrv := &http.Server{
			Addr:    cfg.WSServer.GetAddress(),
			Handler: wsapi.New(ing),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", httpSrv.Addr).Msg("starting HTTP server")
			return runUntilShutdown(gctx, httpSrv)
		})
		g.Go(func() error {
			log.Info().Str("addr", wsSrv.Addr).Msg("starting WebSocket server")
			return runUntilShutdown(gctx, wsSrv)
		})

		return g.Wait()
	},
}

// runUntilShutdown serves srv until ctx is canceled (SIGINT/SIGTERM),
// then shuts it down gracefully.
func runUntilShutdown(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

// githubClient builds an authenticated go-github client when
// GITHUB_TOKEN is set, and returns nil otherwise. PR diffing
// (diffengine.Engine.PullRequest) and gist ingestion need a non-nil
// client.
func githubClient() *github.Client {
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return github.NewClient(nil).WithAuthToken(tok)
	}
	return nil
}

func gitlabClient() (*gitlab.Client, error) {
	tok := os.Getenv("GITLAB_TOKEN")
	if tok == "" {
		return nil, nil
	}
	return gitlab.NewClient(tok)
}

func init() {
	RootCmd.AddCommand(serveCmd)
	if err := config.RegisterServerFlags(viper.GetViper(), serveCmd.Flags()); err != nil {
		panic(err)
	}
}
