package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/go-github/v63/github"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reposcribe/reposcribe/internal/cache/artifact"
	"github.com/reposcribe/reposcribe/internal/cache/index"
	"github.com/reposcribe/reposcribe/internal/clone"
	"github.com/reposcribe/reposcribe/internal/emitter"
	"github.com/reposcribe/reposcribe/internal/filterpolicy"
	"github.com/reposcribe/reposcribe/internal/ingest"
	"github.com/reposcribe/reposcribe/internal/sourceref"
)

// progressSink prints one line per file to stderr unless --quiet is
// set; the artifact body itself always comes from Artifact.Content,
// never from the Sink's Write calls (spec.md §9).
type progressSink struct {
	quiet bool
}

func (progressSink) Write([]byte) (int, error) { return 0, nil }

func (s progressSink) OnStart(fileCount int) {
	if !s.quiet {
		fmt.Fprintf(os.Stderr, "ingesting %d candidate files...\n", fileCount)
	}
}

func (s progressSink) OnFile(path string, _ int64, _ bool) {
	if !s.quiet {
		fmt.Fprintf(os.Stderr, "  %s\n", path)
	}
}

func (progressSink) OnComplete(emitter.Artifact) {}
func (progressSink) OnError(error)               {}

func runIngest(cmd *cobra.Command, args []string) error {
	cacheDir, err := index.DefaultDir()
	if err != nil {
		return fmt.Errorf("resolve cache dir: %w", err)
	}
	indexCache, err := index.Open(cacheDir, index.DefaultMaxSize, index.DefaultMaxAge)
	if err != nil {
		return fmt.Errorf("open index cache: %w", err)
	}

	if viper.GetBool("clear-cache") {
		if err := indexCache.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	}
	if viper.GetBool("cache-stats") {
		stats := indexCache.Stats()
		fmt.Printf("cache dir:    %s\n", stats.Dir)
		fmt.Printf("entries:      %d\n", stats.EntryCount)
		fmt.Printf("total bytes:  %d\n", stats.TotalBytes)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a source argument is required (or use --clear-cache / --cache-stats)")
	}

	ref, err := sourceref.Parse(args[0])
	if err != nil {
		return err
	}

	if ref.Kind == sourceref.KindGist {
		return ingestGistToOutput(cmd, ref.GistID)
	}

	preset, ok := filterpolicy.ParsePreset(viper.GetString("preset"))
	if viper.GetBool("raw") {
		preset = filterpolicy.PresetRaw
	} else if !ok {
		return fmt.Errorf("unknown preset %q", viper.GetString("preset"))
	}

	branch := viper.GetString("branch")
	if branch == "" {
		branch = ref.Branch
	}
	path := viper.GetString("path")
	if path == "" {
		path = ref.Path
	}

	cloneDriver := clone.New("", clone.NewCredentialSelector())
	artifactCache := artifact.New(artifact.DefaultMaxSize)
	ing := ingest.New(cloneDriver, artifactCache, indexCache)

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Minute)
	defer cancel()

	sink := progressSink{quiet: viper.GetBool("quiet")}
	art, err := ing.IngestWithSink(ctx, ingest.Request{
		URL:          ref.URL,
		Branch:       branch,
		Preset:       preset,
		Includes:     viper.GetStringSlice("include"),
		Excludes:     viper.GetStringSlice("exclude"),
		MaxFileSize:  viper.GetInt64("max-size"),
		PathPrefix:   path,
		NoCache:      viper.GetBool("no-cache"),
		ForceRefresh: viper.GetBool("force-refresh"),
	}, sink)
	if err != nil {
		return err
	}

	return writeArtifact(art)
}

// ingestGistToOutput renders a gist through the GitHub API directly,
// bypassing Clone/Walker/Emitter entirely (SPEC_FULL.md §12).
func ingestGistToOutput(cmd *cobra.Command, gistID string) error {
	gh := githubClientFromEnv()
	if gh == nil {
		return fmt.Errorf("gist ingestion requires GITHUB_TOKEN to be set")
	}

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(baseCtx, 2*time.Minute)
	defer cancel()

	ing := ingest.NewGistOnly(gh)
	sink := progressSink{quiet: viper.GetBool("quiet")}
	art, err := ing.IngestGist(ctx, gistID, sink)
	if err != nil {
		return err
	}
	return writeArtifact(art)
}

func writeArtifact(art emitter.Artifact) error {
	if viper.GetBool("stats-only") {
		fmt.Printf("files:          %d\n", art.FileCount)
		fmt.Printf("total bytes:    %d\n", art.TotalSize)
		fmt.Printf("token estimate: %d\n", art.TokenEstimate)
		return nil
	}

	output := viper.GetString("output")
	if output == "" {
		_, err := os.Stdout.Write(art.Content)
		return err
	}
	return os.WriteFile(output, art.Content, 0o644)
}

func githubClientFromEnv() *github.Client {
	tok := os.Getenv("GITHUB_TOKEN")
	if tok == "" {
		return nil
	}
	return github.NewClient(nil).WithAuthToken(tok)
}
