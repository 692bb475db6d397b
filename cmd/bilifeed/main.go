package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
	"github.com/umputun/bilifeed/pkg/pipeline"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"bilifeed.yml" description:"config file path"`

	// fetch/filter overrides
	Type         string `long:"type" description:"feed type filter override: all, video, pgc, article"`
	Pages        int    `long:"pages" description:"max pages override"`
	Keyword      string `long:"keyword" description:"keyword filter override, space-separated terms"`
	NoCache      bool   `long:"no-cache" description:"disable the fetch cache"`
	ExtraHeaders string `long:"extra-headers" description:"summary extra headers as JSON object string"`

	Summarize bool   `short:"s" long:"summarize" description:"summarize every creator group"`
	Creator   string `long:"creator" description:"summarize only this creator id"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.Auth.Cookie, cfg.Auth.SESSDATA, cfg.Summary.APIKey)

	log.Printf("[INFO] starting bilifeed version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}

func run(ctx context.Context, cfg *config.Config, opts Opts) error {
	p, err := pipeline.New(pipeline.Params{Config: cfg, Pause: askContinue})
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck // nothing to do with close error on exit

	groups, warnings, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Println("no posts in the selected range")
		printWarnings(warnings)
		return nil
	}

	printGroups(groups, cfg.Filter.View, cfg.Filter.PageSize)

	for _, group := range groups {
		if !shouldSummarize(group, opts) {
			continue
		}
		result, summaryWarnings := p.Summarize(ctx, group)
		warnings = append(warnings, summaryWarnings...)
		printSummary(group, result)
	}

	printWarnings(warnings)
	return nil
}

func applyOverrides(cfg *config.Config, opts Opts) {
	if opts.Type != "" {
		cfg.Feed.Type = opts.Type
	}
	if opts.Pages > 0 {
		cfg.Feed.Pages = opts.Pages
	}
	if opts.Keyword != "" {
		cfg.Filter.Keyword = opts.Keyword
	}
	if opts.NoCache {
		cfg.Cache.Enabled = false
	}
	if opts.ExtraHeaders != "" {
		headers, err := config.ParseExtraHeaders(opts.ExtraHeaders)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg.Summary.ExtraHeaders = headers
	}
}

func shouldSummarize(group domain.CreatorGroup, opts Opts) bool {
	if opts.Creator != "" {
		return group.CreatorID == opts.Creator
	}
	return opts.Summarize
}

// askContinue is the interactive pause decision between pages
func askContinue(page int) bool {
	fmt.Printf("fetched page %d, continue? [Y/q] ", page)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(answer)) != "q"
}

func printGroups(groups []domain.CreatorGroup, view string, pageSize int) {
	bold := color.New(color.Bold).SprintFunc()
	for _, group := range groups {
		fmt.Printf("%s (%s): %d posts\n", bold(group.CreatorName), group.CreatorID, group.Count)
		if view != "detail" {
			continue
		}
		shown := group.Posts
		if pageSize > 0 && len(shown) > pageSize {
			shown = shown[:pageSize]
		}
		for _, post := range shown {
			title := post.Title
			if title == "" {
				title = post.Text
			}
			fmt.Printf("  %s [%s] %s\n", post.Published.Format("2006-01-02 15:04"), post.Type, title)
		}
		if rest := len(group.Posts) - len(shown); rest > 0 {
			fmt.Printf("  ... and %d more\n", rest)
		}
	}
}

func printSummary(group domain.CreatorGroup, result domain.SummaryResult) {
	header := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s\n", header(fmt.Sprintf("summary for %s (provider: %s, %d sources)",
		group.CreatorName, result.Provider, result.SourceCount)))
	for _, sentence := range result.Sentences {
		if len(sentence.Refs) > 0 {
			fmt.Printf("- %s [%s]\n", sentence.Text, strings.Join(sentence.Refs, ", "))
			continue
		}
		fmt.Printf("- %s\n", sentence.Text)
	}
}

func printWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	warn := color.New(color.FgRed).SprintFunc()
	for _, w := range warnings {
		fmt.Printf("%s %s\n", warn("warning:"), w)
	}
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
