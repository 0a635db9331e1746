package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dredge/internal/blob"
	"dredge/internal/config"
	"dredge/internal/core"
	"dredge/internal/infra/fetch"
)

type globalOptions struct {
	projectPath string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "dredge",
		Short:         "Explore pairwise differential-expression test results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.projectPath, "project", "p", "project.yaml", "project file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug|info|warn|error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "text|json")

	root.AddCommand(
		newServeCmd(opts),
		newBinsCmd(opts),
		newTableCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// newLogger builds the slog handler selected by --log-format and --log-level.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("log format %q not supported", format)
	}
}

// session is the state shared by every subcommand.
type session struct {
	logger  *slog.Logger
	file    *config.Project
	project *core.Project
}

func (o *globalOptions) open(cmd *cobra.Command) (*session, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
	if err != nil {
		return nil, err
	}
	file, err := config.Load(o.projectPath)
	if err != nil {
		return nil, err
	}
	project, err := file.Build(cmd.Context())
	if err != nil {
		return nil, err
	}
	logger.Debug("project loaded", "key", project.Key(), "treatments", len(project.Treatments()))
	return &session{logger: logger, file: file, project: project}, nil
}

// fetcher reads over HTTP when the project lives on a web server and from
// the configured blob store otherwise.
func (s *session) fetcher(ctx context.Context) (core.Fetcher, error) {
	base := strings.ToLower(s.project.BaseURL())
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return fetch.NewHTTP(nil, "")
	}
	store, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return fetch.NewBlob(store), nil
}

func (s *session) loader(ctx context.Context, opts ...core.LoaderOption) (*core.Loader, error) {
	f, err := s.fetcher(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]core.LoaderOption{
		core.WithLogger(s.logger),
		core.WithCollisionPolicy(s.file.CollisionPolicy()),
	}, opts...)
	return core.NewLoader(s.project, f, opts...), nil
}

// pair returns the treatments named by args, or the project's default pair.
func (s *session) pair(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	return s.project.DefaultPair()
}
