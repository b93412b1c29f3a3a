package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dabozzhub/pbj/internal/common"
	"github.com/dabozzhub/pbj/internal/config"
	"github.com/dabozzhub/pbj/internal/engine"
	"github.com/urfave/cli/v2"
)

// makeBuilder loads the project file and wires the engine for one invocation.
func makeBuilder(c *cli.Context) (*engine.Builder, error) {
	logFile := c.String("log-filename")
	if err := engine.MakeLoggerEngine(logFile, c.Int64("log-verbosity"), logFile != "" && logFile != "stderr"); err != nil {
		return nil, err
	}

	target := c.String("target")
	if target != engine.TargetDebug && target != engine.TargetRelease {
		return nil, fmt.Errorf("unknown target %q: want debug or release", target)
	}
	jobs := c.Int("jobs")
	if jobs < 1 {
		return nil, fmt.Errorf("jobs must be a positive integer, got %d", jobs)
	}

	proj, err := config.Load(c.String("file"))
	if err != nil {
		return nil, err
	}

	return engine.MakeBuilder(proj, target, jobs, c.Bool("verbose")), nil
}

// interruptibleContext cancels on Ctrl-C / SIGTERM; in-flight compiler
// processes are killed through it, so an interrupted compile fails the build
// and the invocation exits non-zero. Watch mode just stops.
func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	app := &cli.App{
		Name:    "pbj",
		Usage:   "PB&J build system — incremental parallel builds for native projects",
		Version: common.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Project file path",
				Value:   config.DefaultProjectFile,
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Build target: debug or release",
				Value:   engine.TargetRelease,
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Number of parallel compile jobs",
				Value:   runtime.NumCPU(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Verbose output",
			},
			&cli.StringFlag{
				Name:    "log-filename",
				Usage:   "A filename to log into, stderr by default",
				EnvVars: []string{"PBJ_LOG_FILENAME"},
			},
			&cli.Int64Flag{
				Name:    "log-verbosity",
				Usage:   "Logger verbosity level for INFO (-1 off, default 0, max 2)",
				EnvVars: []string{"PBJ_LOG_VERBOSITY"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Compile changed sources and link the executable",
				Action: func(c *cli.Context) error {
					builder, err := makeBuilder(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					ctx, stop := interruptibleContext()
					defer stop()
					if err := builder.Build(ctx); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
			{
				Name:  "clean",
				Usage: "Remove objects, the output binary and the build cache",
				Action: func(c *cli.Context) error {
					builder, err := makeBuilder(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := builder.Clean(); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
			{
				Name:  "rebuild",
				Usage: "Clean, then build from scratch",
				Action: func(c *cli.Context) error {
					builder, err := makeBuilder(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					ctx, stop := interruptibleContext()
					defer stop()
					if err := builder.Rebuild(ctx); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "Build, then rebuild on every source or header change",
				Action: func(c *cli.Context) error {
					builder, err := makeBuilder(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					ctx, stop := interruptibleContext()
					defer stop()
					if err := builder.Watch(ctx); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
