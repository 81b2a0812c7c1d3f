package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/compsize/internal"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
	"github.com/zhengshuai-xiao/compsize/pkg/compsize"
	"github.com/zhengshuai-xiao/compsize/pkg/report"
)

// searchIoctl replaces the kernel call in tests.
var searchIoctl btrfs.SearchIoctl

func compsizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "bytes",
			Aliases: []string{"b"},
			Usage:   "display raw bytes instead of human-readable sizes",
		},
		&cli.BoolFlag{
			Name:  "metric",
			Usage: "use powers of 1000 instead of 1024",
		},
		&cli.StringFlag{
			Name:  "unit",
			Usage: "display all sizes in this unit: K/M/G/T/P/E",
		},
		&cli.BoolFlag{
			Name:    "one-file-system",
			Aliases: []string{"x"},
			Usage:   "don't cross filesystem boundaries",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"j"},
			Value:   internal.DefaultWorkers(),
			Usage:   "number of files inspected in parallel",
		},
		&cli.IntFlag{
			Name:  "queue-size",
			Value: internal.DefaultQueueSize,
			Usage: "number of paths buffered between the walker and the workers",
		},
		&cli.BoolFlag{
			Name:  "skip-errors",
			Usage: "warn about files that cannot be opened and go on",
		},
		&cli.StringFlag{
			Name:  "dedup-backend",
			Value: internal.DedupBackendMemory,
			Usage: fmt.Sprintf("where seen extents are remembered ('%s' or '%s')", internal.DedupBackendMemory, internal.DedupBackendRedis),
		},
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "redis address for the redis dedup backend: host:port[/db] or redis://...",
		},
		&cli.DurationFlag{
			Name:  "redis-ttl",
			Value: internal.DefaultRedisTTL,
			Usage: "expiry of the extent set in redis, in case the run dies before cleaning up",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with default values for the options above",
		},
		&cli.StringFlag{
			Name:  "loglevel",
			Value: internal.DefaultLogLevel,
			Usage: "log level: trace/debug/info/warn/error",
		},
		&cli.StringFlag{
			Name:  "logdir",
			Usage: "write logs to a daily rotated file in this directory instead of stderr",
		},
	}
}

// loadConfig builds the run configuration: defaults, then --config, then
// any flag given on the command line.
func loadConfig(c *cli.Context) (*internal.Config, error) {
	conf := internal.NewConfig()
	if path := c.String("config"); path != "" {
		if err := conf.LoadConfigFile(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("bytes") {
		conf.Bytes = c.Bool("bytes")
	}
	if c.IsSet("metric") {
		conf.Metric = c.Bool("metric")
	}
	if c.IsSet("unit") {
		conf.Unit = c.String("unit")
	}
	if c.IsSet("one-file-system") {
		conf.OneFileSystem = c.Bool("one-file-system")
	}
	if c.IsSet("workers") {
		conf.Workers = c.Int("workers")
	}
	if c.IsSet("queue-size") {
		conf.QueueSize = c.Int("queue-size")
	}
	if c.IsSet("skip-errors") {
		conf.SkipErrors = c.Bool("skip-errors")
	}
	if c.IsSet("dedup-backend") {
		conf.DedupBackend = c.String("dedup-backend")
	}
	if c.IsSet("redis-addr") {
		conf.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("redis-ttl") {
		conf.RedisTTL = c.Duration("redis-ttl")
	}
	if c.IsSet("loglevel") {
		conf.LogLevel = c.String("loglevel")
	}
	if c.IsSet("logdir") {
		conf.LogDir = c.String("logdir")
	}
	return conf, conf.Validate()
}

func setupLogger(conf *internal.Config, runID string) error {
	lvl, err := internal.ParseLogLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	internal.SetLogLevel(lvl)
	internal.SetLogID(runID)
	if conf.LogDir != "" {
		return internal.SetOutFile(conf.LogDir, "compsize.log")
	}
	return nil
}

func newExtentSet(ctx context.Context, conf *internal.Config, runID string) (compsize.ExtentSet, error) {
	switch conf.DedupBackend {
	case internal.DedupBackendRedis:
		return compsize.NewRedisExtentSet(ctx, conf.RedisAddr, runID, conf.RedisTTL)
	default:
		return compsize.NewMemoryExtentSet(), nil
	}
}

func run(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return fail(c, err)
	}
	runID := internal.NewRunID()
	if err := setupLogger(conf, runID); err != nil {
		return fail(c, err)
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		cli.ShowAppHelp(c)
		return fail(c, errors.New("no files or directories given"))
	}
	if err := unknownOption(paths); err != nil {
		return fail(c, err)
	}
	scale, err := report.NewScale(conf.Bytes, conf.Metric, conf.Unit)
	if err != nil {
		return fail(c, err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := newExtentSet(ctx, conf, runID)
	if err != nil {
		return fail(c, err)
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Warnf("close extent set: %v", err)
		}
	}()

	logger.Debugf("run %s: %d paths, %d workers, dedup backend %s", runID, len(paths), conf.Workers, conf.DedupBackend)
	st, err := compsize.New(compsize.Options{
		Workers:       conf.Workers,
		QueueSize:     conf.QueueSize,
		OneFileSystem: conf.OneFileSystem,
		SkipErrors:    conf.SkipErrors,
		Set:           set,
		Ioctl:         searchIoctl,
	}).Run(ctx, paths)
	if err != nil {
		logger.Debugf("stopped after %d files", st.NFile)
		if errors.Is(err, btrfs.ErrNotBtrfs) {
			kernelHint()
		}
		// partial counts go to stderr only
		if st.Check() == nil {
			fmt.Fprintln(c.App.ErrWriter, "Partial results:")
			report.Render(c.App.ErrWriter, &st, scale)
		}
		return fail(c, err)
	}
	if err := st.Check(); err != nil {
		return fail(c, err)
	}

	report.Render(c.App.Writer, &st, scale)
	return nil
}

// fail reports err once, on stderr and in the log, and hands it back.
func fail(c *cli.Context, err error) error {
	switch {
	case errors.Is(err, internal.ErrNoFiles):
		fmt.Fprintln(c.App.ErrWriter, "No files.")
	case errors.Is(err, internal.ErrNoExtents):
		fmt.Fprintln(c.App.ErrWriter, "All empty or still-delalloced files.")
	default:
		fmt.Fprintln(c.App.ErrWriter, err)
		if internal.LogsToFile() {
			logger.Error(err)
		}
	}
	return err
}

func kernelHint() {
	rel, err := btrfs.KernelRelease()
	if err != nil {
		return
	}
	if kernelPredates(rel, btrfs.SearchV2MinKernel) {
		logger.Warnf("kernel %s predates %s, which introduced TREE_SEARCH_V2", rel, btrfs.SearchV2MinKernel)
	}
}

// kernelPredates reports whether the uname release is older than
// minRelease. The distro suffix after the first '-' is not a pre-release.
func kernelPredates(release, minRelease string) bool {
	release, _, _ = strings.Cut(release, "-")
	res, err := internal.CompareVersions(internal.Parse(release), internal.Parse(minRelease))
	return err == nil && res < 0
}
