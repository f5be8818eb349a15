// Command reelmatch asks an LLM for movie and series recommendations that fit
// a stored taste profile, and keeps ratings and settings in a local store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/app"
	"github.com/fairyhunter13/reelmatch/internal/config"
	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// errUsage marks errors already explained by a usage message.
var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	global := flag.NewFlagSet("reelmatch", flag.ContinueOnError)
	global.SetOutput(errOut)
	asJSON := global.Bool("json", false, "print results as JSON")
	dumpMetrics := global.Bool("metrics", false, "write Prometheus metrics to stderr on exit")
	global.Usage = func() { printUsage(errOut) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		printUsage(errOut)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close store", slog.Any("error", err))
		}
	}()

	c := &cli{app: a, in: in, out: out, errOut: errOut, json: *asJSON}
	code := 0
	if err := c.dispatch(ctx, global.Args()); err != nil {
		c.reportError(err)
		code = 1
		if errors.Is(err, errUsage) {
			code = 2
		}
	}
	if *dumpMetrics {
		if err := observability.WriteMetrics(errOut, nil); err != nil {
			slog.Error("failed to write metrics", slog.Any("error", err))
		}
	}
	return code
}

func (c *cli) reportError(err error) {
	if errors.Is(err, errUsage) {
		return
	}
	slog.Debug("command failed", slog.Any("error", err))
	msg := err.Error()
	if pipelineError(err) {
		msg = usecase.UserMessage(err)
	}
	fmt.Fprintln(c.errOut, "error:", msg)
}

// pipelineError reports whether err belongs to the recommendation error
// taxonomy, which has user-facing wording.
func pipelineError(err error) bool {
	for _, target := range []error{
		domain.ErrMissingCredential,
		domain.ErrSafetyBlocked,
		domain.ErrUpstreamRateLimit,
		domain.ErrUpstreamTransient,
		domain.ErrMalformedOutput,
		domain.ErrInvalidArgument,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: reelmatch [-json] [-metrics] <command> [flags] [args]

commands:
  recommend [-kind movie|series] [-prefs file.yaml] [-genres a,b] [-exclude-genres a,b]
            [-mood text] [-keywords text] [-exclude "Title:Year"]...
  similar   [-kind movie|series] <title>
  more      [-kind movie|series] [-year N] [-exclude-id id] <title>
  taste     [-kind movie|series] <title>
  rate      [-year N] [-source card|discovery|similar|taste_check] -value liked|disliked|not_interested|watched <title>
  unrate    <id>
  history
  prefs     [save <file.yaml>]
  settings  [-count N]
  status
  cache     [clear]
  model     [switch <index> | reset]
  shell     interactive session that keeps the cache and model rotation alive
`)
}
