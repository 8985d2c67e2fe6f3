// Command guideresto administers a restaurant directory: it applies the
// schema, lists and shows restaurants, exports them to blob storage and
// deletes them with their evaluations. Storage and export targets come from
// the GUIDERESTO_* environment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"guideresto/internal/blob"
	"guideresto/internal/core"
	"guideresto/internal/logging"
)

var exitFunc = os.Exit

const usage = `usage: guideresto [flags] <command> [args]

commands:
  init            apply the schema
  list            list restaurants with their like counts
  show <id>       print a restaurant as JSON
  export <id...>  export restaurants to the configured blob store
  delete <id>     delete a restaurant with its evaluations
`

func main() {
	exitFunc(cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("guideresto", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	base := logrus.New()
	base.SetOutput(stderr)
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	base.SetLevel(logging.ParseLevel(*logLevel))
	logger := logging.NewLogrus(base).With("command", fs.Arg(0))

	if err := run(ctx, fs.Arg(0), fs.Args()[1:], *metricsAddr, logger, stdout); err != nil {
		logger.Error("command failed", "error", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, command string, args []string, metricsAddr string, logger logging.Logger, stdout io.Writer) error {
	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithLockWait(cfg.LockWait),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return err
		}
		stop, err := serveMetrics(metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, core.WithMetricsRecorder(recorder))
	}

	gateway, err := core.OpenGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = gateway.Close() }()
	svc := core.NewService(gateway, opts...)

	switch command {
	case "init":
		_, err = fmt.Fprintf(stdout, "schema ready (%s)\n", gateway.Dialect().Name())
		return err
	case "list":
		return list(ctx, svc, stdout)
	case "show":
		if len(args) != 1 {
			return errUsage
		}
		return show(ctx, svc, args[0], stdout)
	case "export":
		if len(args) == 0 {
			return errUsage
		}
		store, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return err
		}
		return export(ctx, svc, store, args, stdout)
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		return remove(ctx, svc, args[0], stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func list(ctx context.Context, svc *core.Service, stdout io.Writer) error {
	restaurants, err := svc.Restaurants(ctx)
	if err != nil {
		return err
	}
	for _, r := range restaurants {
		if _, err := fmt.Fprintf(stdout, "%d\t%s\t%s\t+%d/-%d\n", r.ID, r.Name, r.CityName(), r.CountLikes(true), r.CountLikes(false)); err != nil {
			return err
		}
	}
	return nil
}

func show(ctx context.Context, svc *core.Service, arg string, stdout io.Writer) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	r, err := svc.Restaurant(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(core.NewRestaurantDocument(r, time.Now()))
}

// export writes every restaurant concurrently. Keys are printed in argument
// order once all exports succeeded.
func export(ctx context.Context, svc *core.Service, store blob.Store, args []string, stdout io.Writer) error {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	keys := make([]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			info, err := svc.ExportRestaurant(gctx, id, store)
			if err != nil {
				return err
			}
			keys[i] = info.Key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := fmt.Fprintf(stdout, "%s:%s\n", store.Driver(), key); err != nil {
			return err
		}
	}
	return nil
}

func remove(ctx context.Context, svc *core.Service, arg string, stdout io.Writer) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	r, err := svc.Restaurant(ctx, id)
	if err != nil {
		return err
	}
	report, err := svc.DeleteRestaurant(ctx, r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "deleted restaurant %d: %d grades, %d complete evaluations, %d basic evaluations\n",
		report.RestaurantID, report.Grades, report.CompleteEvaluations, report.BasicEvaluations)
	return err
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid restaurant id %q", errUsage, arg)
	}
	return id, nil
}

// serveMetrics exposes reg on addr and returns a func that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		wg.Wait()
	}, nil
}
