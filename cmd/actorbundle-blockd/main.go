// Command actorbundle-blockd serves a block store over gRPC so that build
// hosts can publish bundles with --publish-backend=grpc.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/actorbundle/internal/logging"
	"xdao.co/actorbundle/storage/grpcstore"
	"xdao.co/actorbundle/storage/registry"

	_ "xdao.co/actorbundle/storage/ipfs"
	_ "xdao.co/actorbundle/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("actorbundle-blockd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "Block store backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	var logCfg logging.Config
	fs.StringVar(&logCfg.Level, "log-level", logging.DefaultLevel, "Log level")
	fs.StringVar(&logCfg.Format, "log-format", "console", "Log format: console, json")
	fs.StringVar(&logCfg.File, "log-file", "", "Write logs to this rotating file")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger, closeLog, err := logging.New(logCfg, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeLog()

	store, closeFn, err := registry.Open(*backend, registry.UsageDaemon)
	if err != nil {
		logger.Error("open backend", zap.String("backend", *backend), zap.Error(err))
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", zap.String("addr", *listen), zap.Error(err))
		return 1
	}

	s := grpc.NewServer()
	grpcstore.RegisterBlockstoreServer(s, &grpcstore.Server{Store: store})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend))
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", zap.Error(err))
		return 1
	}
	logger.Info("stopped")
	return 0
}
