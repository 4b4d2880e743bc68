// SPDX-License-Identifier: LGPL-2.1-only

// yconfd is a daemon that manages run-time configuration based on
// YANG-modeled datastores. It exposes NETCONF-over-socket and RESTCONF
// wire adapters over a shared transaction engine.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yconfd/yconfd/internal/audit"
	"github.com/yconfd/yconfd/internal/auth"
	yconfig "github.com/yconfd/yconfd/internal/config"
	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/netconf"
	"github.com/yconfd/yconfd/internal/notify"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/restconf"
	"github.com/yconfd/yconfd/internal/rpcengine"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/startup"
	"github.com/yconfd/yconfd/internal/transport"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
	"github.com/yconfd/yconfd/internal/validate"
)

var (
	configFile    string
	startupMode   string
	extraFile     string
	logOutput     string
	debugLevel    string
	transportKind string
	listenAddr    string
	httpAddr      string
)

func main() {
	root := &cobra.Command{
		Use:   "yconfd",
		Short: "Manage run-time configuration from YANG-modeled datastores",
		RunE:  run,
	}
	root.Flags().StringVarP(&configFile, "config", "f", "", "path to the daemon's ini configuration file")
	root.Flags().StringVarP(&startupMode, "startup", "s", "startup", "startup mode: none|init|startup|running|failsafe")
	root.Flags().StringVarP(&extraFile, "extra-config", "c", "", "optional extra config file merged into running at startup")
	root.Flags().StringVarP(&logOutput, "log-output", "l", "", "log sink: s (syslog-style) or f<path> (file)")
	root.Flags().StringVarP(&debugLevel, "debug-level", "D", "", "override the configured log level")
	root.Flags().StringVarP(&transportKind, "transport", "a", "", "transport kind: UNIX|IPv4|IPv6")
	root.Flags().StringVarP(&listenAddr, "listen-addr", "u", "", "transport listen address (socket path for UNIX, host:port for IPv4/IPv6)")
	root.Flags().StringVar(&httpAddr, "http-addr", ":8080", "address the RESTCONF and metrics HTTP servers listen on")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := yconfig.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debugLevel != "" {
		cfg.LogLevel = debugLevel
	}
	if transportKind != "" {
		cfg.Transport = transportKind
	}
	if listenAddr != "" {
		if transport.Kind(cfg.Transport) == transport.KindUnix {
			cfg.SocketPath = listenAddr
		} else {
			cfg.ListenAddr = listenAddr
		}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.ErrorLevel
	}
	var logWriter io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	switch {
	case logOutput == "s":
		logWriter = os.Stderr // syslog-style: unadorned, one line per record
	case strings.HasPrefix(logOutput, "f"):
		path := strings.TrimPrefix(logOutput, "f")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	log := zerolog.New(logWriter).Level(level).With().Timestamp().Logger()

	if err := os.MkdirAll(cfg.DatastoreDir, 0o750); err != nil {
		return fmt.Errorf("create datastore dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.AuditDBPath), 0o750); err != nil {
		return fmt.Errorf("create audit db dir: %w", err)
	}

	store := tree.NewStore()
	for _, name := range []tree.Name{tree.Running, tree.Candidate, tree.Startup, tree.Failsafe, tree.Tmp} {
		store.Create(name)
	}

	persistStore := persist.New(cfg.DatastoreDir, log)

	reg := plugin.NewRegistry()
	if cfg.PluginsFile != "" {
		if manifest, err := plugin.LoadManifest(cfg.PluginsFile); err != nil {
			log.Warn().Err(err).Str("file", cfg.PluginsFile).Msg("no plugin manifest loaded; running with no application callbacks")
		} else {
			log.Info().Strs("order", plugin.OrderFromManifest(manifest)).Msg("loaded plugin manifest")
		}
	}

	cache, err := validate.NewInMemoryCache()
	if err != nil {
		return fmt.Errorf("open validation cache: %w", err)
	}
	defer cache.Close()
	validator := validate.New(cache)

	schemaLoader := schema.Loader(schema.StaticLoader{Root: &schema.Node{Name: "config", Kind: schema.KindContainer}})
	schemaRoot, err := schemaLoader.Load()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditStore.Close()

	promReg := prometheus.NewRegistry()
	metricsReg := metrics.New(promReg)

	engine := txn.New(store, persistStore, reg, validator, schemaRoot, log)
	engine.Audit = auditStore
	engine.Metrics = metricsReg

	orch := startup.New(engine, store, persistStore, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var extraXML *tree.EditNode
	if extraFile != "" {
		extraDir := filepath.Dir(extraFile)
		extraName := tree.Name(strings.TrimSuffix(filepath.Base(extraFile), "_db"))
		parsed, parseErr := persist.New(extraDir, log).Load(extraName)
		if parseErr != nil {
			return fmt.Errorf("parse extra config: %s", parseErr.Error())
		}
		extraXML = parsed
	}

	result := orch.Run(ctx, startup.Mode(startupMode), extraXML, nil)
	if result.Err != nil {
		return fmt.Errorf("startup failed: %w", result.Err)
	}
	if result.UsedFailsafe {
		log.Warn().Msg("started from failsafe configuration")
	}

	sessions := rpcengine.NewSessionManager()
	dispatcher := rpcengine.New(engine, store, sessions, auth.AllowAll{}, log)
	dispatcher.Notify = notify.NewMemorySink()
	dispatcher.Metrics = metricsReg
	dispatcher.AutolockMode = cfg.AutolockMode

	fallbackAddr := cfg.SocketPath
	if transport.Kind(cfg.Transport) != transport.KindUnix {
		fallbackAddr = cfg.ListenAddr
	}
	listener, err := transport.ListenActivated(transport.Kind(cfg.Transport), fallbackAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	netconfSrv := &transport.Server{
		Listener: listener,
		Handle: func(ctx context.Context, conn net.Conn) {
			sess := &netconf.Session{
				Dispatcher: dispatcher,
				ID:         connSessionID(conn),
				Mode:       netconf.ModeChunked,
				Log:        log,
			}
			sess.Serve(ctx, conn)
		},
	}
	go func() {
		if err := netconfSrv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("netconf server exited")
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.JSONSocketPath), 0o750); err != nil {
		return fmt.Errorf("create json rpc socket dir: %w", err)
	}
	jsonListener, err := transport.Listen(transport.KindUnix, cfg.JSONSocketPath)
	if err != nil {
		return fmt.Errorf("listen json rpc: %w", err)
	}
	jsonSrv := &transport.Server{
		Listener: jsonListener,
		Handle: func(ctx context.Context, conn net.Conn) {
			sess := &netconf.JSONSession{
				Dispatcher: dispatcher,
				ID:         connSessionID(conn),
				Mode:       netconf.ModeChunked,
				Log:        log,
			}
			sess.Serve(ctx, conn)
		},
	}
	go func() {
		if err := jsonSrv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("json rpc server exited")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", &restconf.Handler{Dispatcher: dispatcher})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("restconf http server exited")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	listener.Close()
	jsonListener.Close()
	httpSrv.Close()
	return nil
}

var connCounter uint64

func connSessionID(conn net.Conn) string {
	connCounter++
	return fmt.Sprintf("%s-%d", conn.RemoteAddr(), connCounter)
}
