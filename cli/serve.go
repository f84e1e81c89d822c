package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mongobridge/mongosrv/config"
	"github.com/mongobridge/mongosrv/internal/logx"
	"github.com/mongobridge/mongosrv/internal/metrics"
	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/backend/memory"
	"github.com/mongobridge/mongosrv/pkg/cdc"
	"github.com/mongobridge/mongosrv/pkg/chql"
	"github.com/mongobridge/mongosrv/pkg/credentials"
	credfile "github.com/mongobridge/mongosrv/pkg/credentials/file"
	credmemory "github.com/mongobridge/mongosrv/pkg/credentials/memory"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/handlers"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/scram"
	"github.com/mongobridge/mongosrv/pkg/server"
)

// serverVersion is reported in hello/buildInfo.
const serverVersion = "7.0.0-mongosrv"

func newServeCommand(logger *zap.Logger, loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wire-protocol server and, if configured, the CDC ingester",
		Example: `  mongosrvd serve --port 27017
  mongosrvd serve --config ./mongosrvd.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("serve: load config: %w", err)
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			appLogger, logFile, err := logx.New(cfg.Debug, cfg.LogFilePath)
			if err != nil {
				return fmt.Errorf("serve: build logger: %w", err)
			}
			if logFile != nil {
				defer func() { _ = logFile.Close() }()
			}
			if appLogger == nil {
				appLogger = logger
			}

			return runServe(cmd.Context(), cfg, appLogger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "bind address")
	cmd.Flags().IntVar(&port, "port", 27117, "bind port")
	return cmd
}

// runServe builds every collaborator (spec §4.9's composition: Backend,
// CredentialsProvider, Router+Handlers, cursor Manager, SCRAM
// Authenticator, Server) and, when cfg.CDC.Enabled, a CDC Ingester, then
// runs them under one errgroup until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var b backend.Backend = memory.New()
	creds, err := buildCredentialsProvider(cfg)
	if err != nil {
		return fmt.Errorf("serve: build credentials provider: %w", err)
	}

	auth, err := scram.NewAuthenticator(creds)
	if err != nil {
		return fmt.Errorf("serve: build authenticator: %w", err)
	}
	cursors := cursor.New()

	r := router.New(cfg.Auth.Enabled)
	registerHandlers(r, b, cursors, auth)

	var tlsOpts *server.TLSOptions
	if cfg.TLS != nil {
		tlsOpts = &server.TLSOptions{
			KeyFile:            cfg.TLS.KeyFile,
			CertFile:           cfg.TLS.CertFile,
			CAFile:             cfg.TLS.CAFile,
			Passphrase:         cfg.TLS.Passphrase,
			RequestCert:        cfg.TLS.RequestCert,
			RejectUnauthorized: cfg.TLS.RejectUnauthorized,
			ServerName:         cfg.TLS.ServerName,
			ALPNProtocols:      cfg.TLS.ALPNProtocols,
		}
	}

	srv := server.New(server.Options{
		Host:                cfg.Host,
		Port:                cfg.Port,
		TLS:                 tlsOpts,
		AuthEnabled:         cfg.Auth.Enabled,
		BootstrapUsername:   cfg.Auth.BootstrapUsername,
		BootstrapPassword:   cfg.Auth.BootstrapPassword,
		CursorSweepInterval: cfg.Cursor.SweepInterval,
		ScramSweepInterval:  5 * time.Minute,
	}, logger, r, cursors, auth, creds)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })

	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Host, cfg.Metrics.Port, logger) })
	}

	if cfg.CDC.Enabled {
		ingester, err := buildIngester(cfg, logger)
		if err != nil {
			return fmt.Errorf("serve: build CDC ingester: %w", err)
		}
		g.Go(func() error { return ingester.Run(gctx) })
	}

	return g.Wait()
}

// buildCredentialsProvider returns a file-backed store when
// cfg.Auth.CredentialsFile is set, so users created via `mongosrvd
// createuser` against the same file are authenticatable by this server;
// otherwise an in-memory store scoped to the bootstrap admin user only.
func buildCredentialsProvider(cfg *config.Config) (credentials.Provider, error) {
	if cfg.Auth.CredentialsFile == "" {
		return credmemory.New(), nil
	}
	store, err := credfile.New(cfg.Auth.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("open credentials file %s: %w", cfg.Auth.CredentialsFile, err)
	}
	return store, nil
}

func registerHandlers(r *router.Router, b backend.Backend, cursors *cursor.Manager, auth *scram.Authenticator) {
	r.Register("hello", handlers.Hello(serverVersion))
	r.Register("ismaster", handlers.Hello(serverVersion))
	r.Register("isMaster", handlers.Hello(serverVersion))
	r.Register("ping", handlers.Ping())
	r.Register("buildInfo", handlers.BuildInfo(serverVersion))
	r.Register("hostInfo", handlers.HostInfo())
	r.Register("whatsmyuri", handlers.WhatsMyURI())
	r.Register("getLog", handlers.GetLog())
	r.Register("getParameter", handlers.GetParameter())
	r.Register("getCmdLineOpts", handlers.GetCmdLineOpts())
	r.Register("serverStatus", handlers.ServerStatus())

	r.Register("listDatabases", handlers.ListDatabases(b))
	r.Register("listCollections", handlers.ListCollections(b))
	r.Register("collStats", handlers.CollStats(b))
	r.Register("dbStats", handlers.DBStats(b))
	r.Register("create", handlers.Create(b))
	r.Register("drop", handlers.Drop(b))
	r.Register("dropDatabase", handlers.DropDatabase(b))

	r.Register("find", handlers.Find(b, cursors))
	r.Register("insert", handlers.Insert(b))
	r.Register("update", handlers.Update(b))
	r.Register("delete", handlers.Delete(b))
	r.Register("count", handlers.Count(b))
	r.Register("distinct", handlers.Distinct(b))
	r.Register("aggregate", handlers.Aggregate(b, cursors))

	r.Register("getMore", handlers.GetMore(cursors))
	r.Register("killCursors", handlers.KillCursors(cursors))

	r.Register("listIndexes", handlers.ListIndexes(b))
	r.Register("createIndexes", handlers.CreateIndexes(b))
	r.Register("dropIndexes", handlers.DropIndexes(b))

	r.Register("saslStart", handlers.SaslStart(auth))
	r.Register("saslContinue", handlers.SaslContinue(auth))
	r.Register("authenticate", handlers.Authenticate())
	r.Register("logout", handlers.Logout())
}

func serveMetrics(ctx context.Context, host string, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{Addr: addr, Handler: mux}
	logger.Info("metrics listening", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// buildIngester opens the ClickHouse-dialect destination DB and wires a
// chql.TableSpec-backed cdc.SQLDestination (spec §4.7/§4.8).
func buildIngester(cfg *config.Config, logger *zap.Logger) (*cdc.Ingester, error) {
	store, err := cdc.NewMinioStore(cfg.CDC.Endpoint, cfg.CDC.AccessKey, cfg.CDC.SecretKey, !cfg.CDC.Insecure)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	db, err := sql.Open("clickhouse", cfg.CDC.Destination.DSN)
	if err != nil {
		return nil, fmt.Errorf("open destination DSN: %w", err)
	}

	table := chql.TableSpec{
		Database:      cfg.CDC.Destination.Database,
		Table:         cfg.CDC.Destination.Table,
		PerCollection: cfg.CDC.Destination.PerCollection,
		Partitioned:   cfg.CDC.Destination.Partitioned,
		TTLDays:       cfg.CDC.Destination.TTLDays,
	}
	dest := cdc.NewSQLDestination(db, table)

	ingestCfg := cdc.Config{
		Endpoint:        cfg.CDC.Endpoint,
		Bucket:          cfg.CDC.Bucket,
		AccessKey:       cfg.CDC.AccessKey,
		SecretKey:       cfg.CDC.SecretKey,
		Insecure:        cfg.CDC.Insecure,
		Path:            cfg.CDC.Path,
		Format:          cdc.Format(cfg.CDC.Format),
		PollInterval:    cfg.CDC.PollInterval(),
		MaxThreads:      cfg.CDC.MaxThreads,
		MaxBlockSize:    cfg.CDC.MaxBlockSize,
		AfterProcessing: cdc.AfterProcessing(cfg.CDC.AfterProcessing),
		OrderedMode:     cfg.CDC.OrderedMode,
	}

	return cdc.New(store, dest, ingestCfg, logger), nil
}
