package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/go-chi/httprate"
	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/ratelimit"
	"github.com/keywarden/keywarden/internal/server"
	"github.com/keywarden/keywarden/internal/server/middleware"
	"github.com/keywarden/keywarden/internal/service"
)

const banner = `
  _  _______   ____        ___    ____  ____  _____ _   _
 | |/ / ____\ \ / /\ \      / / \  |  _ \|  _ \| ____| \ | |
 | ' /|  _|  \ V /  \ \ /\ / / _ \ | |_) | | | |  _| |  \| |
 | . \| |___  | |    \ V  V / ___ \|  _ <| |_| | |___| |\  |
 |_|\_\_____| |_|     \_/\_/_/   \_\_| \_\____/|_____|_| \_|
`

func newServeCmd(opts *rootOptions) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keywarden API server",
		Long:  "Start the HTTP server that issues, deletes and verifies API keys and records the audit trail.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, dev)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("database-url", "", "Credential store URL (sqlite path, postgres:// or mysql://)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	opts.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	opts.v.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	opts.v.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))

	return cmd
}

func runServe(opts *rootOptions, dev bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	fmt.Print(banner)
	fmt.Println()

	logger := cfg.Log.NewLogger(os.Stderr, dev)
	ctx := context.Background()

	// 1. Credential store
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("credential store opened", "dialect", st.Dialect())

	admins, err := st.CountAdmins(ctx)
	if err != nil {
		logger.Warn("failed to count admin keys", "error", err)
	} else if admins == 0 {
		logger.Warn("no admin key found - run: keywarden keygen, then keywarden key import --admin --hash <hash>")
	}

	// 2. Redis (optional)
	checks := map[string]server.Pinger{"database": st}
	var counter httprate.LimitCounter
	if cfg.Redis.Enabled() {
		client, err := ratelimit.Connect(ctx, ratelimit.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		checks["redis"] = server.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		counter = ratelimit.NewRedisCounter(client, "")
		logger.Info("redis connected", "addr", client.Options().Addr)
	}

	// 3. Services
	m := metrics.New("keywarden")
	hasher := credential.NewHasher(cfg.Auth.BcryptCost)
	deps := server.Deps{
		Auth:         service.NewAuthService(st, hasher, m, logger),
		Keys:         service.NewKeyService(st, credential.NewGenerator(), hasher, cfg.Auth.CreateAttempts, m, logger),
		Audit:        service.NewAuditService(st, cfg.Audit.WriteTimeout, m, logger),
		Metrics:      m,
		Logger:       logger,
		Checks:       checks,
		LimitCounter: counter,
	}

	// 4. HTTP server
	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MaxBodySize:     cfg.Server.MaxBodySize,
		APIKeyHeader:    cfg.Auth.APIKeyHeader,
		Version:         opts.version,
		TrustedProxies:  proxies,
	}
	if cfg.RateLimit.Enabled {
		srvCfg.RateLimit = cfg.RateLimit.RequestsPerMinute
	}

	srv := server.New(srvCfg, deps)

	fmt.Printf("→ keywarden %s\n", opts.version)
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Metrics:    http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
