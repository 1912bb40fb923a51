// Command hydradnsd is the HydraDNS resolver daemon: it wires the
// rewrite -> cache -> upstream pipeline to the UDP/DoT/DoH/DoQ front-ends
// and the management REST API, following the same flag/config/signal
// shape as the reference server's cmd/hydradns.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jroosing/hydradns/internal/alerting"
	"github.com/jroosing/hydradns/internal/api"
	"github.com/jroosing/hydradns/internal/api/handlers"
	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/config"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/frontend"
	"github.com/jroosing/hydradns/internal/logging"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/resolver"
	"github.com/jroosing/hydradns/internal/rewrite"
	"github.com/jroosing/hydradns/internal/server"
	"github.com/jroosing/hydradns/internal/snapshot"
	"github.com/jroosing/hydradns/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	debug      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "path to YAML config file (default: $HYDRADNS_CONFIG)")
	flag.BoolVar(&f.debug, "debug", false, "force DEBUG log level, overriding config")
	flag.Parse()
	return f
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.debug {
		cfg.Logging.Level = "DEBUG"
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("hydradns starting",
		"udp_port", cfg.Server.UDPPort,
		"enable_dot", cfg.Server.EnableDoT,
		"enable_doh", cfg.Server.EnableDoH,
		"enable_doq", cfg.Server.EnableDoQ,
		"workers", cfg.Server.Workers.String(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var snap *snapshot.Store
	if cfg.Snapshot.Enabled {
		snap, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer snap.Close()
		logger.Info("snapshot store opened", "path", cfg.Snapshot.Path)
	}

	cacheMgr := cache.New(cache.Config{
		DefaultTTL: time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		MaxEntries: cfg.Cache.MaxEntries,
	})

	rewriteEngine := rewrite.New()
	seedRewriteRules(rewriteEngine, cfg.Rewrite, logger)
	if snap != nil {
		if rules, err := snap.LoadRules(ctx); err != nil {
			logger.Warn("snapshot: load rules failed", "err", err)
		} else {
			for _, r := range rules {
				if err := rewriteEngine.AddRule(r); err != nil {
					logger.Warn("snapshot: skipping stored rule", "id", r.ID, "err", err)
				}
			}
			logger.Info("snapshot: loaded rewrite rules", "count", len(rules))
		}
	}

	upstreamMgr := upstream.New()
	seedUpstreamServers(upstreamMgr, cfg.Upstream.Servers, logger)
	if snap != nil {
		if servers, err := snap.LoadUpstreams(ctx); err != nil {
			logger.Warn("snapshot: load upstreams failed", "err", err)
		} else {
			for _, s := range servers {
				upstreamMgr.Add(s)
			}
			logger.Info("snapshot: loaded upstream servers", "count", len(servers))
		}
	}

	if cfg.Alerting.Enabled && cfg.Alerting.WebhookURL != "" {
		notifier := alerting.New(cfg.Alerting.WebhookURL, logger)
		upstreamMgr.SetTransitionObserver(notifier.Observer())
		logger.Info("alerting enabled", "webhook_url", cfg.Alerting.WebhookURL)
	}

	strategy, ok := core.ParseStrategy(cfg.Upstream.Strategy)
	if !ok {
		logger.Warn("unknown upstream.strategy, defaulting to round_robin", "value", cfg.Upstream.Strategy)
	}
	proxyMgr := proxy.New(upstreamMgr, strategy)
	defer proxyMgr.Close()

	res := resolver.New(rewriteEngine, cacheMgr, proxyMgr)
	res.SetDisabledRecordTypes(parseDisabledRecordTypes(cfg.Upstream.DisabledRecordRaw, logger))

	handler := &frontend.Handler{Logger: logger, Resolver: res}

	h := handlers.New(logger, rewriteEngine, cacheMgr, upstreamMgr, proxyMgr, res)
	if snap != nil {
		h.SetSnapshot(snap)
	}

	errCh := make(chan error, 8)

	udpFrontend := &frontend.UDPFrontend{
		Handler:          handler,
		Limiter:          server.NewRateLimiterFromEnv(),
		WorkersPerSocket: workersPerSocket(cfg.Server.Workers),
	}
	udpAddr := hostPort(cfg.Server.Host, cfg.Server.UDPPort)
	go func() {
		logger.Info("udp frontend listening", "addr", udpAddr)
		errCh <- fmt.Errorf("udp frontend: %w", udpFrontend.Run(ctx, udpAddr))
	}()

	var tlsConf *tls.Config
	if cfg.Server.EnableDoT || cfg.Server.EnableDoH || cfg.Server.EnableDoQ {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		tlsConf = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	if cfg.Server.EnableDoT {
		dotFrontend := &frontend.DoTFrontend{Logger: logger, Handler: handler, TLSConfig: tlsConf}
		dotAddr := hostPort(cfg.Server.Host, cfg.Server.DoTPort)
		go func() {
			logger.Info("dot frontend listening", "addr", dotAddr)
			errCh <- fmt.Errorf("dot frontend: %w", dotFrontend.Run(ctx, dotAddr))
		}()
	}

	if cfg.Server.EnableDoQ {
		doqFrontend := &frontend.DoQFrontend{Logger: logger, Handler: handler, TLSConfig: tlsConf}
		doqAddr := hostPort(cfg.Server.Host, cfg.Server.DoQPort)
		go func() {
			logger.Info("doq frontend listening", "addr", doqAddr)
			errCh <- fmt.Errorf("doq frontend: %w", doqFrontend.Run(ctx, doqAddr))
		}()
	}

	// DoH shares its gin engine with the management API rather than standing
	// up a second HTTP listener (spec.md §6/§4.7): when the API is disabled
	// but DoH is requested, DoH gets its own dedicated listener instead.
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.New(cfg, logger, h)
		if cfg.Server.EnableDoH {
			frontend.MountDoH(apiServer.Engine(), handler)
		}
		go func() {
			logger.Info("management api listening", "addr", apiServer.Addr())
			if cfg.Server.EnableDoH && tlsConf != nil {
				errCh <- fmt.Errorf("management api: %w", apiServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile))
			} else {
				errCh <- fmt.Errorf("management api: %w", apiServer.ListenAndServe())
			}
		}()
	} else if cfg.Server.EnableDoH {
		dohFrontend := frontend.NewDoHFrontend(handler, logger)
		dohAddr := hostPort(cfg.Server.Host, cfg.Server.DoHPort)
		go func() {
			logger.Info("doh frontend listening", "addr", dohAddr)
			errCh <- fmt.Errorf("doh frontend: %w", dohFrontend.Run(ctx, dohAddr, cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		cancel()
		return err
	}
}

func hostPort(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func workersPerSocket(w config.WorkerSetting) int {
	if w.Mode == config.WorkersFixed && w.Value > 0 {
		return w.Value
	}
	return frontend.DefaultWorkersPerSocket
}

func seedRewriteRules(rw *rewrite.Engine, rules []config.RewriteRuleConfig, logger *slog.Logger) {
	for _, rc := range rules {
		rule, err := rewriteRuleFromConfig(rc)
		if err != nil {
			logger.Warn("skipping invalid configured rewrite rule", "id", rc.ID, "err", err)
			continue
		}
		if err := rw.AddRule(rule); err != nil {
			logger.Warn("failed to add configured rewrite rule", "id", rc.ID, "err", err)
		}
	}
}

func rewriteRuleFromConfig(rc config.RewriteRuleConfig) (core.RewriteRule, error) {
	mt, ok := matchTypeFromConfigString(rc.MatchType)
	if !ok {
		return core.RewriteRule{}, fmt.Errorf("unknown match_type %q", rc.MatchType)
	}
	ak, ok := actionKindFromConfigString(rc.Action)
	if !ok {
		return core.RewriteRule{}, fmt.Errorf("unknown action %q", rc.Action)
	}
	return core.RewriteRule{
		ID:        rc.ID,
		Pattern:   rc.Pattern,
		MatchType: mt,
		Action:    core.RuleAction{Kind: ak, IP: rc.IP, CNAME: rc.CNAME},
		Priority:  rc.Priority,
		Enabled:   rc.Enabled,
	}, nil
}

func matchTypeFromConfigString(s string) (core.MatchType, bool) {
	switch s {
	case "exact":
		return core.MatchExact, true
	case "suffix":
		return core.MatchSuffix, true
	case "wildcard":
		return core.MatchWildcard, true
	case "regex":
		return core.MatchRegex, true
	default:
		return 0, false
	}
}

func actionKindFromConfigString(s string) (core.ActionKind, bool) {
	switch s {
	case "map_to_ip":
		return core.ActionMapToIP, true
	case "map_to_cname":
		return core.ActionMapToCNAME, true
	case "block":
		return core.ActionBlock, true
	case "nxdomain":
		return core.ActionReturnNXDomain, true
	default:
		return 0, false
	}
}

func seedUpstreamServers(u *upstream.Manager, servers []config.UpstreamServerConfig, logger *slog.Logger) {
	for i, sc := range servers {
		proto, ok := protoFromConfigString(sc.Proto)
		if !ok {
			logger.Warn("skipping upstream server with unknown proto", "name", sc.Name, "proto", sc.Proto)
			continue
		}
		u.Add(core.UpstreamServer{
			ID:      int64(i + 1),
			Name:    sc.Name,
			Address: sc.Address,
			Proto:   proto,
			Weight:  sc.Weight,
			Enabled: true,
		})
	}
}

func protoFromConfigString(s string) (core.Protocol, bool) {
	switch s {
	case "udp":
		return core.ProtoUDP, true
	case "dot":
		return core.ProtoDoT, true
	case "doh":
		return core.ProtoDoH, true
	case "doq":
		return core.ProtoDoQ, true
	default:
		return 0, false
	}
}

func parseDisabledRecordTypes(raw []string, logger *slog.Logger) []core.RecordType {
	out := make([]core.RecordType, 0, len(raw))
	for _, name := range raw {
		t, ok := recordTypeFromName(name)
		if !ok {
			logger.Warn("unknown disabled_record_types entry", "value", name)
			continue
		}
		out = append(out, t)
	}
	return out
}

func recordTypeFromName(s string) (core.RecordType, bool) {
	switch s {
	case "A":
		return core.TypeA, true
	case "AAAA":
		return core.TypeAAAA, true
	case "CNAME":
		return core.TypeCNAME, true
	case "NS":
		return core.TypeNS, true
	case "SOA":
		return core.TypeSOA, true
	case "PTR":
		return core.TypePTR, true
	case "MX":
		return core.TypeMX, true
	case "TXT":
		return core.TypeTXT, true
	case "SRV":
		return core.TypeSRV, true
	default:
		return 0, false
	}
}
