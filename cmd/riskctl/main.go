// riskctl computes brand risk posture scores and threat analyses from the
// incident ticketing API, and serves them over HTTP and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/api"
	"github.com/jmerrifield20/riskposture/internal/config"
	"github.com/jmerrifield20/riskposture/internal/history"
	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/mcpbridge"
	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/internal/usecase"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the persistent flags and the state PersistentPreRunE derives
// from them.
type cli struct {
	cfgFile  string
	customer string
	format   string
	from     string
	to       string
	days     int
	verbose  bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Brand risk posture scoring",
		Long: `riskctl scores a tenant's brand risk posture (0-1000) from incident
telemetry, ranks incidents by severity and classifies them by threat category.

Configuration is read from ~/.riskctl/config.yaml (or --config) and
RISKCTL_* environment variables, e.g. RISKCTL_API_TOKEN.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ~/.riskctl/config.yaml)")
	pf.StringVar(&c.customer, "customer", "", "customer id (overrides customer_id)")
	pf.StringVar(&c.format, "format", usecase.FormatText, "output format: text or json")
	pf.StringVar(&c.from, "from", "", "period start, YYYY-MM-DD (with --to)")
	pf.StringVar(&c.to, "to", "", "period end, YYYY-MM-DD (with --from)")
	pf.IntVar(&c.days, "days", usecase.DefaultDays, "look back this many days when --from/--to are not set")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "development logging")

	root.AddCommand(
		c.listCmd(),
		c.runCmd(),
		c.analysisCmd("score", "score", "Tenant risk posture score"),
		c.analysisCmd("brands", "brands", "Risk posture score of every brand"),
		c.analysisCmd("posture", "posture", "Tenant and brand scores from one incident fetch"),
		c.analysisCmd("severity", "severity", "Rank incidents by severity"),
		c.analysisCmd("categories", "categories", "Threat category distribution"),
		c.analysisCmd("assets", "assets", "Brands and their monitored domains"),
		c.analysisCmd("credentials", "credentials", "Exposed credential summary"),
		c.analysisCmd("volume", "volume", "Weighted volume cross-checked against statistics"),
		c.analysisCmd("incidents", "origin", "Incidents raised by one originator (--origin)"),
		c.historyCmd(),
		c.serveCmd(),
		c.mcpCmd(),
		versionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	v := config.New(c.cfgFile)
	if c.customer != "" {
		v.Set("customer_id", c.customer)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.verbose {
		c.logger, err = zap.NewDevelopment()
	} else {
		c.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}

func (c *cli) period() (kri.Period, error) {
	days := c.days
	if c.from != "" || c.to != "" {
		days = 0
	}
	return usecase.ResolvePeriod(c.from, c.to, days, time.Now())
}

// ── list ─────────────────────────────────────────────────────────────────────

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ANALYSIS\tDESCRIPTION")
			for _, a := range usecase.All() {
				fmt.Fprintf(w, "%s\t%s\n", a.Name, a.Description)
			}
			return w.Flush()
		},
	}
}

// ── run / analysis shortcuts ─────────────────────────────────────────────────

type analysisFlags struct {
	limit  int
	origin string
	status string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "cap list output (0 = no cap)")
	cmd.Flags().StringVar(&f.origin, "origin", "", "ticket originator: onepixel, platform, api or collector")
	cmd.Flags().StringVar(&f.status, "status", "", "credential detection status (default NEW,IN_TREATMENT)")
}

func (c *cli) runCmd() *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   "run <analysis>",
		Short: "Run an analysis by name (see 'riskctl list')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalysis(cmd, args[0], f)
		},
	}
	f.register(cmd)
	return cmd
}

func (c *cli) analysisCmd(use, analysis, short string) *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runAnalysis(cmd, analysis, f)
		},
	}
	f.register(cmd)
	if analysis == "origin" {
		_ = cmd.MarkFlagRequired("origin")
	}
	return cmd
}

func (c *cli) runAnalysis(cmd *cobra.Command, name string, f analysisFlags) error {
	a, err := usecase.Lookup(name)
	if err != nil {
		return err
	}
	p, err := c.period()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := a.Run(ctx, app.runner, usecase.Params{
		Period: p,
		Limit:  f.limit,
		Origin: f.origin,
		Status: f.status,
	})
	metrics.RecordRun(a.Name, err)
	if err != nil {
		return err
	}
	return usecase.Render(cmd.OutOrStdout(), c.format, out)
}

// ── history ──────────────────────────────────────────────────────────────────

func (c *cli) historyCmd() *cobra.Command {
	var (
		kind  string
		scope string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scores of the tenant or a brand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != kri.ScopeTenant && kind != kri.ScopeBrand {
				return fmt.Errorf("--kind must be %s or %s", kri.ScopeTenant, kri.ScopeBrand)
			}
			if kind == kri.ScopeBrand && scope == "" {
				return errors.New("--scope is required for brand history")
			}
			app, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.runner.History(cmd.Context(), kind, scope, limit)
			if err != nil {
				return err
			}
			if c.format == usecase.FormatJSON {
				return usecase.Render(cmd.OutOrStdout(), usecase.FormatJSON, entries)
			}
			return writeHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kri.ScopeTenant, "scope kind: tenant or brand")
	cmd.Flags().StringVar(&scope, "scope", "", "brand name (required for --kind brand)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the score history chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.runner.VerifyHistory(cmd.Context()); err != nil {
				return fmt.Errorf("score history is corrupt: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "score history chain is valid")
			return nil
		},
	})
	return cmd
}

func writeHistory(out io.Writer, entries []*history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no scores recorded for this scope")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tRECORDED\tSCORE\tGRADE\tPERIOD\tRUN")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s..%s\t%s\n",
			e.Index, e.RecordedAt.Format(time.RFC3339), e.FinalScore, e.Grade,
			e.PeriodFrom.Format(time.DateOnly), e.PeriodTo.Format(time.DateOnly), e.RunID)
	}
	return w.Flush()
}

// ── serve ────────────────────────────────────────────────────────────────────

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()
			go app.health.Start(ctx)

			if os.Getenv("GIN_MODE") == "" {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(ctx, api.NewHandler(app.runner, app.health, c.logger.Named("api")), api.RouterConfig{
				CORSOrigins:    c.cfg.Server.CORSOrigins,
				RateLimitRPS:   c.cfg.Server.RateLimitRPS,
				RateLimitBurst: c.cfg.Server.RateLimitBurst,
			}, c.logger.Named("http"))

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("riskctl HTTP listening",
					zap.String("addr", addr), zap.String("customer_id", c.cfg.CustomerID))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}
			case <-ctx.Done():
			}

			c.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// ── mcp ──────────────────────────────────────────────────────────────────────

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analyses as MCP tools over stdio",
		Long: `mcp runs a stdio Model Context Protocol server exposing every analysis
as a tool, plus score_history. Logs go to stderr so they do not interfere
with the protocol on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			server := mcpbridge.NewServer(cmd.OutOrStdout(), mcpbridge.NewToolRegistry(app.runner), version, c.logger.Named("mcp"))
			c.logger.Info("MCP bridge ready", zap.String("customer_id", c.cfg.CustomerID))
			return server.Serve(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the riskctl version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riskctl %s\n", version)
		},
	}
}
