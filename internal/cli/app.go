package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/auth"
	"github.com/chefriend/chefriend-cli/internal/config"
	"github.com/chefriend/chefriend-cli/internal/flow"
	"github.com/chefriend/chefriend-cli/internal/photo"
	"github.com/chefriend/chefriend-cli/internal/report"
	"github.com/chefriend/chefriend-cli/internal/session"
	"github.com/chefriend/chefriend-cli/internal/survey"
	"github.com/chefriend/chefriend-cli/internal/transport"
)

// refreshLeeway refreshes an access token this long before it expires.
const refreshLeeway = 30 * time.Second

// app is everything one command invocation needs, wired from configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	docs     *session.SQLStore
	tokens   *auth.Store
	http     *transport.DefaultClient
	client   *api.Client
	surveys  *survey.Store
	flow     *flow.Controller
	reporter report.Reporter

	cmd      *cobra.Command
	in       io.Reader
	out      io.Writer
	progress io.Writer
}

// openApp loads configuration and opens local state. Callers must Close it.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	verbosity, _ := flags.GetCount("verbose")
	logger := newLogger(verbosity, cmd.ErrOrStderr())

	cfgPath, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")
	cfg, err := config.Load(config.LoadOptions{ConfigPath: cfgPath, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, _ := flags.GetString("format")
	reporter, err := report.New(format)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: %w", format, err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		reporter: reporter,
		cmd:      cmd,
		in:       cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
		progress: cmd.OutOrStdout(),
	}
	// Keep JSON on stdout parseable.
	if reporter.Format() == "json" {
		a.progress = cmd.ErrOrStderr()
	}

	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}
	docs, err := session.NewSQLStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	a.docs = docs

	if a.tokens, err = auth.NewStore(ctx, docs); err != nil {
		a.Close()
		return nil, err
	}

	a.http, err = transport.NewClient(transport.ClientOptions{
		Timeout:   cfg.Timeout,
		ProxyURL:  cfg.Proxy,
		UserAgent: transport.UserAgent(version),
		MaxRPS:    cfg.MaxRPS,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	a.client, err = api.New(a.http, api.Options{
		BaseURL:       cfg.APIURL,
		Tokens:        a.tokens,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL,
		RefreshLeeway: refreshLeeway,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.surveys, err = openSurveys(ctx, a); err != nil {
		a.Close()
		return nil, err
	}

	uploader := photo.NewUploader(a.client,
		photo.WithConcurrency(cfg.UploadConcurrency),
		photo.WithLogger(logger),
	)
	a.flow = flow.New(a.surveys, a.client,
		flow.WithLogger(logger),
		flow.WithUploader(uploader),
		flow.WithProgressCallback(func(msg string) { a.info("%s", msg) }),
	)

	logger.Debug("configuration loaded",
		"api_url", cfg.APIURL,
		"db_driver", cfg.DBDriver,
		"upload_concurrency", cfg.UploadConcurrency,
		"cache_size", cfg.CacheSize,
	)
	return a, nil
}

// openSurveys loads the saved survey. A document that cannot be decoded is
// discarded with a warning so every other command keeps working.
func openSurveys(ctx context.Context, a *app) (*survey.Store, error) {
	persister := &survey.DocumentPersister{Docs: a.docs}
	store, err := survey.NewStore(ctx, persister)
	if !errors.Is(err, survey.ErrCorruptSession) {
		return store, err
	}
	a.logger.Warn("discarding saved survey", "error", err)
	a.warn("Saved survey could not be read and was discarded")
	if err := a.docs.Delete(ctx, survey.StorageKey); err != nil {
		return nil, err
	}
	return survey.NewStore(ctx, persister)
}

// Close releases local state.
func (a *app) Close() {
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			a.logger.Warn("close session database", "error", err)
		}
	}
	if a.http != nil {
		st := a.http.Stats()
		a.logger.Debug("transport stats", "requests", st.TotalRequests, "failures", st.Failures, "avg", st.AvgDuration)
	}
}

// info prints a progress line.
func (a *app) info(format string, args ...any) {
	fmt.Fprintf(a.progress, "[*] "+format+"\n", args...)
}

// warn prints a user-facing warning.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.progress, "[!] "+format+"\n", args...)
}

// requireSignIn fails early when no credentials are stored.
func (a *app) requireSignIn() error {
	if !a.tokens.Current().SignedIn() {
		return fmt.Errorf("not signed in (use 'chefriend login --token ...')")
	}
	return nil
}

// statusView collects what the status screen shows.
func (a *app) statusView(ctx context.Context) *report.StatusView {
	v := &report.StatusView{
		Session:   a.flow.Session(),
		State:     a.flow.State(),
		Steps:     a.flow.Steps(),
		CanSubmit: a.flow.CanSubmit(),
	}
	if st := a.flow.ProfileStatus(); st != flow.ProfileDefault {
		v.Profile = st.String()
	}
	if doc, err := a.docs.Load(ctx, survey.StorageKey); err == nil && doc != nil {
		v.UpdatedAt = doc.UpdatedAt
	}
	return v
}

func (a *app) printStatus(ctx context.Context) error {
	return a.reporter.Status(ctx, a.statusView(ctx), a.out)
}

// withApp runs fn with an opened app and a context cancelled on interrupt.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

// applyFlags lets explicitly set flags override every other source.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("proxy") {
		cfg.Proxy, _ = flags.GetString("proxy")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-rps") {
		cfg.MaxRPS, _ = flags.GetFloat64("max-rps")
	}
	if flags.Changed("upload-concurrency") {
		cfg.UploadConcurrency, _ = flags.GetInt("upload-concurrency")
	}
	if flags.Changed("db-driver") {
		cfg.DBDriver, _ = flags.GetString("db-driver")
	}
	if flags.Changed("db-dsn") {
		cfg.DBDSN, _ = flags.GetString("db-dsn")
	}
}
