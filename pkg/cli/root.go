// Package cli implements the dba command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"dbadmin/internal/config"
	"dbadmin/internal/httpx"
	"dbadmin/internal/telemetry"
	"dbadmin/pkg/api"
	"dbadmin/pkg/rpc"
)

var (
	version = "dev"
	commit  = "none"
)

// Environment variables read by the CLI. They rank between flags and the
// active profile.
const (
	envHost     = "DBADMIN_HOST"
	envUsername = "DBADMIN_USERNAME"
	envPassword = "DBADMIN_PASSWORD"
	envToken    = "DBADMIN_TOKEN"
	envOutput   = "DBADMIN_OUTPUT"
	envDatabase = "DBADMIN_DATABASE"
)

// app holds the settings resolved for one invocation and the API client
// built from them on first use.
type app struct {
	host     string
	username string
	password string
	token    string
	output   string
	profile  string
	database int64
	verbose  bool

	logger   *slog.Logger
	client   *api.Client
	shutdown telemetry.ShutdownFunc
}

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRoot()
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorObject describes err for JSON output.
func errorObject(err error) map[string]any {
	obj := map[string]any{"error": err.Error()}
	var httpErr *httpx.HTTPError
	var rpcErr *rpc.Error
	switch {
	case errors.As(err, &httpErr):
		obj["http_status"] = httpErr.StatusCode
		if msg := httpErr.UserMessage(); msg != "" {
			obj["message"] = msg
		}
	case errors.As(err, &rpcErr):
		obj["code"] = rpcErr.Code
		obj["message"] = rpcErr.Message
	}
	return obj
}

func newRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "dba",
		Short:         "Database administration CLI",
		Long:          "Command-line interface for the database administration JSON-RPC and REST API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.host, "host", config.DefaultHost, "API host URL")
	flags.StringVar(&a.username, "username", "", "Username for basic auth (password from "+envPassword+")")
	flags.StringVar(&a.token, "token", "", "Bearer token for authentication")
	flags.StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	flags.StringVarP(&a.profile, "profile", "p", "", "Config profile to use")
	flags.Int64VarP(&a.database, "database", "d", 1, "Database id")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log HTTP traffic to stderr")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newDatabasesCmd(a))
	rootCmd.AddCommand(newSchemasCmd(a))
	rootCmd.AddCommand(newTablesCmd(a))
	rootCmd.AddCommand(newColumnsCmd(a))
	rootCmd.AddCommand(newRecordsCmd(a))
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd, a
}

// resolve applies the precedence flag > env > profile > default to every
// connection setting.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := loadOrEmptyUserConfig()
	p := cfg.ActiveProfile(a.profile)
	changed := cmd.Flags().Changed

	a.host = pick(changed("host"), a.host, os.Getenv(envHost), p.Host)
	a.username = pick(changed("username"), a.username, os.Getenv(envUsername), p.Username)
	a.token = pick(changed("token"), a.token, os.Getenv(envToken), p.Token)
	a.output = pick(changed("output"), a.output, os.Getenv(envOutput), p.Output)
	a.password = os.Getenv(envPassword)

	if !changed("database") {
		if v := os.Getenv(envDatabase); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q", envDatabase, v)
			}
			a.database = id
		} else if p.Database != 0 {
			a.database = p.Database
		}
	}

	a.host = normalizeHost(a.host)
	if err := validateOutputFormat(a.output); err != nil {
		return err
	}
	// Keep the flag in sync so error output sees the resolved format.
	_ = cmd.Root().PersistentFlags().Set("output", a.output)

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// pick returns the flag value when set explicitly, then the first
// non-empty fallback, then the flag default.
func pick(flagChanged bool, flagValue string, fallbacks ...string) string {
	if flagChanged {
		return flagValue
	}
	for _, v := range fallbacks {
		if v != "" {
			return v
		}
	}
	return flagValue
}

// api returns the API client, building it on first use. Settings not
// covered by flags (timeouts, retries, tracing) come from the environment.
func (a *app) api(ctx context.Context) (*api.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if err := validateHostURL(a.host); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Host = a.host
	cfg.Username = a.username
	cfg.Password = a.password
	cfg.Token = a.token
	if cfg.Username != "" && cfg.Password == "" && cfg.Token == "" {
		return nil, fmt.Errorf("--username needs %s to be set; or run 'dba auth login'", envPassword)
	}

	shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.shutdown = shutdown

	client, err := api.NewFromConfig(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// close flushes pending spans.
func (a *app) close() {
	if a.shutdown != nil {
		_ = a.shutdown(context.Background())
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd.OutOrStdout(), args[0])
		},
	}
}

func writeCompletion(root *cobra.Command, w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}
