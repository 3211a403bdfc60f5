package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/resourcectl/internal/config"
	"github.com/pratik-mahalle/resourcectl/internal/credential"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	"github.com/pratik-mahalle/resourcectl/internal/services"
	"github.com/pratik-mahalle/resourcectl/pkg/client"
)

// app carries everything a command needs once the configuration is loaded.
type app struct {
	cfgFile      string
	outputFormat string
	noColor      bool
	serverURL    string
	apiKey       string

	fs    afero.Fs
	keys  *credential.Store
	in    io.Reader
	isTTY func() bool

	v       *viper.Viper
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	client  *client.Client
	manager *services.ResourceManager
}

func newApp() *app {
	return &app{
		fs:    afero.NewOsFs(),
		keys:  credential.NewStore(),
		in:    os.Stdin,
		isTTY: stdinIsTerminal,
	}
}

// Execute runs the resourcectl command tree. Cancelling ctx abandons the
// operation in flight.
func Execute(ctx context.Context) error {
	return newRootCmd(newApp()).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "resourcectl",
		Short: "resourcectl - manage connections to external data and compute services",
		Long: `resourcectl registers, edits, tests and deletes connections ("resources")
to databases, object stores, compute engines, cloud accounts, container
registries and notification channels, and browses the objects they hold.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			// Config, auth and kinds work without a reachable server
			if isLocalCommand(cmd) {
				return nil
			}
			return a.initClient()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.resourcectl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&a.apiKey, "api-key", "", "API key (overrides config and keyring)")

	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newResourceCmd(a))

	return rootCmd
}

func isLocalCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationLocal] == "true" {
			return true
		}
	}
	return false
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	_ = v.BindPFlag("output", flags.Lookup("output"))
	_ = v.BindPFlag("server_url", flags.Lookup("server"))
	_ = v.BindPFlag("api_key", flags.Lookup("api-key"))

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.log = logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	if a.noColor {
		color.NoColor = true
	}
	return nil
}

func (a *app) initClient() error {
	key := a.cfg.APIKey
	if key == "" {
		stored, err := a.keys.APIKey(a.cfg.ServerURL)
		if err != nil {
			a.log.WithError(err).Debug("keyring lookup failed")
		}
		key = stored
	}
	if key == "" {
		return fmt.Errorf("no API key for %s. Run 'resourcectl auth set-key' first", a.cfg.ServerURL)
	}

	a.client = client.NewClient(client.Config{
		BaseURL:   a.cfg.ServerURL,
		APIKey:    key,
		RateLimit: a.cfg.RateLimit,
		RateBurst: a.cfg.RateBurst,
		HTTPClient: &http.Client{
			Timeout:   a.cfg.Timeout,
			Transport: a.metrics.Transport(http.DefaultTransport),
		},
	})
	a.manager = services.NewResourceManager(services.NewAPIBackend(a.client), a.log, a.metrics)
	return nil
}

func (a *app) output() string {
	if a.outputFormat != "" {
		return a.outputFormat
	}
	return a.cfg.Output
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
