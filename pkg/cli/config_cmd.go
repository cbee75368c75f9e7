package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetProfileCmd())
	cmd.AddCommand(newConfigUseProfileCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		reveal  bool
		rawYAML bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no configuration found at %s: %w", ConfigPath(), err)
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), cfg)
			}
			if rawYAML {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			PrintTable(cmd.OutOrStdout(), []string{"profile", "active", "host", "username", "token", "output", "database"}, profileRows(cfg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show sensitive values unmasked")
	cmd.Flags().BoolVar(&rawYAML, "yaml", false, "Print the config file as YAML")

	return cmd
}

// profileRows lists profiles by name, marking the current one with "*".
func profileRows(cfg *UserConfig) [][]string {
	names := slices.Sorted(maps.Keys(cfg.Profiles))
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		active := ""
		if name == cfg.ProfileName("") {
			active = "*"
		}
		db := ""
		if p.Database != 0 {
			db = strconv.FormatInt(p.Database, 10)
		}
		rows = append(rows, []string{name, active, p.Host, p.Username, p.Token, p.Output, db})
	}
	return rows
}

// maskConfig returns a copy of the config with sensitive fields masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.Token = maskSecret(p.Token)
		masked.Profiles[name] = p
	}
	return masked
}

// maskSecret masks a sensitive string, showing first 4 and last 4 chars.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		name     string
		host     string
		username string
		token    string
		output   string
		database int64
	)

	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a configuration profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			changed := cmd.Flags().Changed
			if changed("output") {
				if err := validateOutputFormat(output); err != nil {
					return err
				}
			}
			if changed("host") {
				host = normalizeHost(host)
				if err := validateHostURL(host); err != nil {
					return err
				}
			}

			cfg := loadOrEmptyUserConfig()
			cfg.UpdateProfile(name, func(p *Profile) {
				if changed("host") {
					p.Host = host
				}
				if changed("username") {
					p.Username = username
				}
				if changed("token") {
					p.Token = token
				}
				if changed("output") {
					p.Output = output
				}
				if changed("database") {
					p.Database = database
				}
			})

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&host, "host", "", "API host URL")
	cmd.Flags().StringVar(&username, "username", "", "Username for basic auth")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	cmd.Flags().StringVar(&output, "output", "", "Default output format")
	cmd.Flags().Int64Var(&database, "database", 0, "Default database id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Set the active configuration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{
					"status":         "ok",
					"active_profile": name,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active profile set to %q\n", name)
			return nil
		},
	}
}
