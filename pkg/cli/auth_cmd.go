package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in and inspect stored credentials",
	}

	cmd.AddCommand(newAuthLoginCmd(a))
	cmd.AddCommand(newAuthStatusCmd(a))
	cmd.AddCommand(newAuthLogoutCmd(a))
	return cmd
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Exchange a username and password for a token and save it to the active profile",
		Example: `  # Prompt for the password
  dba auth login admin

  # Read the password from stdin
  echo "$PASSWORD" | dba auth login admin --password-stdin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := a.username
			if len(args) == 1 {
				username = args[0]
			}
			if username == "" {
				return errors.New("a username is required: pass it as an argument or set --username")
			}
			password, err := readPassword(cmd, a.password, passwordStdin)
			if err != nil {
				return err
			}

			// Credentials travel in the request body only.
			a.username, a.token = "", ""
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := client.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			cfg := loadOrEmptyUserConfig()
			name := cfg.ProfileName(a.profile)
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}
			cfg.UpdateProfile(name, func(p *Profile) {
				p.Host = a.host
				p.Username = username
				p.Token = tok.Token
			})
			if err := SaveUserConfig(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			return render(cmd, map[string]any{
				"username":   username,
				"profile":    name,
				"expires_at": tok.ExpiresAt,
			}, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Logged in to %s as %s (profile %q, token expires %s)\n",
					a.host, username, name, tok.ExpiresAt.Local().Format(time.RFC3339))
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

// readPassword returns the password from the environment, stdin or an
// interactive prompt, in that order.
func readPassword(cmd *cobra.Command, fromEnv string, fromStdin bool) (string, error) {
	if fromEnv != "" {
		return fromEnv, nil
	}
	if !fromStdin {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal to prompt for a password: use --password-stdin or set %s", envPassword)
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

// tokenInfo is what auth status reports about a bearer token.
type tokenInfo struct {
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// inspectToken decodes the claims of a JWT without verifying its
// signature; only the server holds the key.
func inspectToken(raw string, now time.Time) (tokenInfo, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return tokenInfo{}, fmt.Errorf("decode token: %w", err)
	}
	info := tokenInfo{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
		info.Expired = !now.Before(exp)
	}
	return info, nil
}

func newAuthStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which credentials will be sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := map[string]any{"host": a.host, "method": "none"}
			switch {
			case a.token != "":
				status["method"] = "token"
				info, err := inspectToken(a.token, time.Now())
				if err != nil {
					status["token_error"] = err.Error()
				} else {
					status["token"] = info
				}
			case a.username != "" && a.password != "":
				status["method"] = "basic"
				status["username"] = a.username
			}

			return render(cmd, status, func(w io.Writer) {
				switch status["method"] {
				case "token":
					info, ok := status["token"].(tokenInfo)
					if !ok {
						_, _ = fmt.Fprintf(w, "Using a bearer token for %s (%s)\n", a.host, status["token_error"])
						return
					}
					state := "valid"
					if info.Expired {
						state = "expired"
					}
					_, _ = fmt.Fprintf(w, "Logged in to %s as %s (token %s", a.host, info.Subject, state)
					if info.ExpiresAt != nil {
						_, _ = fmt.Fprintf(w, ", expires %s", info.ExpiresAt.Local().Format(time.RFC3339))
					}
					_, _ = fmt.Fprintln(w, ")")
				case "basic":
					_, _ = fmt.Fprintf(w, "Using basic auth for %s as %s\n", a.host, a.username)
				default:
					_, _ = fmt.Fprintf(w, "Not logged in to %s\n", a.host)
				}
			})
		},
	}
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token from the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			name := cfg.ProfileName(a.profile)
			cfg.UpdateProfile(name, func(p *Profile) { p.Token = "" })
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed token from profile %q\n", name)
			return nil
		},
	}
}
