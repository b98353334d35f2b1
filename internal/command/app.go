package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"landform/internal/actions"
	"landform/internal/config"
	"landform/internal/storage"
)

// RunOptions carries what the run and serve commands need beyond config.
type RunOptions struct {
	FormPath     string
	ProjectID    string
	HiddenFields map[string]string
	In           io.Reader
	Out          io.Writer
}

type Deps struct {
	LoadConfig   func() config.Config
	RunForm      func(context.Context, config.Config, RunOptions) error
	ServeForm    func(context.Context, config.Config, RunOptions) error
	RunMigrateUp func(context.Context, config.Config) error
	// OpenGateway opens the configured storage; close releases it.
	OpenGateway func(context.Context, config.Config) (gw *storage.Gateway, close func() error, err error)
}

func BuildApp(deps Deps) *cli.App {
	formFlags := []cli.Flag{
		&cli.StringFlag{Name: "project", Usage: "override the form's project id"},
		&cli.StringFlag{Name: "storage", Usage: "sqlite, badger, redis, memory or none"},
		&cli.StringSliceFlag{Name: "hidden", Usage: "hidden field as key=value (repeatable)"},
	}
	return &cli.App{
		Name:  "landform",
		Usage: "fill in hosted forms from the terminal or a local renderer",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "fill in a form interactively",
				ArgsUsage: "<form.json|form.toml>",
				Flags:     formFlags,
				Action: func(c *cli.Context) error {
					cfg, opts, err := formCommand(c, deps)
					if err != nil {
						return err
					}
					if deps.RunForm == nil {
						return errors.New("form runner is not configured")
					}
					return deps.RunForm(c.Context, cfg, opts)
				},
			},
			{
				Name:      "serve",
				Usage:     "expose a form session over HTTP and websocket",
				ArgsUsage: "<form.json|form.toml>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "listen host"},
					&cli.IntFlag{Name: "port", Usage: "listen port"},
				}, formFlags...),
				Action: func(c *cli.Context) error {
					cfg, opts, err := formCommand(c, deps)
					if err != nil {
						return err
					}
					if host := c.String("host"); host != "" {
						cfg.LocalHost = host
					}
					if port := c.Int("port"); port > 0 {
						cfg.LocalPort = port
					}
					if deps.ServeForm == nil {
						return errors.New("form server is not configured")
					}
					return deps.ServeForm(c.Context, cfg, opts)
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(c *cli.Context) error {
							cfg := loadConfig(deps)
							if deps.RunMigrateUp == nil {
								return errors.New("migrate up runner is not configured")
							}
							return deps.RunMigrateUp(c.Context, cfg)
						},
					},
				},
			},
			{
				Name:  "progress",
				Usage: "inspect saved form progress",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "print the saved snapshot and submission marker",
						ArgsUsage: "<projectId>",
						Action: func(c *cli.Context) error {
							projectID, err := requireArg(c, "projectId")
							if err != nil {
								return err
							}
							return withGateway(c, deps, func(gw *storage.Gateway) error {
								return writeJSON(c.App.Writer, map[string]any{
									"projectId": projectID,
									"snapshot":  gw.LoadProgress(projectID),
									"submitted": gw.HasSubmitted(projectID),
								})
							})
						},
					},
					{
						Name:      "clear",
						Usage:     "delete the saved snapshot",
						ArgsUsage: "<projectId>",
						Action: func(c *cli.Context) error {
							projectID, err := requireArg(c, "projectId")
							if err != nil {
								return err
							}
							return withGateway(c, deps, func(gw *storage.Gateway) error {
								gw.ClearProgress(projectID)
								_, err := fmt.Fprintf(c.App.Writer, "cleared progress for %s\n", projectID)
								return err
							})
						},
					},
				},
			},
			{
				Name:  "consent",
				Usage: "read or change the cookie consent flag",
				Subcommands: []*cli.Command{
					{
						Name:  "get",
						Usage: "print the consent flag",
						Action: func(c *cli.Context) error {
							return withGateway(c, deps, func(gw *storage.Gateway) error {
								_, err := fmt.Fprintln(c.App.Writer, gw.HasCookieConsent())
								return err
							})
						},
					},
					{
						Name:      "set",
						Usage:     "grant or withdraw consent",
						ArgsUsage: "<true|false>",
						Action: func(c *cli.Context) error {
							raw, err := requireArg(c, "value")
							if err != nil {
								return err
							}
							granted, err := strconv.ParseBool(raw)
							if err != nil {
								return fmt.Errorf("consent must be true or false, got %q", raw)
							}
							return withGateway(c, deps, func(gw *storage.Gateway) error {
								gw.SetCookieConsent(granted)
								return nil
							})
						},
					},
				},
			},
			{
				Name:      "actions",
				Usage:     "list the data-lf-action elements of a template",
				ArgsUsage: "<template.html>",
				Action: func(c *cli.Context) error {
					path, err := requireArg(c, "template")
					if err != nil {
						return err
					}
					raw, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read template: %w", err)
					}
					found, err := actions.Parse(string(raw))
					if err != nil {
						return err
					}
					if found == nil {
						found = []actions.Action{}
					}
					return writeJSON(c.App.Writer, found)
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func formCommand(c *cli.Context, deps Deps) (config.Config, RunOptions, error) {
	path, err := requireArg(c, "form")
	if err != nil {
		return config.Config{}, RunOptions{}, err
	}
	cfg := loadConfig(deps)
	if s := strings.ToLower(strings.TrimSpace(c.String("storage"))); s != "" {
		switch s {
		case config.StorageSQLite, config.StorageBadger, config.StorageRedis, config.StorageMemory, config.StorageNone:
			cfg.Storage = s
		default:
			return config.Config{}, RunOptions{}, fmt.Errorf("unknown storage %q", s)
		}
	}
	hidden, err := parseHidden(c.StringSlice("hidden"))
	if err != nil {
		return config.Config{}, RunOptions{}, err
	}
	return cfg, RunOptions{
		FormPath:     path,
		ProjectID:    strings.TrimSpace(c.String("project")),
		HiddenFields: hidden,
		In:           c.App.Reader,
		Out:          c.App.Writer,
	}, nil
}

func parseHidden(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("hidden field must be key=value, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return v, nil
}

func withGateway(c *cli.Context, deps Deps, fn func(*storage.Gateway) error) error {
	if deps.OpenGateway == nil {
		return errors.New("storage is not configured")
	}
	gw, closeFn, err := deps.OpenGateway(c.Context, loadConfig(deps))
	if err != nil {
		return err
	}
	defer func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}()
	return fn(gw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
