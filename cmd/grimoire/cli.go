package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kestrelworks/grimoire/internal/errors"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *runtimeDeps) *cli.App {
	app := &cli.App{
		Name:    "grimoire",
		Usage:   "Session knowledge vault",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(deps),
			compactCmd(deps),
			discoverCmd(deps),
			sessionCmd(deps),
			vaultCmd(deps),
			webCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command. Capture is the hook entry point:
// it exits zero and prints nothing on failure so it can never disrupt the
// hooked process.
func captureCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Append one capture event to the session log (reads content from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ref", Aliases: []string{"r"}, Usage: "External transcript reference"},
			&cli.StringFlag{Name: "actor", Aliases: []string{"a"}, Value: "user", Usage: "Event actor: user|agent"},
			&cli.StringFlag{Name: "tool", Usage: "Tool name for the event"},
			&cli.StringFlag{Name: "target", Usage: "Tool target for the event"},
		},
		Action: func(c *cli.Context) error {
			content := strings.Join(c.Args().Slice(), " ")
			if content == "" && stdinHasData() {
				var err error
				content, err = readStdin()
				if err != nil {
					return nil
				}
			}
			if content == "" {
				return nil
			}

			id, rotated, err := session.Capture(deps.sessions, session.CaptureInput{
				ExternalRef: c.String("ref"),
				Actor:       c.String("actor"),
				Content:     content,
				Tool:        c.String("tool"),
				Target:      c.String("target"),
			})
			if err != nil {
				return nil
			}

			return outputJSON(map[string]any{
				"ok":         true,
				"session_id": id,
				"rotated":    rotated,
			})
		},
	}
}

// compactCmd creates the compact command.
func compactCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:      "compact",
		Usage:     "Extract knowledge from a session log and integrate it into the vault",
		ArgsUsage: "[session-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear-active", Usage: "Clear the active-session pointer afterwards"},
		},
		Action: func(c *cli.Context) error {
			sessionID := c.Args().First()
			if sessionID == "" {
				var err error
				sessionID, err = deps.sessions.GetActive()
				if err != nil {
					return outputError(err)
				}
				if sessionID == "" {
					return outputError(errors.NewInvalidRequest("no session-id given and no active session"))
				}
			}

			report, err := deps.pipe.Compact(c.Context, sessionID)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("clear-active") {
				if err := deps.sessions.ClearActive(); err != nil {
					return outputError(err)
				}
			}

			return outputJSON(map[string]any{
				"session_id": sessionID,
				"report":     report,
			})
		},
	}
}

// discoverCmd creates the discover command.
func discoverCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Usage:     "Scan a project tree and integrate extracted knowledge into the vault",
		ArgsUsage: "[project-root]",
		Action: func(c *cli.Context) error {
			root := c.Args().First()
			if root == "" {
				var err error
				root, err = os.Getwd()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			report, err := deps.pipe.Discover(c.Context, root)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"project_root": root,
				"report":       report,
			})
		},
	}
}

// sessionCmd creates the session command.
func sessionCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Show or clear the active session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Clear the active-session pointer"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("clear") {
				if err := deps.sessions.ClearActive(); err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"cleared": true})
			}

			id, err := deps.sessions.GetActive()
			if err != nil {
				return outputError(err)
			}
			if id == "" {
				return outputJSON(map[string]any{"active": false})
			}

			text, err := deps.sessions.ReadAll(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"active":     true,
				"session_id": id,
				"log_bytes":  len(text),
			})
		},
	}
}

// vaultCmd creates the vault command with tree/read subcommands.
func vaultCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Inspect the knowledge vault",
		Subcommands: []*cli.Command{
			{
				Name:  "tree",
				Usage: "List all vault documents",
				Action: func(c *cli.Context) error {
					docs, err := deps.vault.Tree()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{
						"documents": docs,
						"count":     len(docs),
					})
				},
			},
			{
				Name:      "read",
				Usage:     "Print one vault document",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return outputError(errors.NewInvalidRequest("path is required"))
					}
					content, err := deps.vault.ReadDocument(path)
					if err != nil {
						return outputError(err)
					}
					if content == "" {
						return outputError(errors.NewInvalidRequest("no such document: " + path))
					}
					fmt.Print(content)
					return nil
				},
			},
		},
	}
}

// webCmd creates the web command.
func webCmd(deps *runtimeDeps) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the vault browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 7233, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(deps.vault, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if gErr, ok := err.(*errors.GrimoireError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
