package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/listpage"
	"github.com/unitdesk/unitdesk/internal/unit"
	"github.com/unitdesk/unitdesk/internal/web"
)

// newCLIApp creates the CLI application with all commands. a may be nil
// when only help or version output is needed.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "unitdesk",
		Usage:   "Unit records admin for capsules and cabins",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(a),
			listCmd(a),
			createCmd(a),
			updateCmd(a),
			deleteCmd(a),
			mcpCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// serveCmd creates the serve command.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind, port := a.cfg.Bind, a.cfg.Port
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
				if port <= 0 || port > 65535 {
					return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
				}
			}

			views := listpage.NewRegistry(a.client, a.cfg.ViewTTL.Std(), a.log, a.metrics)
			defer views.CloseAll()

			srv, err := web.NewServer(views, web.Options{
				Version:           Version,
				Bind:              bind,
				Port:              port,
				HTMXSrc:           a.cfg.HTMXSrc,
				DefaultPageSize:   a.cfg.DefaultPageSize,
				MutationRateLimit: a.cfg.MutationRateLimit,
				Logger:            a.log,
				Metrics:           a.metrics,
				Health: func() map[string]any {
					return map[string]any{
						"remote_api": a.cfg.APIBaseURL,
						"breaker":    a.http.CircuitBreakerState().String(),
					}
				},
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, a.log)
		},
	}
}

// listCmd creates the list command.
func listCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List one page of units",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1, Usage: "Page number"},
			&cli.IntFlag{Name: "size", Aliases: []string{"s"}, Usage: "Page size (default from config)"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name search"},
			&cli.StringFlag{Name: "status", Value: unit.StatusFilterAll, Usage: `Status filter or "all"`},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|table"},
		},
		Action: func(c *cli.Context) error {
			size := a.cfg.DefaultPageSize
			if c.IsSet("size") {
				size = c.Int("size")
			}
			if size <= 0 || size > unit.MaxPageSize {
				return outputError(errors.NewInvalidRequest("size must be between 1 and 100"))
			}
			if c.Int("page") < 1 {
				return outputError(errors.NewInvalidRequest("page must be at least 1"))
			}
			status, err := unit.NormalizeStatusFilter(c.String("status"))
			if err != nil {
				return outputError(err)
			}
			format := c.String("format")
			if format != "json" && format != "table" {
				return outputError(errors.NewInvalidRequest("format must be json or table"))
			}

			page, err := a.client.List(c.Context, unit.Query{
				Page:     c.Int("page"),
				PageSize: size,
				Name:     strings.TrimSpace(c.String("name")),
				Status:   status,
			})
			if err != nil {
				return outputError(err)
			}
			if page.Content == nil {
				page.Content = []unit.Unit{}
			}
			if page.TotalPages == 0 {
				page.TotalPages = page.Pages()
			}
			if format == "table" {
				return outputTable(c.App.Writer, page)
			}
			return outputJSON(c.App.Writer, page)
		},
	}
}

// createCmd creates the create command.
func createCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a unit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Unit name"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "capsule or cabin"},
			&cli.StringFlag{Name: "status", Required: true, Usage: "Unit status"},
		},
		Action: func(c *cli.Context) error {
			if strings.TrimSpace(c.String("name")) == "" {
				return outputError(errors.NewInvalidRequest("name is required"))
			}
			out, err := a.client.Create(c.Context, unit.Fields{
				Name:   c.String("name"),
				Type:   unit.Type(c.String("type")),
				Status: unit.Status(c.String("status")),
			})
			return outputOutcome(c.App.Writer, out, err)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a unit; fields not given keep their value",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "New type"},
			&cli.StringFlag{Name: "status", Usage: "New status"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return outputError(errors.NewInvalidRequest("id is required"))
			}

			var p unit.Patch
			if c.IsSet("name") {
				name := c.String("name")
				if strings.TrimSpace(name) == "" {
					return outputError(errors.NewInvalidRequest("name cannot be empty"))
				}
				p.Name = &name
			}
			if c.IsSet("type") {
				t := unit.Type(c.String("type"))
				p.Type = &t
			}
			if c.IsSet("status") {
				s := unit.Status(c.String("status"))
				p.Status = &s
			}

			out, err := a.client.Apply(c.Context, id, p)
			return outputOutcome(c.App.Writer, out, err)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a unit",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			out, err := a.client.Delete(c.Context, id)
			return outputOutcome(c.App.Writer, out, err)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the unit tools over MCP stdio",
		Action: func(_ *cli.Context) error {
			return a.runMCP()
		},
	}
}

// Helper functions

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputTable writes one page of units as aligned columns.
func outputTable(w io.Writer, page *unit.Page) error {
	table := uitable.New()
	table.MaxColWidth = 40
	table.Wrap = true
	table.AddRow("ID", "NAME", "TYPE", "STATUS")
	for _, u := range page.Content {
		table.AddRow(u.ID, u.Name, u.Type.Label(), u.Status)
	}
	_, err := fmt.Fprintf(w, "%s\n\nPage %d of %d, %s units\n",
		table, page.Page, page.TotalPages, humanize.Comma(int64(page.Total)))
	return err
}

// outputOutcome prints a mutation's answer. An answer the remote API
// refused is an APPLICATION_FAILURE exit.
func outputOutcome(w io.Writer, out *unit.Outcome, err error) error {
	if err != nil {
		return outputError(err)
	}
	if !out.Success {
		return outputError(errors.NewApplicationFailure(out.Message))
	}
	return outputJSON(w, out)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if uErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", uErr.Code, uErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
