package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ogurasousui/codex-contact-directory/internal/app"
	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/config"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/logging"
)

type cli struct {
	configPath string
	app        *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "contactctl",
		Short:         "Manage the contact directory from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")

	root.AddCommand(newImportCmd(c), newListCmd(c), newFindCmd(c))
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "assets/local.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import employees from a CSV, JSON or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer c.close()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			result, err := c.app.Pipeline.Ingest(cmd.Context(), ingest.Upload{
				Content:     content,
				ContentType: contentType,
				Filename:    filepath.Base(args[0]),
			})
			if err != nil {
				return describe(err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"batchId": result.BatchID.String(),
				"format":  string(result.Format),
				"count":   result.Count,
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "declared content type (defaults to one guessed from the file extension)")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()

			result, err := c.app.Employees.ListEmployees(cmd.Context(), employee.ListEmployeesInput{Page: page, PageSize: pageSize})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"content":       toRows(result.Employees),
				"page":          result.Page,
				"pageSize":      result.PageSize,
				"totalElements": result.TotalElements,
				"totalPages":    result.TotalPages,
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "page size (1-100)")
	return cmd
}

func newFindCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Find employees by exact name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer c.close()

			found, err := c.app.Employees.FindByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), toRows(found))
		},
	}
}

type row struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Tel    string `json:"tel"`
	Joined string `json:"joined"`
}

func toRows(employees []*employee.Employee) []row {
	out := make([]row, 0, len(employees))
	for _, e := range employees {
		out = append(out, row{ID: e.ID, Name: e.Name, Email: e.Email, Tel: e.Tel, Joined: e.Joined.Format("2006-01-02")})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe は入力起因のエラーをそのまま、それ以外は取り込み失敗として返します。
func describe(err error) error {
	if errors.Is(err, ingest.ErrInvalidData) || errors.Is(err, ingest.ErrUnsupportedFormat) {
		return err
	}
	if errors.Is(err, employee.ErrEmailAlreadyExists) {
		return errors.New("import rejected: email already exists")
	}
	return fmt.Errorf("import failed: %w", err)
}
