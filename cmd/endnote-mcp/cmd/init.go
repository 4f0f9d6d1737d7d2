package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
)

func newInitCmd() *cobra.Command {
	var xmlPath string
	var pdfDir string
	var dataDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a configuration file pointing at your EndNote XML export
and PDF attachment directory. All other settings start at their
defaults and can be edited in place afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := configPath
			if target == "" {
				target = config.DefaultPath()
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}

			cfg := config.New()
			cfg.Library.XMLPath = xmlPath
			cfg.Library.PDFDir = pdfDir
			if dataDir != "" {
				cfg.Storage.DataDir = dataDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(target); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Next: run 'endnote-mcp index' to build the library index.")
			return nil
		},
	}

	cmd.Flags().StringVar(&xmlPath, "xml", "", "EndNote XML export file (required)")
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "Directory holding PDF attachments")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for the derived index (default: platform data dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	_ = cmd.MarkFlagRequired("xml")

	return cmd
}
