package main

import (
	"github.com/MarcoPoloResearchLab/companion/backend/internal/config"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultImportOwner = "library"

func newImportCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Register every text and markdown file in a directory as a public book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadOffline(viper.GetViper())
			if err != nil {
				return err
			}
			ownerID, err := reading.NewUserID(owner)
			if err != nil {
				return err
			}
			app, err := openApplication(appConfig)
			if err != nil {
				return err
			}
			defer app.Close()

			importer := library.NewImporter(app.library, afero.NewOsFs(), ownerID, app.logger)
			report, err := importer.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.logger.Info("import finished",
				zap.String("directory", args[0]),
				zap.Int("imported", len(report.Imported)),
				zap.Int("skipped", len(report.Skipped)))
			cmd.Printf("imported %d books, skipped %d files\n", len(report.Imported), len(report.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", defaultImportOwner, "Reader id recorded as the uploader")
	return cmd
}
