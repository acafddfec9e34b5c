package main

import (
	"os/signal"
	"syscall"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/assistant"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/config"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newMCPCommand() *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve reading tools to an assistant over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadOffline(viper.GetViper())
			if err != nil {
				return err
			}
			readerID, err := reading.NewUserID(reader)
			if err != nil {
				return err
			}
			app, err := openApplication(appConfig)
			if err != nil {
				return err
			}
			defer app.Close()

			readers, err := users.NewService(users.ServiceConfig{Database: app.db})
			if err != nil {
				return err
			}
			known, err := readers.Known(cmd.Context(), readerID)
			if err != nil {
				return err
			}
			if !known {
				app.logger.Warn("reader has never signed in", zap.String("reader_id", readerID.String()))
			}

			tools, err := assistant.NewServer(assistant.Config{
				Reading: app.reading,
				Catalog: app.library,
				Reader:  readerID,
				Version: version,
				Logger:  app.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tools.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&reader, "user", "", "Reader id the tools act for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
