package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balamir53/snackforge/internal/ai"
	"github.com/balamir53/snackforge/internal/builder"
	"github.com/balamir53/snackforge/internal/chat"
	"github.com/balamir53/snackforge/internal/server"
	"github.com/balamir53/snackforge/internal/store"
)

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API serving the relational CRUD endpoints, the
conversational agent, and the React Native app builder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		debug := viper.GetBool("debug")

		st, err := store.Open(ctx, viper.GetString("database.driver"), viper.GetString("database.dsn"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		client := ai.NewClientFromConfig(debug)

		buildWF := builder.NewWorkflow(client, viper.GetString("pipeline.project_root"))
		if debug {
			buildWF.SetOutput(os.Stderr)
		}

		srv := server.New(st, chat.NewWorkflow(client), buildWF)

		addr := viper.GetString("server.addr")
		fmt.Printf("[server] listening on %s\n", addr)
		return srv.Router().Run(addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
