package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roomchat",
	Short: "RoomChat coordinates chat rooms: membership, room admins and join approval.",
	Long: `Without a subcommand RoomChat serves the websocket API and the Prometheus
metrics endpoint. Room state lives in Redis; when Redis is unreachable the
process switches to an in-memory copy and keeps serving.`,
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
