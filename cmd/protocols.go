package cmd

import (
	"fmt"

	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List rtmp url schemes and whether push supports them",
	Run: func(cmd *cobra.Command, args []string) {
		ok := color.New(color.FgGreen).SprintFunc()
		no := color.New(color.FgRed).SprintFunc()
		for _, p := range rtmp.Protocols {
			status := no("unsupported")
			if rtmp.IsSupported(p) {
				status = ok("supported")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", p, status)
		}
	},
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
}
