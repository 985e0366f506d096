// SignBridge - real-time mediation between sign-language and speaking users.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signbridge",
	Short: "Real-time mediation pipeline between sign-language and speaking users",
	Long: `SignBridge converts recognized sign sequences or speech transcripts into
the other modality, with a cache-backed emergency fast path that bypasses
external mediation for medical and emergency phrases.`,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
