// Package main is the entry point for the Interview Master web front end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "jobcoach",
	Short:         "Interview Master web front end",
	Long:          "Server-rendered front end for tracking job applications, ATS scoring and interview practice against the Interview Master API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
