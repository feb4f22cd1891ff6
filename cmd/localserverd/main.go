// Command localserverd runs the reactor against a YAML config file.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log, _ := zap.NewProduction()
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}
