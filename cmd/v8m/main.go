package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/internal/driver"
	"github.com/bplaa-yai/v8m-rb/internal/logger"
	"github.com/bplaa-yai/v8m-rb/pkg/color"
)

// Main entry point for the v8m self-check runner.
func main() {
	options := driver.Options{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.StringVar(&options.ConfigFile, "c", "", "Configuration file (v8m.toml)")
	flag.StringVar(&options.SaveSnapshot, "s", "", "Write the stub cache snapshot to this file (\"-\" for the configured path)")
	flag.StringVar(&options.LoadSnapshot, "l", "", "Warm the stub cache from this snapshot")
	flag.StringVar(&options.Expression, "e", "", "Evaluate an expression through the binary op stubs")

	flag.Parse()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if flag.NArg() > 0 {
		log.Fatal("Unexpected arguments", "args", flag.Args(), "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	if err := options.Run(); err != nil {
		log.Fatal("Self-check failed", "error", err)
	}
}
