// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"grimm.is/appwall/cmd"
	"grimm.is/appwall/internal/config"
	"grimm.is/appwall/internal/inject"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(cmd.ExitUsage)
	}

	switch os.Args[1] {
	case "helper":
		helperFlags := flag.NewFlagSet("helper", flag.ExitOnError)
		configFile := helperFlags.String("config", config.DefaultConfigFile, "Configuration file")
		helperFlags.StringVar(configFile, "c", config.DefaultConfigFile, "Configuration file (short)")
		logFile := helperFlags.String("log", "", "Log file (overrides log_file)")
		iface := helperFlags.String("interface", "", "Capture interface (overrides interface)")
		replay := helperFlags.String("pcap", "", "Replay packets from a pcap file instead of capturing")
		verbose := helperFlags.Bool("v", false, "Debug logging")
		helperFlags.Parse(os.Args[2:])

		err := cmd.RunHelper(cmd.HelperOptions{
			ConfigFile: *configFile,
			LogFile:    *logFile,
			Interface:  *iface,
			ReplayFile: *replay,
			Verbose:    *verbose,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Helper failed: %v\n", err)
			os.Exit(cmd.ExitCode(err))
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		rulesFile := checkFlags.String("rules", "", "Rule file (default: rules_file from config)")
		configFile := checkFlags.String("config", config.DefaultConfigFile, "Configuration file")
		verbose := checkFlags.Bool("v", false, "Print the number of rules loaded")
		checkFlags.Parse(os.Args[2:])

		if checkFlags.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "Usage: appwall check [-rules FILE] APP DOMAIN")
			os.Exit(cmd.ExitUsage)
		}
		if *rulesFile == "" {
			cfg, err := config.Load(*configFile, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
				os.Exit(cmd.ExitCode(err))
			}
			*rulesFile = cfg.RulesFile
		}
		if err := cmd.RunCheck(os.Stdout, *rulesFile, checkFlags.Arg(0), checkFlags.Arg(1), *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(cmd.ExitCode(err))
		}

	case "reset":
		resetFlags := flag.NewFlagSet("reset", flag.ExitOnError)
		addr := resetFlags.String("addr", fmt.Sprintf("%s:%d", config.DefaultListenAddress, config.DefaultControlPort), "Helper control address")
		src := resetFlags.String("src", "", "Source address")
		dst := resetFlags.String("dst", "", "Destination address")
		sport := resetFlags.Uint("sport", 0, "Source port")
		dport := resetFlags.Uint("dport", 0, "Destination port")
		seq := resetFlags.Uint("seq", 0, "Sequence number")
		ack := resetFlags.Uint("ack", 0, "Acknowledgement number")
		timeout := resetFlags.Duration("timeout", 5*time.Second, "Connect timeout")
		resetFlags.Parse(os.Args[2:])

		req := inject.Request{
			Src:   *src,
			Dst:   *dst,
			SPort: uint16(*sport),
			DPort: uint16(*dport),
			Seq:   uint32(*seq),
			Ack:   uint32(*ack),
		}
		if err := cmd.RunReset(*addr, req, *timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
			os.Exit(cmd.ExitCode(err))
		}

	case "version", "-v", "--version":
		fmt.Printf("appwall %s\n", Version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(cmd.ExitUsage)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: appwall <command> [options]

Commands:
  helper    Run the privileged capture and reset helper
  check     Evaluate a rule file for APP DOMAIN
  reset     Ask a running helper to reset a TCP connection
  version   Print version`)
}
