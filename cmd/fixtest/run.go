package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tturner/fixtest/internal/capture"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/logging"
	"github.com/tturner/fixtest/internal/report"
	"github.com/tturner/fixtest/internal/testcases"
	"github.com/tturner/fixtest/internal/transport"
)

type runFlags struct {
	config     string
	logFile    string
	pcapFile   string
	reportFile string
	verbose    bool
	debug      bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [test...]",
		Short: "Run test cases against the configured endpoints",
		Long: `Run one or more test cases. Each test establishes the connections its
script needs (dialing clients, listening servers), walks the scripted
conversation, and reports one status line per test.

With no arguments every built-in test case runs, in order. The
connections, comp IDs and wire dialect come from the config file.`,
		Example: `  # Run every test case
  fixtest run

  # Run a single test with verbose logging
  fixtest run logon --verbose

  # Record the conversation to a pcap file
  fixtest run order-flow --pcap session.pcap

  # Write a machine-readable run report
  fixtest run --report run.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runTests(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "fixtest.yaml", "Path to the YAML configuration file")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write the log to a file as well as stdout")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Record all connections to a pcap file")
	cmd.Flags().StringVar(&flags.reportFile, "report", "", "Write a run report (.json or .csv)")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Debug logging, including full message dumps")

	return cmd
}

func runTests(flags *runFlags, names []string) error {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Defaults.LogLevel)
	if err != nil {
		return err
	}
	if flags.verbose && level < logging.LogLevelVerbose {
		level = logging.LogLevelVerbose
	}
	if flags.debug {
		level = logging.LogLevelDebug
	}
	logFile := flags.logFile
	if logFile == "" {
		logFile = cfg.Defaults.LogFile
	}
	logger, err := logging.NewLogger(level, logFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	var rec transport.Recorder
	pcapFile := flags.pcapFile
	if pcapFile == "" {
		pcapFile = cfg.Defaults.CaptureFile
	}
	if pcapFile != "" {
		writer, err := capture.NewWriter(pcapFile)
		if err != nil {
			return err
		}
		defer writer.Close()
		rec = writer
		logger.Info("recording connections to %s", pcapFile)
	}

	if len(names) == 0 {
		names = testcases.Names()
	}

	// resolve every name up front so a typo fails before anything runs
	cases := make([]controller.TestCase, 0, len(names))
	for _, name := range names {
		tc, err := testcases.Get(name, cfg)
		if err != nil {
			return err
		}
		cases = append(cases, tc)
	}

	// a signal aborts the running test; remaining tests are skipped
	var (
		mu      sync.Mutex
		current *controller.Runner
		stopped bool
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		mu.Lock()
		stopped = true
		if current != nil {
			current.Interrupt(fmt.Sprintf("received %s", sig))
		}
		mu.Unlock()
	}()

	passed := 0
	interrupted := false
	results := make([]controller.Result, 0, len(cases))
	for i, tc := range cases {
		runner := controller.NewRunner(cfg, logger, rec)

		mu.Lock()
		if stopped {
			mu.Unlock()
			interrupted = true
			break
		}
		current = runner
		mu.Unlock()

		result := runner.Run(tc)
		results = append(results, result)
		switch result.Outcome {
		case controller.Passed:
			passed++
		case controller.Interrupted:
			interrupted = true
		}
		if interrupted {
			logger.Error("aborted after %d of %d tests", i+1, len(cases))
			break
		}
	}

	if flags.reportFile != "" {
		descs := make(map[string]string, len(cases))
		for _, tc := range cases {
			descs[tc.ID()] = tc.Description()
		}
		r := report.Build(flags.config, version, commit, results, descs)
		write := report.WriteJSON
		if filepath.Ext(flags.reportFile) == ".csv" {
			write = report.WriteCSV
		}
		if err := write(flags.reportFile, r); err != nil {
			logger.Error("%v", err)
		} else {
			logger.Info("wrote report to %s", flags.reportFile)
		}
	}

	fmt.Printf("%d of %d tests passed\n", passed, len(cases))
	if interrupted {
		os.Exit(130)
	}
	if passed != len(cases) {
		os.Exit(1)
	}
	return nil
}
