// Command dlogg2csv is a long-running agent that periodically polls
// one or more D-LOGG/UVR 61-3 heating-controller lines and appends one
// CSV row per poll to a log file.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dloggcsv.dev/configtree"
	"dloggcsv.dev/csvlog"
	_ "dloggcsv.dev/driver/dlogguvr"
	"dloggcsv.dev/fieldbus"
	"dloggcsv.dev/logging"
)

// Exit codes, preserved from the original agent's main_bailOut
// categories.
const (
	exitOK          = 0
	exitBadOptions  = 1
	exitBadConfig   = 2
	exitLoggingInit = 3
	exitNetwork     = 4
	exitOutputFile  = 5
	exitLocalSystem = 6
)

const (
	defaultConfig       = "/etc/dlogg2csv.conf"
	defaultPollInterval = 60 * time.Second
	defaultTimeHeader   = "Current Time/Date"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("dlogg2csv", flag.ContinueOnError)
	configPath := fs.String("c", defaultConfig, "path to the configuration file")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitBadOptions
	}

	if err := logging.SetLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "dlogg2csv: invalid -log-level: %v\n", err)
		return exitLoggingInit
	}

	cfgBytes, err := os.ReadFile(*configPath)
	if err != nil {
		logging.Error().Err(err).Str("path", *configPath).Msg("can't read configuration file")
		return exitBadConfig
	}
	root, err := configtree.Load(cfgBytes)
	if err != nil {
		logging.Error().Err(err).Msg("can't parse configuration file")
		return exitBadConfig
	}

	registry, err := fieldbus.LoadConfig(root)
	if err != nil {
		logging.Error().Err(err).Msg("can't build driver registry from configuration")
		return exitNetwork
	}
	defer registry.Close()

	outPath, ok := root.String("outFile")
	if !ok {
		logging.Error().Msg(`configuration is missing the required "outFile" directive`)
		return exitBadConfig
	}
	timeHeader, ok := root.String("timeHeader")
	if !ok {
		timeHeader = defaultTimeHeader
	}
	fieldDelimiter, ok := root.String("fieldDelimiter")
	if !ok {
		fieldDelimiter = ";"
	}
	timeLayout := csvlog.StrftimeToGoLayout("%Y-%m-%d %H:%M:%S")
	if format, ok := root.String("timeFormat"); ok {
		timeLayout = csvlog.StrftimeToGoLayout(format)
	}
	pollInterval := defaultPollInterval
	if secs, ok := root.Int("pollInterval"); ok {
		pollInterval = time.Duration(secs) * time.Second
	}

	needsHeader := true
	fi, err := os.Stat(outPath)
	switch {
	case err == nil:
		needsHeader = fi.Size() == 0
	case os.IsNotExist(err):
		// needsHeader stays true: the file will be created below.
	default:
		logging.Error().Err(err).Str("path", outPath).Msg("can't stat output file")
		return exitLocalSystem
	}
	out, err := os.OpenFile(outPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error().Err(err).Str("path", outPath).Msg("can't open output file")
		return exitOutputFile
	}
	defer out.Close()

	writer := csvlog.NewWriter(out)
	writer.SetDelimiter(fieldDelimiter)
	writer.SetTimeLayout(timeLayout)
	if needsHeader {
		names := make([]string, 0, len(registry.Channels()))
		for _, ch := range registry.Channels() {
			names = append(names, ch.Name)
		}
		if err := writer.WriteHeader(timeHeader, names); err != nil {
			logging.Error().Err(err).Msg("can't write CSV header")
			return exitOutputFile
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if code := pollOnce(registry, writer); code != exitOK {
			return code
		}
		select {
		case <-quit:
			return exitOK
		case <-ticker.C:
		}
	}
}

// pollOnce synchronizes every configured line, fetches every channel,
// and appends one CSV row. A failed Sync, or an error returned by
// FetchAll, is logged and no row is written for this poll; a channel
// whose value comes back Error-tagged is written as the NaN marker.
// Only a failure to write the CSV file itself is fatal.
func pollOnce(registry *fieldbus.Registry, writer *csvlog.Writer) int {
	if err := registry.Sync(); err != nil {
		logging.Warn().Err(err).Msg("sync failed, skipping this poll")
		return exitOK
	}

	vals, err := registry.FetchAll()
	if err != nil {
		logging.Warn().Err(err).Msg("fetch failed")
		return exitOK
	}

	if err := writer.WriteRow(time.Now(), vals); err != nil {
		logging.Error().Err(err).Msg("can't write to the CSV file anymore")
		return exitOutputFile
	}
	return exitOK
}
