// Command clean backs up the lists and users documents, removes malformed and
// duplicate records from them and prints a report of what was removed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todo-api/cleaning"
	"todo-api/config"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a TOML config file")
		dataFile   = flag.String("data", "", "lists document to clean (overrides config)")
		usersFile  = flag.String("users", "", "users document to clean (overrides config)")
		backupDir  = flag.String("backup-dir", "", "directory receiving the backup (overrides config)")
		dryRun     = flag.Bool("dry-run", false, "report without backing up or writing")
		asJSON     = flag.Bool("json", false, "print the report as JSON")
	)
	flag.Parse()

	logger := log.New()
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	opts := cleaning.Options{
		DataFile:  cfg.DataFile,
		UsersFile: cfg.UsersFile,
		BackupDir: cfg.BackupDir,
		DryRun:    *dryRun,
	}
	if *dataFile != "" {
		opts.DataFile = *dataFile
	}
	if *usersFile != "" {
		opts.UsersFile = *usersFile
	}
	if *backupDir != "" {
		opts.BackupDir = *backupDir
	}

	p, err := cleaning.New(opts, logger)
	if err != nil {
		logger.Fatal(err)
	}
	report, err := p.Run()
	if err != nil {
		logger.WithError(err).Error("cleaning failed")
		os.Exit(1)
	}

	if *asJSON {
		out, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			logger.Fatalf("encode report: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	if err := report.WriteText(os.Stdout); err != nil {
		logger.Fatalf("write report: %v", err)
	}
}
