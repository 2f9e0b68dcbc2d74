// clashico runs the Clash token sale program against a local ledger.
//
// The ledger lives in a badger accounts database under the configured data
// directory; every transaction is executed by the native runtime and,
// optionally, recorded in a bbolt journal next to it. There are no
// signatures: the wallet flags of a command stand in for signed accounts.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/journal"
	"github.com/fortiblox/clash-ico/pkg/runtime"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// env is what a command runs against.
type env struct {
	config  Config
	db      *accounts.BadgerDB
	journal *journal.Store
	rt      *runtime.Runtime
	out     io.Writer
	log     *logrus.Entry
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clashico", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "clashico.yaml", "configuration file path")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(out, "clashico %s (%s)\n", Version, GitCommit)
		return nil
	}
	if fs.NArg() == 0 {
		usage(fs)
		return errors.New("no command")
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage(fs)
		return errors.Errorf("unknown command %q", name)
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	configureLogger(config)

	e, err := openEnv(config, out)
	if err != nil {
		return err
	}
	defer e.close()

	e.log = e.log.WithField("command", name)
	return cmd.run(e, fs.Args()[1:])
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: clashico [-config file] <command> [arguments]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(w, "\nflags:\n")
	fs.PrintDefaults()
}

func openEnv(config Config, out io.Writer) (*env, error) {
	log := logrus.StandardLogger().WithField("type", "clashico")

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	dbConfig := accounts.DefaultBadgerDBConfig(filepath.Join(config.DataDir, "accounts"))
	dbConfig.SyncWrites = config.SyncWrites
	dbConfig.Logger = log.WithField("component", "badger")
	db, err := accounts.NewBadgerDB(dbConfig)
	if err != nil {
		return nil, err
	}

	e := &env{config: config, db: db, out: out, log: log}

	opts := []runtime.Option{runtime.WithLogger(log)}
	if config.Journal {
		journalConfig := journal.DefaultConfig(filepath.Join(config.DataDir, "journal.db"))
		journalConfig.NoSync = !config.SyncWrites
		e.journal, err = journal.Open(journalConfig)
		if err != nil {
			db.Close()
			return nil, err
		}
		opts = append(opts, runtime.WithJournal(e.journal))
	}

	e.rt = runtime.New(db, opts...)
	return e, nil
}

func (e *env) close() {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			e.log.WithError(err).Warn("failed to close journal")
		}
	}
	if err := e.db.Close(); err != nil {
		e.log.WithError(err).Warn("failed to close accounts database")
	}
}
