// nitro-sim runs X1-Nitro programs against the host simulator.
//
// It loads an invocation scenario from YAML, executes it through
// hostsim.Runtime with the example programs registered, and prints the
// resulting account state. With -store the post-execution state is
// committed to a bolt database; -snapshot-out additionally writes a
// compressed dump of that store.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fortiblox/x1-nitro/examples/counter"
	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/hostsim"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	scenarioPath = flag.String("scenario", "", "Scenario YAML file to execute (required)")
	storePath    = flag.String("store", "", "Bolt database for committed account state")
	snapshotOut  = flag.String("snapshot-out", "", "Write a compressed store snapshot to this path")
	verbose      = flag.Bool("v", false, "Enable debug logging")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("nitro-sim %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "nitro-sim: -scenario is required")
		flag.Usage()
		os.Exit(2)
	}

	log := newLogger(*verbose)
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("run failed", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	sc, err := hostsim.LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	programID, err := sc.ProgramID()
	if err != nil {
		return err
	}
	seeds, err := sc.Seeds()
	if err != nil {
		return err
	}
	data, err := sc.InstructionData()
	if err != nil {
		return err
	}

	var store *hostsim.Store
	if *storePath != "" {
		store, err = hostsim.OpenStore(*storePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	rt := hostsim.NewRuntime(hostsim.Config{Logger: log, Store: store})
	rt.RegisterProgram(counter.ProgramID, counter.Process)

	log.Info("executing scenario",
		zap.String("scenario", sc.Name),
		zap.String("program", programID.String()),
		zap.Int("accounts", len(seeds)),
	)

	result, err := rt.Execute(programID, seeds, data)
	if err != nil {
		return err
	}

	if result.Code != entry.Success {
		fmt.Printf("FAILED (code %d): %s\n", result.Code, result.Err)
		os.Exit(1)
	}

	fmt.Println("OK")
	for i, acc := range result.Accounts {
		fmt.Printf("  [%d] %s lamports=%d owner=%s data=%s\n",
			i, acc.Key, acc.Lamports, acc.Owner, hex.EncodeToString(acc.Data))
	}

	if store != nil {
		hash, err := store.StateHash()
		if err != nil {
			return err
		}
		fmt.Printf("state hash: %s\n", hex.EncodeToString(hash[:]))

		if *snapshotOut != "" {
			f, err := os.Create(*snapshotOut)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := store.Snapshot(f); err != nil {
				return err
			}
			log.Info("snapshot written", zap.String("path", *snapshotOut))
		}
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "nitro-sim: logger: %v\n", err)
		os.Exit(1)
	}
	return log
}
