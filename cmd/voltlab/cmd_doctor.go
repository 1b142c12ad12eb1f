package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voltlab/internal/issues"
	"voltlab/internal/sandbox"
)

// doctorCmd checks that the environment can actually run circuits
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, engine, and issue database health",
	Long: `Runs a series of self-checks: config validity, a smoke-test circuit
through the sandboxed interpreter and simulator, and issue database
access. Exits nonzero if any check fails.`,
	RunE: runDoctor,
}

// doctorCircuit is a trivial divider; if this does not simulate, nothing will.
const doctorCircuit = `circuit := NewCircuit("doctor")
circuit.V("supply", "vin", gnd, u_V(1))
circuit.R("top", "vin", "vout", u_kOhm(1))
circuit.R("bottom", "vout", gnd, u_kOhm(1))
simulator := circuit.Simulator()
analysis := simulator.Transient(u_ms(0.1), u_ms(1))
`

func runDoctor(cmd *cobra.Command, args []string) error {
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", name, err)
			return
		}
		fmt.Printf("✓ %s\n", name)
	}

	check("config", cfg.Validate())
	check("issue database", checkIssueDB())
	check("sandbox engine", checkEngine())

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		fmt.Printf("! llm: no API key for provider %q; run and triage work, ask will not\n", cfg.LLM.Provider)
	} else {
		fmt.Printf("✓ llm provider %q configured\n", cfg.LLM.Provider)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("All checks passed.")
	return nil
}

func checkIssueDB() error {
	store, err := issues.Open(cfg.Issues.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Summary()
	return err
}

func checkEngine() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	executor := sandbox.New()
	analysis, err := executor.Execute(ctx, doctorCircuit)
	if err != nil {
		return err
	}
	if len(analysis.Time) == 0 {
		return fmt.Errorf("smoke circuit produced no time points")
	}

	sig, ok := analysis.Nodes["vout"]
	if !ok || sig.Len() != len(analysis.Time) {
		return fmt.Errorf("smoke circuit produced no vout signal")
	}
	return nil
}
