package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"attn-signals/cmd/punchgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, cutting, drift")
	outDir := flag.String("out", "./.cache", "Output directory for the punch log")
	term := flag.String("term", "synthetic", "Term name, used as the file name")
	students := flag.Int("students", 120, "Number of students to generate")
	weeks := flag.Int("weeks", 12, "Number of school weeks")
	seed := flag.Int64("seed", 1, "Random seed")
	start := flag.String("start", "2024-09-09", "First day of the term (YYYY-MM-DD)")
	flag.Parse()

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		fmt.Printf("Invalid start date: %v\n", err)
		os.Exit(1)
	}

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Students: *students,
		Weeks:    *weeks,
		Seed:     *seed,
		Start:    startDate,
	}

	fmt.Printf("Generating scenario '%s' (%d students, %d weeks) to %s...\n", cfg.Scenario, cfg.Students, cfg.Weeks, *outDir)

	punches := engine.Generate(cfg)
	if err := engine.Save(*outDir, *term, punches); err != nil {
		fmt.Printf("Failed to save punches: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %d punches.\n", len(punches))
}
