package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"sort"

	"dtfiber/pkg/config"
	"dtfiber/pkg/fiber"
	"dtfiber/pkg/reconstruction"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "dtfiber.yaml", "Path to the YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of CPU cores to use (default: all available)")
	fibersCSV := flag.String("fibers", "", "Output CSV of fiber points (overrides the configuration)")
	summaryCSV := flag.String("summary", "", "Output CSV of per-fiber summaries (overrides the configuration)")
	extractSlices := flag.Bool("extract-slices", false, "Save anisotropy map slices with the fibers drawn in")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices (overrides the configuration)")
	verbose := flag.Bool("verbose", false, "Log progress and diagnostics to stderr")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *fibersCSV != "" {
		cfg.Output.FibersCSV = *fibersCSV
	}
	if *summaryCSV != "" {
		cfg.Output.SummaryCSV = *summaryCSV
	}
	if *extractSlices {
		cfg.Output.ExtractSlices = true
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	var logger *slog.Logger
	if cfg.Output.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	fmt.Println("================================")
	fmt.Println("DETERMINISTIC DIFFUSION-TENSOR FIBER TRACING")
	fmt.Println("================================")
	fmt.Printf("Phantom: %s %v, kernel %s\n", cfg.Volume.Phantom, cfg.Volume.Size, cfg.Kernel)
	fmt.Printf("Fiber: %s, %s, step %g\n", cfg.Fiber.Type, cfg.Fiber.Integration, cfg.Fiber.StepSize)
	fmt.Printf("Stop criteria: %v\n", cfg.Stop.Criteria)

	reconstructor := reconstruction.NewReconstructor(&reconstruction.Params{
		Config:   cfg,
		NumCores: *numCores,
		Logger:   logger,
	})

	fmt.Println("Starting fiber tracing with parallel processing...")
	if err := reconstructor.Process(); err != nil {
		log.Fatalf("Tracing failed: %v", err)
	}

	metrics := reconstructor.GetMetrics()
	fmt.Printf("\nTracing completed successfully in %.2f seconds!\n", metrics.Elapsed.Seconds())
	fmt.Printf("Run ID: %s\n\n", metrics.RunID)

	fmt.Printf("Fiber Metrics:\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("Seeds traced: %d\n", metrics.NumSeeds)
	fmt.Printf("Fibers produced: %d\n", metrics.NumFibers)
	fmt.Printf("Total points: %d\n", metrics.NumPoints)
	if metrics.NumFibers > 0 {
		fmt.Printf("Length: mean %.3f, stddev %.3f, median %.3f, max %.3f\n",
			metrics.MeanLength, metrics.StdDevLength, metrics.MedianLength, metrics.MaxLength)
		fmt.Printf("Steps: mean %.1f, stddev %.1f\n", metrics.MeanSteps, metrics.StdDevSteps)
		fmt.Printf("Connected endpoints (radius %g): %d\n", cfg.Output.EndpointRadius, metrics.ConnectedEndpoints)
	}

	printCounts("\nHalf-trace stop reasons:", metrics.HalfStops)
	printCounts("\nSeeds that went nowhere:", metrics.Nowhere)

	fmt.Println("\nOutputs:")
	if cfg.Output.FibersCSV != "" {
		fmt.Printf("- Fiber points: %s\n", cfg.Output.FibersCSV)
	}
	if cfg.Output.SummaryCSV != "" {
		fmt.Printf("- Fiber summary: %s\n", cfg.Output.SummaryCSV)
	}
	if cfg.Output.ExtractSlices {
		fmt.Printf("- Anisotropy slices: %s\n", cfg.Output.SlicesDir)
	}
}

func printCounts(title string, counts map[fiber.StopReason]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Println(title)
	reasons := make([]fiber.StopReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		fmt.Printf("- %s: %d\n", r, counts[r])
	}
}
