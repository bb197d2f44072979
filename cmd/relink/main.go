package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/cognicore/relinker/pkg/relinker"
	"github.com/cognicore/relinker/pkg/relinker/config"
	"github.com/cognicore/relinker/pkg/relinker/loader/jsonlloader"
	"github.com/cognicore/relinker/pkg/relinker/report"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

func main() {
	var (
		input       = flag.String("input", "", "Path to JSONL records file (required)")
		configPath  = flag.String("config", "", "Path to pipeline config YAML (required)")
		withDetails = flag.Bool("details", false, "Emit explainable per-pair cards instead of bare clusters")
		estimate    = flag.Bool("estimate", false, "Run EM parameter estimation before linking and print the refined m/u")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("--input required")
	}
	if *configPath == "" {
		log.Fatal("--config required")
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	recordLoader := jsonlloader.New(*input)
	records, err := recordLoader.LoadAll(ctx)
	if err != nil {
		log.Fatalf("load records: %v", err)
	}

	values := make([]string, 0, len(records))
	for _, r := range records {
		for _, spec := range cfg.SimilarityFunctions {
			values = append(values, r.Field(spec.Field))
		}
	}
	idf := similarity.BuildIDF(values)

	functions, err := cfg.BuildFunctions(idf)
	if err != nil {
		log.Fatalf("build similarity functions: %v", err)
	}

	opts := relinker.Options{
		BlockingFields: cfg.BlockingFields,
		Functions:      functions,
		InitialM:       cfg.InitialM,
		InitialU:       cfg.InitialU,
		FieldWeights:   cfg.FieldWeights,
		BatchSize:      cfg.BatchSize,
		MatchThreshold: cfg.MatchThreshold,
		EMMaxIter:      cfg.EMMaxIter,
		EMTolerance:    cfg.EMTolerance,
		Loader:         recordLoader,
	}

	engine, err := relinker.New(opts)
	if err != nil {
		log.Fatalf("configure engine: %v", err)
	}

	if *estimate {
		pairs, err := engine.GenerateCandidatePairs(ctx)
		if err != nil {
			log.Fatalf("generate candidate pairs: %v", err)
		}
		result := engine.EstimateParameters(pairs)
		log.Printf("EM converged=%v iterations=%d m=%v u=%v",
			result.Converged, result.Iterations, result.M, result.U)
		opts.InitialM, opts.InitialU = result.M, result.U
		if engine, err = relinker.New(opts); err != nil {
			log.Fatalf("reconfigure engine with refined parameters: %v", err)
		}
	}

	if *withDetails {
		cards, err := engine.LinkRecordsWithDetails(ctx)
		if err != nil {
			log.Fatalf("link records: %v", err)
		}
		printCards(cards)
		return
	}

	snapshot, err := engine.LinkRecords(ctx)
	if err != nil {
		log.Fatalf("link records: %v", err)
	}
	printClusters(snapshot)
}

func printCards(cards []report.Card) {
	rep := struct {
		Clusters []report.Card `json:"clusters"`
	}{Clusters: cards}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("marshal report: %v", err)
	}
	fmt.Println(string(out))
}

func printClusters(snapshot map[string][]string) {
	rep := struct {
		Clusters map[string][]string `json:"clusters"`
	}{Clusters: snapshot}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("marshal report: %v", err)
	}
	fmt.Println(string(out))
}
