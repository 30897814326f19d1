package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bankmail-ledger/internal/app"
	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
	"github.com/dvloznov/bankmail-ledger/internal/mailsource"
	"github.com/dvloznov/bankmail-ledger/internal/processor"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runBatch()
	case "extract":
		runExtract()
	case "check":
		runCheck()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bank Mail Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Process all unlabeled notifications once")
	fmt.Println("  extract   Extract a transaction from a single notification")
	fmt.Println("  check     Extract and compare against the current ledger")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func loadConfig(path string) (config.Config, zerolog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format)
}

func runBatch() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("BANKLEDGER_CONFIG"), "Path to YAML config")
	timeout := fs.Duration("timeout", 10*time.Minute, "Maximum batch duration")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(*configPath)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer a.Close()

	summary, err := a.Processor.RunBatch(ctx)
	if summary != nil {
		printJSON(summary)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Batch failed")
	}
}

func readMessage(fs *flag.FlagSet) domain.Message {
	subject := fs.Lookup("subject").Value.String()
	body := fs.Lookup("body").Value.String()
	file := fs.Lookup("file").Value.String()

	if file == "" {
		if body == "" && subject == "" {
			fmt.Fprintln(os.Stderr, "Error: --subject/--body or --file is required")
			os.Exit(1)
		}
		return domain.Message{ID: "cli", Subject: subject, Body: body}
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", file, err)
		os.Exit(1)
	}
	if strings.EqualFold(filepath.Ext(file), ".eml") {
		msg := mailsource.ParseRFC822(filepath.Base(file), raw)
		if msg.DecodeErr != nil {
			fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", file, msg.DecodeErr)
			os.Exit(1)
		}
		return msg
	}
	return domain.Message{ID: filepath.Base(file), Subject: subject, Body: string(raw)}
}

func messageFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.String("subject", "", "Notification subject")
	fs.String("body", "", "Notification body")
	fs.String("file", "", "Path to an .eml file or a plain-text body")
	return fs
}

type extractOutput struct {
	MessageID   string   `json:"message_id"`
	OK          bool     `json:"ok"`
	Missing     []string `json:"missing,omitempty"`
	Date        string   `json:"date,omitempty"`
	Amount      string   `json:"amount,omitempty"`
	Merchant    string   `json:"merchant,omitempty"`
	ID          string   `json:"transaction_id,omitempty"`
	Duplicate   *bool    `json:"duplicate,omitempty"`
	DedupRule   string   `json:"dedup_rule,omitempty"`
	MatchID     string   `json:"match_id,omitempty"`
	MatchedName string   `json:"match_merchant,omitempty"`
}

func extractOne(msg domain.Message) (extractOutput, extractor.Result) {
	res := extractor.New().Extract(msg.Subject, msg.Body)
	out := extractOutput{MessageID: msg.ID, OK: res.OK(), Missing: res.Missing}
	if res.OK() {
		tx := res.Transaction
		out.Date = identity.NormalizeDate(tx.Date)
		out.Amount = identity.NormalizeAmount(tx.Amount)
		out.Merchant = tx.Merchant
		out.ID = tx.TransactionID
	}
	return out, res
}

func runExtract() {
	fs := messageFlags("extract")
	fs.Parse(os.Args[2:])

	out, _ := extractOne(readMessage(fs))
	printJSON(out)
	if !out.OK {
		os.Exit(2)
	}
}

func runCheck() {
	fs := messageFlags("check")
	configPath := fs.String("config", os.Getenv("BANKLEDGER_CONFIG"), "Path to YAML config")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(*configPath)
	msg := readMessage(fs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	out, res := extractOne(msg)
	if !res.OK() {
		printJSON(out)
		os.Exit(2)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer a.Close()

	existing, err := a.Store.Snapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	verdict := processor.DetectorFromConfig(cfg.Dedup).Check(res.Transaction, existing)
	out.Duplicate = &verdict.Duplicate
	out.DedupRule = verdict.Rule
	if verdict.Match != nil {
		out.MatchID = identity.EntryID(*verdict.Match)
		out.MatchedName = verdict.Match.Merchant
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
