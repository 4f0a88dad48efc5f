// Command ingest replays an SMS dump file through the ingest pipeline.
// Useful for backfilling notifications received while the server was down.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikimina/momoledger/internal/config"
	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/service"
	"github.com/ikimina/momoledger/internal/storage/sqlite"
	"github.com/ikimina/momoledger/pkg/logging"
)

// smsRecord is one line of the dump file: the raw SMS as the gateway
// delivered it, plus the institution that owns the receiving line.
type smsRecord struct {
	InstitutionID string `json:"institution_id"`
	Sender        string `json:"sender"`
	Text          string `json:"text"`
	ReceivedAt    int64  `json:"received_at"`
}

func main() {
	var (
		dumpPath      = flag.String("dump", "", "Path to the SMS dump file (JSON lines)")
		institutionID = flag.String("institution", "", "Institution id applied to records that omit one")
	)
	flag.Parse()

	if *dumpPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -dump <file> [-institution <id>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log.Level)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	parserGate := gate.NewHTTPGate(cfg.Gate.URL, cfg.Gate.Timeout)
	ingestService := service.NewIngestService(store, parserGate, cfg.Match.Window)

	records, err := loadDump(*dumpPath)
	if err != nil {
		slog.Error("failed to load dump", "error", err, "path", *dumpPath)
		os.Exit(1)
	}
	if len(records) == 0 {
		slog.Error("dump file empty", "path", *dumpPath)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	var created, failed, errored int
	for i, rec := range records {
		if ctx.Err() != nil {
			slog.Warn("ingestion interrupted", "processed", i, "total", len(records))
			break
		}

		inst := rec.InstitutionID
		if inst == "" {
			inst = *institutionID
		}

		var receivedAt time.Time
		if rec.ReceivedAt > 0 {
			receivedAt = time.Unix(rec.ReceivedAt, 0)
		}

		result, err := ingestService.Ingest(ctx, inst, rec.Sender, rec.Text, receivedAt)
		if err != nil {
			slog.Error("record ingestion failed", "line", i+1, "error", err)
			errored++
			continue
		}
		if result.Transaction != nil {
			created++
		} else {
			failed++
		}
	}

	slog.Info("ingestion complete",
		"duration", time.Since(start).String(),
		"transactions", created,
		"parse_failures", failed,
		"errors", errored,
	)
	if errored > 0 {
		os.Exit(1)
	}
}

// loadDump reads a JSON-lines dump file. Blank lines are skipped.
func loadDump(path string) ([]smsRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var records []smsRecord
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var rec smsRecord
		if err := decoder.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
