package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	obspostgres "station-cloud/internal/observation/infrastructure/postgres"
	"station-cloud/internal/reports"
)

const dayLayout = "2006-01-02"

func main() {
	var (
		dayFlag    = flag.String("day", "", "UTC day to summarize (YYYY-MM-DD, default yesterday)")
		formatFlag = flag.String("format", "both", "output format: xlsx, pdf or both")
		outFlag    = flag.String("out", ".", "output directory")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	day := time.Now().UTC().AddDate(0, 0, -1)
	if *dayFlag != "" {
		parsed, err := time.Parse(dayLayout, *dayFlag)
		if err != nil {
			logger.Fatalf("invalid -day: %v", err)
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	if *formatFlag != "xlsx" && *formatFlag != "pdf" && *formatFlag != "both" {
		logger.Fatalf("invalid -format %q", *formatFlag)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := obspostgres.NewObservationRepository(db)
	readings, err := repo.ListDay(ctx, day)
	if err != nil {
		logger.Fatalf("query error: %v", err)
	}
	summaries := reports.BuildDailySummaries(day, readings)
	logger.Printf("summarized %d readings over %d stations for %s", len(readings), len(summaries), day.Format(dayLayout))

	if *formatFlag == "xlsx" || *formatFlag == "both" {
		data, err := reports.BuildDailyXLSX(day, summaries)
		if err != nil {
			logger.Fatalf("xlsx error: %v", err)
		}
		path := filepath.Join(*outFlag, fmt.Sprintf("observations-%s.xlsx", day.Format(dayLayout)))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Fatalf("write error: %v", err)
		}
		logger.Printf("wrote %s", path)
	}
	if *formatFlag == "pdf" || *formatFlag == "both" {
		data, err := reports.BuildDailyPDF(day, summaries)
		if err != nil {
			logger.Fatalf("pdf error: %v", err)
		}
		path := filepath.Join(*outFlag, fmt.Sprintf("observations-%s.pdf", day.Format(dayLayout)))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Fatalf("write error: %v", err)
		}
		logger.Printf("wrote %s", path)
	}
}
