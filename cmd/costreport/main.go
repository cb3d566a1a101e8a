// Command costreport prints a spend summary from the usage ledger.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/internal/models"
	"github.com/grovelabs/grove-coder/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.Driver == "sqlite" {
		if _, err := os.Stat(cfg.Database.DSN); os.IsNotExist(err) {
			fmt.Println("No database found. Run grove-coder first to generate usage data.")
			return
		}
	}

	db, err := models.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	ledger := services.NewLedgerService(db)

	fmt.Println("=== grove-coder Cost Report ===")
	fmt.Println()

	today, err := ledger.Report(services.WindowToday, "")
	if err != nil {
		log.Fatalf("Failed to build today's report: %v", err)
	}
	fmt.Printf("Today (%s):\n", time.Now().UTC().Format("2006-01-02"))
	if len(today.Breakdown) == 0 {
		fmt.Println("  No requests today.")
	}
	for _, row := range today.Breakdown {
		fmt.Printf("  %s: %d requests, $%.6f\n", row.Operation, row.Requests, row.CostUSD)
	}

	month, err := ledger.Report(services.WindowMonth, "")
	if err != nil {
		log.Fatalf("Failed to build monthly report: %v", err)
	}
	fmt.Printf("\nLast 30 Days: %d requests, $%.6f\n", month.TotalRequests, month.TotalCostUSD)

	all, err := ledger.Report(services.WindowAll, "")
	if err != nil {
		log.Fatalf("Failed to build all-time report: %v", err)
	}
	fmt.Printf("All Time:     %d requests, $%.6f\n", all.TotalRequests, all.TotalCostUSD)
}
