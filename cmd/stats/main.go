package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"camviewer/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/telemetry.db", "Database path")
	recent := flag.Int("recent", 10, "Number of recent stats records to show")
	prune := flag.Duration("prune", 0, "Delete frame samples older than this (e.g. 168h)")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database %s does not exist", *dbPath)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	samples := sqlite.NewSampleRepository(db)
	stats := sqlite.NewStatsRepository(db)

	if *prune > 0 {
		deleted, err := samples.DeleteOlderThan(time.Now().Add(-*prune))
		if err != nil {
			log.Fatalf("Failed to prune samples: %v", err)
		}
		fmt.Printf("🧹 Deleted %d frame samples older than %v\n", deleted, *prune)
	}

	summary, err := stats.Summary()
	if err != nil {
		log.Fatalf("Failed to summarize database: %v", err)
	}

	fmt.Printf("\n📊 Telemetry Statistics:\n")
	fmt.Printf("   Sessions: %d\n", summary.Sessions)
	fmt.Printf("   Frame samples: %d\n", summary.FrameSamples)
	fmt.Printf("   Stats samples: %d\n", summary.StatsSamples)
	fmt.Printf("   Average FPS: %.2f\n", summary.AverageFPS)
	fmt.Printf("   Average processing time: %.2f ms\n", summary.AverageProcessingTime)

	if len(summary.PerMode) > 0 {
		fmt.Printf("   Per mode:\n")
		modes := make([]string, 0, len(summary.PerMode))
		for mode := range summary.PerMode {
			modes = append(modes, mode)
		}
		sort.Strings(modes)
		for _, mode := range modes {
			fmt.Printf("      - %s: %d frames\n", mode, summary.PerMode[mode])
		}
	}

	if len(summary.LastSeen) > 0 {
		fmt.Printf("   Sessions last seen:\n")
		for session, ms := range summary.LastSeen {
			fmt.Printf("      - %s: %s\n", session, time.UnixMilli(ms).Format("2006-01-02 15:04:05"))
		}
	}

	if *recent <= 0 {
		return
	}
	records, err := stats.Recent(*recent)
	if err != nil {
		log.Fatalf("Failed to load recent stats: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("\nNo stats records yet")
		return
	}

	fmt.Printf("\n🕒 Recent stats:\n")
	for _, s := range records {
		fmt.Printf("   %s  %s  avg %.1f fps (%.1f-%.1f)  %.1f ms  %d frames\n",
			s.ReceivedAt.Local().Format("15:04:05"), s.Session, s.AverageFPS, s.MinFPS, s.MaxFPS,
			s.AverageProcessingTime, s.TotalFrames)
	}
}
