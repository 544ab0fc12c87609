// verify-db-connection checks the configured database is reachable and the
// schema is migrated.
package main

import (
	"fmt"
	"log"

	"customs-backend/internal/config"
	"customs-backend/internal/db"
)

var tables = []string{
	"users",
	"uploads",
	"packages",
	"shipments",
	"failure_records",
	"audit_log_entries",
	"tracking_events",
}

func main() {
	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db.InitDB()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("failed to get database name: %v", err)
	}
	fmt.Printf("connected to database: %s\n", dbName)

	for _, table := range tables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			fmt.Printf("MISSING  %s\n", table)
			continue
		}

		var count int64
		if err := sqlDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			log.Fatalf("failed to count %s: %v", table, err)
		}
		fmt.Printf("ok       %-20s %d rows\n", table, count)
	}
}
