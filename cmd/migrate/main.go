package main

import (
	"fmt"
	"log"

	"github.com/you/mcmarket/internal/config"
	"github.com/you/mcmarket/internal/infrastructure/auth"
	"github.com/you/mcmarket/internal/infrastructure/database"
)

// Creates the schema and seeds the default route policies, then prints table counts
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	fmt.Println("MC Market database migration")
	fmt.Println("============================")

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✓ Database connection successful")

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}
	fmt.Println("✓ AutoMigrate completed successfully")

	cas, err := auth.NewCasbinService(db)
	if err != nil {
		log.Fatalf("Failed to load policies: %v", err)
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		log.Fatalf("Failed to seed policies: %v", err)
	}
	if seeded {
		fmt.Printf("✓ Seeded %d default policies\n", len(auth.DefaultPolicies))
	} else {
		fmt.Println("✓ Policies already present, left unchanged")
	}

	for _, table := range []string{"users", "listings", "offers", "transactions", "casbin_rule"} {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			log.Fatalf("Failed to query %s table: %v", table, err)
		}
		fmt.Printf("✓ %s table accessible (current count: %d)\n", table, n)
	}
}
