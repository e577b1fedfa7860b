package main

import (
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/williamsoaresdev/bip-core/internal/database"
	"github.com/williamsoaresdev/bip-core/internal/services"
	"github.com/williamsoaresdev/bip-core/internal/store"
)

type seedAccount struct {
	name        string
	description string
	balance     string
}

var demoAccounts = []seedAccount{
	{"Auxilio Alimentacao", "Beneficio para alimentacao dos funcionarios", "500.00"},
	{"Vale Transporte", "Beneficio para deslocamento ao trabalho", "200.00"},
	{"Plano de Saude", "Cobertura medica e hospitalar", "1000.00"},
	{"Auxilio Combustivel", "Ajuda de custo para combustivel", "300.00"},
	{"Plano Odontologico", "Cobertura odontologica completa", "150.00"},
}

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("transfer.fee_rate", "TRANSFER_FEE_RATE")

	db := database.InitDatabase()
	defer db.Close()
	redisClient := database.InitRedis()

	accountStore := store.NewAccountStore(db)
	if err := accountStore.CreateSchema(); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	statsService := services.NewStatsService(accountStore, redisClient)
	accountService := services.NewAccountService(accountStore, statsService)

	existing, err := accountStore.FindAll()
	if err != nil {
		log.Fatalf("Failed to inspect existing data: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("Found %d accounts, skipping demo data", len(existing))
	} else {
		seedDemoAccounts(accountService)
	}

	count, err := statsService.CountActive()
	if err != nil {
		log.Fatalf("Failed to count active accounts: %v", err)
	}
	total, err := statsService.SumActiveBalances()
	if err != nil {
		log.Fatalf("Failed to sum active balances: %v", err)
	}
	log.Printf("Active accounts: %d, total balance: %s", count, total)
}

func seedDemoAccounts(accountService *services.AccountService) {
	for _, seed := range demoAccounts {
		balance := decimal.RequireFromString(seed.balance)
		account, err := accountService.CreateAccount(services.CreateAccountParams{
			Name:           seed.name,
			Description:    seed.description,
			InitialBalance: &balance,
		})
		if err != nil {
			log.Fatalf("Failed to seed account %q: %v", seed.name, err)
		}
		log.Printf("Created: %s (id %d)", account.Name, account.ID)
	}
	log.Printf("Demo accounts created: %d", len(demoAccounts))
}
