package main

import (
	"os"

	"github.com/SscSPs/kiosc_finance_app/cmd/kiosc_backend/cmd"
)

// @title KIOSC Finance API
// @version 1.0
// @description Expense, journal and budget records kept in a shared Excel workbook.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
