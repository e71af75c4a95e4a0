// Requeues tasks stuck in the error status after an outage, so the scheduler
// picks them up again on the next cycle. Extends each deadline by the given
// offset since the original window has usually passed by the time an operator
// runs this.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	offset := flag.Duration("extend", 15*time.Minute, "New deadline offset from now")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	res, err := db.Exec(`
		UPDATE proof_tasks
		SET status = 'pending', attempts = 0, error_message = '',
			deadline = $1, updated_at = NOW()
		WHERE status = 'error'
	`, time.Now().Add(*offset).Unix())
	if err != nil {
		log.Fatalf("Failed to requeue tasks: %v", err)
	}

	count, _ := res.RowsAffected()
	fmt.Printf("Requeued %d error'd tasks with deadline offset %v\n", count, *offset)
}
