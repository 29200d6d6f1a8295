package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: larksync-cli migrate")
			fmt.Println()
			fmt.Println("Apply the embedded database migrations.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runMigrate())
	case "seed":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: larksync-cli seed")
			fmt.Println()
			fmt.Println("Seed the database with demo data: 2 users, a project, channels, and messages.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runSeed())
	case "health":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: larksync-cli health")
			fmt.Println()
			fmt.Println("Check if the Larksync server is running.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  SERVER_URL  Server base URL (default: http://localhost:8080)")
			return
		}
		os.Exit(runHealth())
	case "version":
		fmt.Printf("larksync-cli %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: larksync-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Apply database migrations")
	fmt.Println("  seed     Seed demo data (users, project, channels, messages)")
	fmt.Println("  health   Check if the server is running")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'larksync-cli <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- migrate ---

func runMigrate() int {
	dbURL := requireEnv("DATABASE_URL")

	fmt.Println("running migrations...")
	v, err := database.Migrate(dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: migration failed: %v\n", err)
		return 1
	}
	fmt.Printf("schema is up to date (version: %d)\n", v)
	return 0
}

// --- seed ---

func runSeed() int {
	dbURL := requireEnv("DATABASE_URL")
	ctx := context.Background()

	fmt.Println("connecting to database...")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: database ping failed: %v\n", err)
		return 1
	}

	sf, err := snowflake.NewGenerator(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: snowflake init failed: %v\n", err)
		return 1
	}

	// Generate IDs.
	aliceID := sf.Generate()
	bobID := sf.Generate()
	projectID := sf.Generate()
	aliceMemberID := sf.Generate()
	bobMemberID := sf.Generate()
	generalChanID := sf.Generate()
	directChanID := sf.Generate()
	msg1ID := sf.Generate()
	msg2ID := sf.Generate()
	msg3ID := sf.Generate()

	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: starting transaction: %v\n", err)
		return 1
	}
	defer tx.Rollback(ctx)

	// Users.
	fmt.Println("creating users...")
	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES ($1,$2,$3,$4), ($5,$6,$7,$8)
		 ON CONFLICT (id) DO NOTHING`,
		aliceID, "Alice", "alice@example.com", now,
		bobID, "Bob", "bob@example.com", now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating users: %v\n", err)
		return 1
	}

	// Project and members.
	fmt.Println("creating project...")
	_, err = tx.Exec(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO NOTHING`,
		projectID, "Demo Project", now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating project: %v\n", err)
		return 1
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO project_members (id, project_id, user_id, joined_at) VALUES ($1,$2,$3,$4), ($5,$6,$7,$8)
		 ON CONFLICT (project_id, user_id) DO NOTHING`,
		aliceMemberID, projectID, aliceID, now,
		bobMemberID, projectID, bobID, now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating project members: %v\n", err)
		return 1
	}

	// Channels: one project channel with both members, one direct channel.
	fmt.Println("creating channels...")
	_, err = tx.Exec(ctx,
		`INSERT INTO channels (id, is_direct, project_id, name, creator_id, created_at) VALUES
		   ($1, false, $2, $3, $4, $5),
		   ($6, true, NULL, NULL, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		generalChanID, projectID, "general", aliceID, now,
		directChanID, aliceID, now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channels: %v\n", err)
		return 1
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO channel_members (channel_id, project_member_id, user_id) VALUES
		   ($1, $2, NULL), ($3, $4, NULL),
		   ($5, NULL, $6), ($7, NULL, $8)
		 ON CONFLICT DO NOTHING`,
		generalChanID, aliceMemberID, generalChanID, bobMemberID,
		directChanID, aliceID, directChanID, bobID,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channel members: %v\n", err)
		return 1
	}

	// Messages.
	fmt.Println("creating messages...")
	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, channel_id, sender_id, member_id, content, created_at) VALUES
		   ($1,$2,$3,$4,$5,$6), ($7,$8,$9,$10,$11,$12), ($13,$14,$15,NULL,$16,$17)
		 ON CONFLICT (id) DO NOTHING`,
		msg1ID, generalChanID, aliceID, aliceMemberID, "Welcome to the Demo Project!", now,
		msg2ID, generalChanID, bobID, bobMemberID, "Thanks Alice, glad to be here!", now,
		msg3ID, directChanID, aliceID, "Hey Bob, got a minute?", now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating messages: %v\n", err)
		return 1
	}

	if err := tx.Commit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: committing transaction: %v\n", err)
		return 1
	}

	fmt.Println()
	fmt.Println("seed complete:")
	fmt.Printf("  users:    Alice (alice@example.com), Bob (bob@example.com)\n")
	fmt.Printf("  project:  Demo Project with both users as members\n")
	fmt.Printf("  channels: #general plus an Alice/Bob direct channel\n")
	fmt.Printf("  messages: 3 messages across the two channels\n")
	return 0
}

// --- health ---

func runHealth() int {
	serverURL := envOr("SERVER_URL", "http://localhost:8080")
	url := serverURL + "/health"

	fmt.Printf("checking %s ...\n", url)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status: %d\n", resp.StatusCode)
	if len(body) > 0 {
		fmt.Printf("body:   %s\n", string(body))
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("server is healthy")
		return 0
	}
	fmt.Fprintln(os.Stderr, "server returned non-200 status")
	return 1
}
