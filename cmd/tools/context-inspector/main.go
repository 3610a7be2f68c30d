// cmd/tools/context-inspector/main.go
//
// Reads intelligence cache entries straight out of Redis for debugging:
// active aggregated contexts, preserved handoff snapshots, and lead
// transition histories.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-intelligence/internal/intelligence"
)

var (
	redisAddr     string
	redisPassword string
	redisDB       int
)

func main() {
	contextCmd := flag.NewFlagSet("context", flag.ExitOnError)
	handoffCmd := flag.NewFlagSet("handoff", flag.ExitOnError)
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	keysCmd := flag.NewFlagSet("keys", flag.ExitOnError)

	// Context command flags
	ctxLead := contextCmd.String("lead", "", "Lead ID")
	ctxLocation := contextCmd.String("location", "", "Location (tenant) ID")
	ctxBot := contextCmd.String("bot", "", "Bot type (e.g., jorge-seller)")

	// Handoff command flags
	hoLead := handoffCmd.String("lead", "", "Lead ID")
	hoTarget := handoffCmd.String("target", "", "Target bot (e.g., jorge-buyer)")

	// History command flags
	hiLead := historyCmd.String("lead", "", "Lead ID")

	// Keys command flags
	keysPattern := keysCmd.String("pattern", "intelligence:*", "Key pattern to scan")

	for _, fs := range []*flag.FlagSet{contextCmd, handoffCmd, historyCmd, keysCmd} {
		fs.StringVar(&redisAddr, "redis", "localhost:6379", "Redis address")
		fs.StringVar(&redisPassword, "password", "", "Redis password")
		fs.IntVar(&redisDB, "db", 0, "Redis database")
	}

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "context":
		contextCmd.Parse(os.Args[2:])
		if *ctxLead == "" || *ctxBot == "" {
			fmt.Println("Error: lead and bot are required for context.")
			contextCmd.Usage()
			os.Exit(1)
		}
		key := intelligence.ContextCacheKey(*ctxLead, *ctxLocation, *ctxBot)
		dumpKey(key)

	case "handoff":
		handoffCmd.Parse(os.Args[2:])
		if *hoLead == "" || *hoTarget == "" {
			fmt.Println("Error: lead and target are required for handoff.")
			handoffCmd.Usage()
			os.Exit(1)
		}
		dumpKey(fmt.Sprintf("intelligence:handoff:%s:%s", *hoLead, *hoTarget))

	case "history":
		historyCmd.Parse(os.Args[2:])
		if *hiLead == "" {
			fmt.Println("Error: lead is required for history.")
			historyCmd.Usage()
			os.Exit(1)
		}
		dumpKey(fmt.Sprintf("intelligence:history:%s", *hiLead))

	case "keys":
		keysCmd.Parse(os.Args[2:])
		scanKeys(*keysPattern)

	default:
		help()
		os.Exit(1)
	}
}

func connect() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
}

// dumpKey prints a cache entry's TTL and pretty-printed JSON value.
func dumpKey(key string) {
	client := connect()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		fmt.Printf("Key not found: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", key, err)
		os.Exit(1)
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err == nil {
		fmt.Printf("Key: %s\nTTL: %s\n\n", key, ttl)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(value), "", "  "); err != nil {
		// Not JSON, print raw
		fmt.Println(value)
		return
	}
	fmt.Println(pretty.String())
}

// scanKeys lists matching keys with their TTLs.
func scanKeys(pattern string) {
	client := connect()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cursor uint64
	count := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			fmt.Printf("Error scanning: %v\n", err)
			os.Exit(1)
		}
		for _, key := range keys {
			ttl, _ := client.TTL(ctx, key).Result()
			fmt.Printf("%-70s ttl=%s\n", key, ttl)
			count++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	fmt.Printf("\n%d keys matched %q\n", count, pattern)
}

func help() {
	fmt.Println(`Usage: context-inspector <command> [flags]

Commands:
  context  -lead <id> -bot <type> [-location <id>]   Show the active aggregated context
  handoff  -lead <id> -target <bot>                  Show a preserved handoff snapshot
  history  -lead <id>                                Show a lead's transition history
  keys     [-pattern <glob>]                         List intelligence cache keys

Common flags:
  -redis <addr>      Redis address (default localhost:6379)
  -password <pw>     Redis password
  -db <n>            Redis database`)
}
