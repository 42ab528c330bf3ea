package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/rawblock/sandoo-engine/internal/alert"
	"github.com/rawblock/sandoo-engine/internal/api"
	"github.com/rawblock/sandoo-engine/internal/bundle"
	"github.com/rawblock/sandoo-engine/internal/classifier"
	"github.com/rawblock/sandoo-engine/internal/db"
	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/internal/shadow"
	"github.com/rawblock/sandoo-engine/internal/strategy"
	"github.com/rawblock/sandoo-engine/internal/stream"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment directly")
	}

	log.Println("Starting Sandoo sandwich-trading engine...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	rpcURL := requireEnv("RPC_URL")
	ownerKey := requireECDSAKey("OWNER_PRIVATE_KEY")
	chainID := new(big.Int).SetUint64(requireEnvUint64("CHAIN_ID"))
	botAddress := common.HexToAddress(requireEnv("BOT_ADDRESS"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to RPC %s: %v", rpcURL, err)
	}
	defer client.Close()

	var dbStore *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbStore, err = db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without persistence: %v", err)
		} else {
			defer dbStore.Close()
			if err := dbStore.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — running without bundle/shadow/pair-score persistence")
	}

	pools, err := registry.NewPoolRegistry()
	if err != nil {
		log.Fatalf("FATAL: failed to load pool registry: %v", err)
	}
	if n, err := pools.ScanForNewPools(ctx, client, pools.LastCreationBlock(0), registry.DefaultScanChunk); err != nil {
		log.Printf("Warning: pool discovery scan failed: %v", err)
	} else {
		log.Printf("Pool registry ready: %d new pools discovered this run", n)
	}

	tokens := registry.NewTokenRegistry()
	blacklist := registry.NewBlacklist()

	extractor := classifier.NewExtractor(client, pools, tokens, blacklist)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	alerts := alert.NewManager(func(a models.Alert) {
		payload, err := json.Marshal(a)
		if err != nil {
			log.Printf("Warning: failed to marshal alert for dashboard broadcast: %v", err)
			return
		}
		wsHub.Broadcast(payload)
	})

	var backtest *shadow.BacktestRunner
	if dbStore != nil {
		backtest = shadow.NewBacktestRunner(dbStore.GetPool())
	}

	identityKey := ownerKey
	if raw := os.Getenv("RELAY_IDENTITY_KEY"); raw != "" {
		identityKey = mustParseECDSAKey("RELAY_IDENTITY_KEY", raw)
	}
	broadcaster := bundle.NewBroadcaster(identityKey, nil)
	builder := bundle.NewBuilder(ownerKey, botAddress, chainID, client)

	mode := strategy.ModeClassical
	if strings.EqualFold(os.Getenv("SANDWICH_MODE"), "flashloan") {
		mode = strategy.ModeFlashloan
	}

	var botBytecode []byte
	if raw := os.Getenv("BOT_BYTECODE"); raw != "" {
		botBytecode = common.FromHex(raw)
	}
	var flashloanAsset common.Address
	if raw := os.Getenv("FLASHLOAN_ASSET"); raw != "" {
		flashloanAsset = common.HexToAddress(raw)
	}

	orchestrator := strategy.New(strategy.Config{
		Client:         client,
		Pools:          pools,
		Tokens:         tokens,
		Classifier:     extractor,
		Builder:        builder,
		Broadcaster:    broadcaster,
		Alerts:         alerts,
		DB:             dbStore,
		Backtest:       backtest,
		Owner:          crypto.PubkeyToAddress(ownerKey.PublicKey),
		BotAddress:     botAddress,
		BotBytecode:    botBytecode,
		FlashloanAsset: flashloanAsset,
		Mode:           mode,
	})

	bus := stream.NewBus()
	go func() {
		if err := bus.StreamBlocks(ctx, client); err != nil && ctx.Err() == nil {
			log.Printf("Warning: block stream ended: %v", err)
		}
	}()
	go func() {
		if err := bus.StreamPendingTxs(ctx, client); err != nil && ctx.Err() == nil {
			log.Printf("Warning: pending tx stream ended: %v", err)
		}
	}()
	go func() {
		if err := orchestrator.Run(ctx, bus); err != nil && ctx.Err() == nil {
			log.Printf("Warning: strategy loop ended: %v", err)
		}
	}()

	// Setup the Gin Router
	r := api.SetupRouter(dbStore, wsHub, blacklist, pools)

	port := getEnvOrDefault("PORT", "5339")

	log.Printf("Engine running on :%s (mode: %s)\n", port, mode)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func requireEnvUint64(key string) uint64 {
	val := requireEnv(key)
	n, ok := new(big.Int).SetString(val, 10)
	if !ok {
		log.Fatalf("FATAL: %s must be a base-10 integer, got %q", key, val)
	}
	return n.Uint64()
}

func requireECDSAKey(key string) *ecdsa.PrivateKey {
	return mustParseECDSAKey(key, requireEnv(key))
}

func mustParseECDSAKey(envName, raw string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		log.Fatalf("FATAL: %s is not a valid hex-encoded private key: %v", envName, err)
	}
	return key
}
