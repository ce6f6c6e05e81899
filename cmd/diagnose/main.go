package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	catalogv1 "pubcat/api/catalog/v1"
	"pubcat/internal/config"
	"pubcat/internal/search"
)

func main() {
	configPath := flag.String("config", "pubcat.yaml", "Path to config file")
	query := flag.String("q", `author:"King"`, "Query used for the search check")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔍 === STARTING COMPONENT DIAGNOSTICS ===")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failed := 0
	fmt.Printf("\n[1] Testing gRPC health (%s)...\n", cfg.GRPC.Address())
	if !checkHealth(ctx, cfg.GRPC.Address()) {
		failed++
	}
	fmt.Printf("\n[2] Testing gRPC search (%s)...\n", cfg.GRPC.Address())
	if !checkSearch(ctx, cfg.GRPC.Address(), *query) {
		failed++
	}
	fmt.Printf("\n[3] Testing HTTP API (%s)...\n", cfg.HTTP.FullURL())
	if !checkHTTP(ctx, cfg.HTTP.FullURL()+"/health") {
		failed++
	}

	fmt.Println("\n🏁 === DIAGNOSTICS COMPLETE ===")
	if failed > 0 {
		os.Exit(1)
	}
}

func checkHealth(ctx context.Context, addr string) bool {
	c, err := search.Dial(addr)
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		return false
	}
	defer c.Close()

	resp, err := healthpb.NewHealthClient(c.Conn()).Check(ctx, &healthpb.HealthCheckRequest{Service: catalogv1.ServiceName})
	if err != nil {
		fmt.Printf("❌ Health check failed: %v\n", err)
		return false
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		fmt.Printf("⚠️ WARNING. Status: %s\n", resp.GetStatus())
		return false
	}
	fmt.Println("✅ PASS. SERVING")
	return true
}

func checkSearch(ctx context.Context, addr, query string) bool {
	c, err := search.Dial(addr)
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		return false
	}
	defer c.Close()

	res, err := c.Search(ctx, query, 0, 5)
	if err != nil {
		fmt.Printf("❌ Search failed: %v\n", err)
		return false
	}
	fmt.Printf("✅ PASS. Canonical: '%s', Found: %d\n", res.Canonical, res.Total)
	if res.Total == 0 {
		fmt.Println("   (Note: 0 hits is expected on an empty catalog)")
	}
	return true
}

func checkHTTP(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Printf("❌ Bad URL: %v\n", err)
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("❌ HTTP API failed: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	var body struct {
		OK           bool `json:"ok"`
		Publications int  `json:"publications"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&body) != nil || !body.OK {
		fmt.Printf("⚠️ WARNING. HTTP Status: %d\n", resp.StatusCode)
		return false
	}
	fmt.Printf("✅ PASS. HTTP Status: %d, publications: %d\n", resp.StatusCode, body.Publications)
	return true
}
