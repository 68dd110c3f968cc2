// Command retrievalctl runs one Recall -> Expand -> Rerank search against
// a configured engine and prints the resulting Response as JSON, for
// operators debugging recall quality or a clue graph without standing up
// a long-running service. Grounded on the teacher's cmd/server/main.go:
// same container.BuildContainer(runtime.GetContainer()) wiring and
// signal-driven graceful shutdown, minus the HTTP listener this engine
// has no use for.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clueweave/clueweave/internal/config"
	"github.com/clueweave/clueweave/internal/container"
	"github.com/clueweave/clueweave/internal/runtime"
	"github.com/clueweave/clueweave/internal/tracing"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.SetOutput(os.Stdout)

	query := flag.String("query", "", "query text to search")
	sourceConfigIDs := flag.String("source", "", "comma-separated source_config_ids to scope the search to")
	returnType := flag.String("return-type", "EVENT", "EVENT or PARAGRAPH")
	strategy := flag.String("strategy", "", "rerank strategy override: PAGERANK or RRF (default: config)")
	flag.Parse()

	if *query == "" {
		log.Fatal("retrievalctl: -query is required")
	}

	c := container.BuildContainer(runtime.GetContainer())

	err := c.Invoke(func(
		cfg *config.Config,
		tracer *tracing.Tracer,
		resourceCleaner interfaces.ResourceCleaner,
		engineFactory container.EngineFactory,
	) error {
		shutdownTimeout := cfg.Runtime.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 30 * time.Second
		}
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cleanupCancel()

		resourceCleaner.RegisterWithName("Tracer", func() error {
			return tracer.Cleanup(cleanupCtx)
		})
		defer func() {
			if errs := resourceCleaner.Cleanup(cleanupCtx); len(errs) > 0 {
				log.Printf("errors during resource cleanup: %v", errs)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-signals
			log.Printf("received signal: %v, aborting search...", sig)
			cancel()
		}()

		searchConfig := cfg.NewSearchConfig(*query, splitNonEmpty(*sourceConfigIDs))
		searchConfig.ReturnType = types.ReturnType(*returnType)
		if *strategy != "" {
			searchConfig.Rerank.Strategy = types.RerankStrategy(*strategy)
		}

		engine := engineFactory(&searchConfig)
		resp, err := engine.Search(ctx, &searchConfig)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	})
	if err != nil {
		log.Fatalf("retrievalctl: %v", err)
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
