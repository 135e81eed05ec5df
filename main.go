package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
	orchestratorx "github.com/agilbank/concierge/agent/orchestrator"
	rolesx "github.com/agilbank/concierge/agent/roles"
	statex "github.com/agilbank/concierge/agent/state"
	toolx "github.com/agilbank/concierge/agent/tool"
	"github.com/agilbank/concierge/pkg/awesomeapi"
	configx "github.com/agilbank/concierge/pkg/config"
	_ "github.com/agilbank/concierge/pkg/logger/autoload"
	openrouterx "github.com/agilbank/concierge/pkg/openrouter"
)

type AppConfig struct {
	BankBackend  string `envconfig:"BANK_BACKEND" split_words:"true" default:"csv"`
	SessionStore string `envconfig:"SESSION_STORE" split_words:"true" default:"memory"`
}

// exitWords become an explicit end-of-service request so the conversation
// closes through the end tool and gets archived, instead of being dropped.
var exitWords = map[string]bool{
	"exit": true,
	"quit": true,
	"bye":  true,
}

const endRequestText = "I would like to end the conversation."

func outboundText(raw string) string {
	if exitWords[strings.ToLower(strings.TrimSpace(raw))] {
		return endRequestText
	}
	return raw
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	model := openrouterx.MustNew(*openRouterCfg)

	quotes := awesomeapi.MustNew(*configx.MustNew[awesomeapi.Config]("AWESOMEAPI"))

	gateway, cleanup := buildGateway(appCfg.BankBackend)
	defer cleanup()

	catalog, err := toolx.NewCatalog(gateway, quotes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tool catalog")
	}

	registry, err := rolesx.NewRegistry(model, catalog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build role registry")
	}

	dispatcher, err := orchestratorx.NewDispatcher(catalog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dispatcher")
	}

	loop, err := orchestratorx.NewLoop(registry, dispatcher, buildStore(appCfg.SessionStore))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build conversation loop")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runChat(ctx, loop)
}

func buildGateway(backend string) (bankdatax.Gateway, func()) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "postgres":
		store, err := bankdatax.NewBunStore(*configx.MustNew[bankdatax.PostgresConfig]("POSTGRES"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres bank data store")
		}
		if err := store.CreateTables(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare postgres tables")
		}
		return store, func() { _ = store.Close() }
	case "csv", "":
		store, err := bankdatax.NewCSVStore(*configx.MustNew[bankdatax.CSVConfig]("BANKDATA"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open csv bank data store")
		}
		return store, func() {}
	default:
		log.Fatal().Str("backend", backend).Msg("unknown bank backend")
		return nil, nil
	}
}

func buildStore(kind string) statex.Store {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "redis":
		store, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build redis session store")
		}
		return store
	default:
		return statex.NewMemoryStore()
	}
}

func runChat(ctx context.Context, loop *orchestratorx.Loop) {
	fmt.Println("=== Agil Bank Concierge ===")
	fmt.Println("Type 'exit' to leave at any time.")
	fmt.Println()

	greeting, err := loop.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start conversation")
	}
	printAssistant(greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if loop.Terminated() {
			break
		}

		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := loop.HandleMessage(ctx, outboundText(text))
		if err != nil {
			if errors.Is(err, contractx.ErrConversationEnded) {
				break
			}
			log.Error().Err(err).Msg("conversation aborted")
			break
		}
		printAssistant(reply)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("failed to read input")
	}
	fmt.Println()
	fmt.Println("Session ended. Thank you for choosing Agil Bank.")
}

func printAssistant(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Printf("concierge> %s\n\n", text)
}
