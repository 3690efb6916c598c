// Command agrimandi is a terminal demonstration of the client: it
// rehydrates any stored session, logs in with credentials from the
// environment when needed, and prints the wallet balance and open lots.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	agrimandi "github.com/agrimandi/agrimandi-go"
	"github.com/agrimandi/agrimandi-go/internal/config"
	"github.com/agrimandi/agrimandi-go/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	displayAppname(cfg.AppName)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !cfg.IsDev() {
		logger = logger.Level(zerolog.InfoLevel)
	}

	platform, err := agrimandi.New(cfg, agrimandi.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	platform.Session.LoadStoredAuth(ctx)
	state := platform.Session.State()

	if !state.Authenticated {
		creds := session.Credentials{
			Username:    os.Getenv("AGRIMANDI_USERNAME"),
			PhoneNumber: os.Getenv("AGRIMANDI_PHONE"),
			Password:    os.Getenv("AGRIMANDI_PASSWORD"),
		}
		if creds.Password == "" {
			return errors.New("no stored session and no AGRIMANDI_USERNAME/AGRIMANDI_PASSWORD set")
		}
		if err := platform.Session.Login(ctx, creds); err != nil {
			return fmt.Errorf("login: %s", platform.Session.State().Err)
		}
		state = platform.Session.State()
	}

	logger.Info().Str("user", state.User.FullName()).Str("role", string(state.User.Role)).Msg("signed in")

	if err := platform.Wallet.Fetch(ctx); err != nil {
		logger.Warn().Err(err).Msg("wallet fetch failed")
	} else if balance, ok := platform.Wallet.Balance.Get(); ok {
		fmt.Printf("Wallet: %.2f %s available (%.2f on hold)\n", balance.Available, balance.Currency, balance.OnHold)
	}

	if err := platform.Lots.Fetch(ctx); err != nil {
		logger.Warn().Err(err).Msg("lots fetch failed")
	} else {
		lots := platform.Lots.Items()
		fmt.Printf("Open lots: %d\n", len(lots))
		for _, lot := range lots {
			fmt.Printf("  %-12s %-10s %8.1f qtl @ %8.2f [%s]\n",
				lot.ID, lot.Commodity, lot.QuantityQuintals, lot.AskPricePerQtl, lot.Status)
		}
	}

	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
