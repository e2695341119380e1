package main

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lox/voterps/internal/auth"
	"github.com/lox/voterps/internal/bot"
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/randutil"
	"golang.org/x/sync/errgroup"
)

// BotCmd connects one or more bots to a session. The first two to join
// take the seats and the rest vote.
type BotCmd struct {
	URL      string `kong:"default='ws://localhost:8080/ws',help='Server websocket URL'"`
	Code     string `kong:"arg='',help='Session code to join'"`
	Name     string `kong:"default='bot',help='Bot name (numbered when count > 1)'"`
	Count    int    `kong:"default='1',help='Number of bots to run'"`
	Strategy string `kong:"default='rand',enum='rand,call',help='Strategy: rand or call'"`
	Secret   string `kong:"env='VOTERPS_AUTH_SECRET',help='Sign jwt tokens with this secret instead of sending the name'"`
	Seed     *int64 `kong:"help='Deterministic RNG seed (optional)'"`
	Debug    bool   `kong:"help='Enable debug logging'"`
}

func (c *BotCmd) Run() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}

	seed := randutil.Seed()
	if c.Seed != nil {
		seed = *c.Seed
	}
	rng := randutil.New(seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := range c.Count {
		name := c.Name
		if c.Count > 1 {
			name = fmt.Sprintf("%s-%d", c.Name, i+1)
		}
		token, err := c.token(name)
		if err != nil {
			return err
		}
		strategy := c.strategy(randutil.Child(rng))

		g.Go(func() error {
			client, err := bot.Dial(gctx, c.URL)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := bot.New(client, strategy, logger).Play(gctx, c.Code, token)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logger.Info("Bot finished", "name", name, "winner", res.Winner, "reason", res.Reason)
			return nil
		})
	}
	return g.Wait()
}

func (c *BotCmd) token(name string) (string, error) {
	if c.Secret == "" {
		return name, nil
	}
	return auth.IssueToken(c.Secret, name, time.Hour)
}

func (c *BotCmd) strategy(rng *rand.Rand) bot.Strategy {
	if c.Strategy == "call" {
		return bot.CallStrategy{Card: game.AllCards[rng.IntN(len(game.AllCards))]}
	}
	return bot.NewRandStrategy(rng)
}
