package main

import (
	"fmt"
	"time"

	"github.com/lox/voterps/internal/auth"
	"github.com/lox/voterps/internal/gameid"
)

// TokenCmd signs an identity token for the jwt auth mode.
type TokenCmd struct {
	Name   string        `kong:"arg='',help='Identity the token asserts'"`
	Secret string        `kong:"env='VOTERPS_AUTH_SECRET',required='',help='HMAC signing secret'"`
	TTL    time.Duration `kong:"name='ttl',default='24h',help='Token lifetime (0 for no expiry)'"`
}

func (c *TokenCmd) Run() error {
	token, err := auth.IssueToken(c.Secret, c.Name, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// NewCodeCmd prints a fresh session code.
type NewCodeCmd struct{}

func (c *NewCodeCmd) Run() error {
	fmt.Println(gameid.Code())
	return nil
}
