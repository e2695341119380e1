package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/voterps/internal/snapshot"
	"github.com/lox/voterps/internal/snapshot/sqlite"
)

// SnapshotsCmd prints the sessions recorded in a SQLite snapshot store.
type SnapshotsCmd struct {
	Path  string `kong:"default='voterps.db',help='SQLite database path'"`
	Limit int    `kong:"default='20',help='Maximum sessions to show (0 for all)'"`
	Code  string `kong:"arg='',optional='',help='Show a single session'"`
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#74B9FF"))
	winnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

func (c *SnapshotsCmd) Run() error {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var records []snapshot.Record
	if c.Code != "" {
		rec, ok, err := store.Get(ctx, c.Code)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot for session %s", c.Code)
		}
		records = append(records, rec)
	} else {
		records, err = store.List(ctx, c.Limit)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Println(mutedStyle.Render("No sessions recorded"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d sessions", len(records))))
	for _, rec := range records {
		fmt.Println(renderRecord(rec))
	}
	return nil
}

func renderRecord(rec snapshot.Record) string {
	winner := mutedStyle.Render("no winner")
	if rec.Winner != "" {
		winner = winnerStyle.Render(rec.Winner)
	}

	players := make([]string, 0, len(rec.Players))
	for i, name := range rec.Players {
		credits := "?"
		if i < len(rec.Credits) {
			credits = strconv.Itoa(rec.Credits[i])
		}
		players = append(players, fmt.Sprintf("%s (%s)", name, credits))
	}

	line := fmt.Sprintf("%s  %s  %s by %s  voters=%d",
		codeStyle.Render(rec.Code),
		strings.Join(players, " vs "),
		winner,
		rec.Reason,
		len(rec.Voters))
	if !rec.FinishedAt.IsZero() {
		line += "  " + mutedStyle.Render(rec.FinishedAt.Local().Format(time.DateTime))
	}
	return line
}
