package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"coldchat/internal/chatlog"
	"coldchat/internal/config"
	"coldchat/internal/oracle"
	"coldchat/internal/persona"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your ColdChat setup",
		Long: `Verifies that ColdChat's configuration, persona file, oracle credentials
and transcript archive are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("ColdChat Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0

			// 1. Config
			cfgPath := resolveConfigPath()
			if cfgPath == "" {
				printPass("Config file", "none; using defaults + environment")
				passed++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 2. Persona
			p, err := persona.Load(cfg.General.PersonaFile)
			if err != nil {
				printFail("Persona", err.Error())
				failed++
				p = persona.Default()
			} else {
				printPass("Persona", p.Name)
				passed++
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			// 3. Oracle
			switch cfg.Oracle.Provider {
			case "scripted":
				printPass("Oracle", "scripted (offline)")
				passed++
			default:
				g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
					APIKey:  cfg.Oracle.APIKey,
					Model:   cfg.Oracle.Model,
					Persona: p,
				})
				if err != nil {
					printFail("Oracle", err.Error())
					failed++
					break
				}
				if err := g.Healthy(ctx); err != nil {
					printFail("Oracle", err.Error())
					failed++
				} else {
					printPass("Oracle", fmt.Sprintf("gemini (%s) reachable", cfg.Oracle.Model))
					passed++
				}
			}

			// 4. Archive
			if cfg.Archive.Enabled {
				a, err := chatlog.NewSQLiteArchive(cfg.Archive.DBPath, nil)
				if err != nil {
					printFail("Archive", err.Error())
					failed++
				} else {
					n, err := a.Count(ctx)
					a.Close()
					if err != nil {
						printFail("Archive", err.Error())
						failed++
					} else {
						printPass("Archive", fmt.Sprintf("%s (%d rows)", cfg.Archive.DBPath, n))
						passed++
					}
				}
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			if failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func printPass(check, detail string) {
	fmt.Printf("  ✓ %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ✗ %-20s %s\n", check, detail)
}
