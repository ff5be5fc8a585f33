package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cockpit/internal/auth"
	"github.com/Iron-Ham/cockpit/internal/config"
	"github.com/Iron-Ham/cockpit/internal/project"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show projects and sessions on the server",
	Long:  `Fetch the project list from the server and print each project with its sessions.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	credentials := auth.Load(cfg.Auth.ResolveTokenFile())
	client := project.NewClient(cfg.Server.URL, credentials)

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	projects, err := client.Projects(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", cfg.Server.URL, err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects")
		return nil
	}

	fmt.Printf("Projects: %d\n\n", len(projects))
	for _, p := range projects {
		fmt.Printf("%s (%s)\n", p.Label(), p.FullPath)
		if len(p.Sessions) == 0 {
			fmt.Println("    no sessions")
			fmt.Println()
			continue
		}
		for _, s := range p.Sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("    %s  %s\n", s.ID, title)
			if s.UpdatedAt != "" {
				fmt.Printf("        updated: %s\n", s.UpdatedAt)
			}
		}
		fmt.Println()
	}

	return nil
}
