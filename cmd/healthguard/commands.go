package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/render"
	"github.com/ashureev/healthguard/internal/tui"
)

const sampleClaim = "Does garlic cure flu?"

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the agent",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := a.controller()
			c.Welcome()
			return tui.Run(c, a.renderer())
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <claim>",
		Short: "Verify one claim and print the verdict card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claim := strings.Join(args, " ")
			turn, err := a.controller().Send(cmd.Context(), claim)
			if err != nil {
				return err
			}
			if turn == nil {
				return errors.New("claim is empty")
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.renderer().Render(turn.Reply))
			if turn.Err != nil {
				return turn.Err
			}
			return nil
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	var claim string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the agent is up and answers within its contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			fmt.Fprintf(out, "Agent: %s\n", a.client.BaseURL())
			if err := a.client.Ping(ctx); err != nil {
				fmt.Fprintf(out, "✗ ping: %v\n", err)
				return err
			}
			fmt.Fprintln(out, "✓ ping")

			id := identity.New()
			resp, violations, err := a.client.Inspect(ctx, domain.QueryRequest{
				UserID:    id.UserID,
				SessionID: id.SessionID,
				Query:     claim,
			})
			if err != nil {
				fmt.Fprintf(out, "✗ query %q: %v\n", claim, err)
				return err
			}
			fmt.Fprintf(out, "✓ query %q\n", claim)

			for _, v := range violations {
				mark := "!"
				if v.Fatal {
					mark = "✗"
				}
				fmt.Fprintf(out, "%s %s (%s): %s\n", mark, v.Field, v.Kind, v.Description)
			}
			if agent.Fatal(violations) {
				return errors.New("agent response violates the contract")
			}
			if len(violations) == 0 {
				fmt.Fprintln(out, "✓ contract")
			}

			msg := domain.Message{Role: domain.RoleAgent, Text: resp.FinalAnswer, Data: resp}
			fmt.Fprintln(out, a.renderer().Render(msg))
			if tone := render.VerdictTone(resp.Verdict); tone == render.ToneNeutral {
				fmt.Fprintf(out, "verdict %q renders neutral\n", resp.Verdict)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&claim, "claim", sampleClaim, "claim sent as the sample query")
	return cmd
}
