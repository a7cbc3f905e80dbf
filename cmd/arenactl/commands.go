package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/admin"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/arena"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

func (c *cli) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Settle every challenge whose end time has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.svc.Arena.CheckCompletedChallenges(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due %d: settled %d, refunded %d, deferred %d, skipped %d, failed %d\n",
				res.Due, res.Settled, res.Refunded, res.Deferred, res.Skipped, res.Failed)
			return nil
		},
	}
}

func (c *cli) timeoutsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "timeouts",
		Short: "Cancel direct challenges nobody accepted in time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.svc.Arena.CheckTimeouts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d\n", n)
			return nil
		},
	}
}

func (c *cli) settleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <challenge-id>",
		Short: "Settle an active challenge now, even before its end time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.svc.Arena.ForceComplete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Refunded() {
				fmt.Fprintf(out, "refunded %s (%s): %v\n", common.FormatGP(res.Refund.Amount), res.Refund.Reason, res.Cause)
				return nil
			}
			printSettlement(out, res.Settlement)
			return nil
		},
	}
}

func (c *cli) refundCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refund <challenge-id>",
		Short: "Cancel a challenge and return every wager and bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := c.svc.Arena.RefundChallenge(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunded %s to %d participants\n", common.FormatGP(ref.Amount), len(ref.Challenge.Participants))
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", arena.ReasonAdminCancel, "reason shown to participants")
	return cmd
}

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <challenge-id>",
		Short: "Print a challenge with its participants and bets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := c.svc.Arena.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printChallenge(cmd.OutOrStdout(), ch)
			return nil
		},
	}
}

func (c *cli) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <discord-id>",
		Short: "Show a GP balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := c.svc.Economy.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (earned %s, spent %s)\n",
				acc.UserID, common.FormatGP(acc.Balance), common.FormatGP(acc.TotalEarned), common.FormatGP(acc.TotalSpent))
			return nil
		},
	}
}

func (c *cli) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <discord-id>",
		Short: "Show recent GP transactions of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := c.svc.Economy.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTransactions(cmd.OutOrStdout(), txs)
			return nil
		},
	}
}

func (c *cli) ledgerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <challenge-id>",
		Short: "Show every GP movement recorded for a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := c.svc.Economy.ChallengeLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTransactions(cmd.OutOrStdout(), txs)
			var net int64
			for _, t := range txs {
				net += t.Amount
			}
			fmt.Fprintf(cmd.OutOrStdout(), "net %s\n", common.FormatSignedGP(net))
			return nil
		},
	}
}

func (c *cli) adjustCommand(name string, sign int64) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   name + " <discord-id> <amount>",
		Short: "Manually " + name + " GP (ledger correction)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return common.ErrInvalidAmount
			}
			t, err := c.svc.Economy.Adjust(cmd.Context(), args[0], sign*amount, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s\n", t.UserID, common.FormatSignedGP(t.Amount), common.FormatGP(t.BalanceAfter))
			return nil
		},
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "why the balance was corrected")
	return cmd
}

func (c *cli) setAdminCommand() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set-admin <discord-id>",
		Short: "Grant (or with --revoke remove) the admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.svc.Members.SetAdmin(cmd.Context(), args[0], !revoke); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%t\n", args[0], !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin flag")
	return cmd
}

func (c *cli) hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-password <password>",
		Short:       "Print an ADMIN_PASSWORD_HASH value for .env",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{noDB: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := admin.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printSettlement(w io.Writer, st *arena.Settlement) {
	fmt.Fprintf(w, "winner: %s\n", st.Outcome.DisplayWinner())
	for _, cr := range st.Wagers {
		fmt.Fprintf(w, "  wager  %s %s (%s)\n", cr.UserID, common.FormatSignedGP(cr.Amount), cr.Reason)
	}
	for _, br := range st.Bets.Results {
		fmt.Fprintf(w, "  bet    %s %s → %s [%s]\n", br.UserID, common.FormatGP(br.Amount), common.FormatGP(br.Payout), br.Kind)
	}
	if st.Bets.HouseContribution > 0 || st.Bets.HouseSurplus > 0 {
		fmt.Fprintf(w, "  house  added %s, kept %s\n", common.FormatGP(st.Bets.HouseContribution), common.FormatGP(st.Bets.HouseSurplus))
	}
}

func printChallenge(w io.Writer, ch *arena.Challenge) {
	fmt.Fprintf(w, "%s  %s %s  game %d / lb %d  wager %s\n",
		ch.ID, ch.Type, ch.Status, ch.GameID, ch.LeaderboardID, common.FormatGP(ch.Wager))
	if ch.EndedAt != nil {
		fmt.Fprintf(w, "ends %s\n", common.FormatDateTime(*ch.EndedAt))
	}
	if ch.Processed {
		fmt.Fprintf(w, "winner %s\n", ch.WinnerUsername)
	}
	if ch.CancelReason != "" {
		fmt.Fprintf(w, "cancelled: %s\n", ch.CancelReason)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tRA\tWAGER\tRANK")
	for _, p := range ch.Participants {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.UserID, p.Username, p.Wager, p.Rank)
	}
	fmt.Fprintln(tw, "BETTOR\tON\tAMOUNT\tPAYOUT")
	for _, b := range ch.Bets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", b.UserID, b.TargetUserID, b.Amount, b.Payout)
	}
	tw.Flush()
}

func printTransactions(w io.Writer, txs []*economy.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tUSER\tAMOUNT\tREASON\tBALANCE\tDETAIL")
	for _, t := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, common.FormatDateTime(t.CreatedAt), t.UserID, common.FormatSignedGP(t.Amount), t.Reason, t.BalanceAfter, t.Detail)
	}
	tw.Flush()
}
