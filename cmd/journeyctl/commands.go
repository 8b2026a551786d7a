package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"journey/internal/core"
	"journey/internal/session"
	"journey/internal/view"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			renderClock(cmd.OutOrStdout(), view.Clock(time.Now()))
			renderRate(cmd.OutOrStdout(), st)
			renderDashboard(cmd.OutOrStdout(), view.Dashboard(st.AccumulatedBRL))
			return nil
		},
	}
}

func (a *app) objectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "objectives [BR|USA|EMERGENCY]",
		Short:     "List objectives, optionally for one category",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"BR", "USA", "EMERGENCY"},
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := core.Categories
			if len(args) == 1 {
				c, err := core.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []core.Category{c}
			}
			st, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				renderObjectives(cmd.OutOrStdout(), view.Objectives(st.Objectives, c, st.Rate))
			}
			return nil
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the allocation report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), view.Report(st.AccumulatedBRL, st.Objectives))
			return nil
		},
	}
}

func (a *app) statementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statement",
		Short: "List deposits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			renderStatement(cmd.OutOrStdout(), view.Statement(st.Transactions, st.Objectives))
			return nil
		},
	}
}

func (a *app) journeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journey [month]",
		Short: "Compare the plan projection for a month with the real balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			month := int(st.AccumulatedBRL.Div(core.MonthlyGoal()).IntPart()) + 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid month %q", args[0])
				}
				month = n
			}
			renderJourney(cmd.OutOrStdout(), view.Journey(month, st.AccumulatedBRL, st.Rate))
			return nil
		},
	}
}

func (a *app) depositCmd() *cobra.Command {
	var (
		brl, usd, date, clock, bank, desc, objective string
	)
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Record a deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := buildDeposit(brl, usd, date, clock, bank, desc, objective, time.Now())
			if err != nil {
				return err
			}
			if _, err := a.load(cmd.Context()); err != nil {
				return err
			}
			tx, err := a.session.Deposit(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Depósito #%d registrado: %s (%s)\n",
				tx.ID, view.FormatBRL(tx.AmountBRL), view.FormatUSD(tx.AmountUSD))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&brl, "brl", "", "amount in BRL (required)")
	f.StringVar(&usd, "usd", "", "amount in USD (derived from the rate when empty)")
	f.StringVar(&date, "date", "", "deposit date YYYY-MM-DD (default today in Brazil)")
	f.StringVar(&clock, "time", "", "deposit time HH:MM (default now in Brazil)")
	f.StringVar(&bank, "bank", "", "bank the money went to (required)")
	f.StringVar(&desc, "description", "", "free text")
	f.StringVar(&objective, "objective", "", "objective id to credit")
	_ = cmd.MarkFlagRequired("brl")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

// buildDeposit parses the deposit flags. Empty date and time default to now
// in Brazil.
func buildDeposit(brl, usd, date, clock, bank, desc, objective string, now time.Time) (session.DepositInput, error) {
	var in session.DepositInput
	amount, err := core.ParseAmount(brl)
	if err != nil || !amount.IsPositive() {
		return in, fmt.Errorf("invalid BRL amount %q", brl)
	}
	in.AmountBRL = amount

	if strings.TrimSpace(usd) != "" {
		v, err := core.ParseAmount(usd)
		if err != nil || v.IsNegative() {
			return in, fmt.Errorf("invalid USD amount %q", usd)
		}
		in.AmountUSD = &v
	}

	defDate, defTime := view.DepositDefaults(now)
	if date == "" {
		date = defDate
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return in, fmt.Errorf("invalid date %q", date)
	}
	in.Date = d

	if clock == "" {
		clock = defTime
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return in, fmt.Errorf("invalid time %q", clock)
	}
	in.Time = clock

	in.Bank = strings.TrimSpace(bank)
	if in.Bank == "" {
		return in, errors.New("bank is required")
	}
	if desc = strings.TrimSpace(desc); desc != "" {
		in.Description = core.StringPtr(desc)
	}
	if objective = strings.TrimSpace(objective); objective != "" {
		in.ObjectiveID = core.StringPtr(objective)
	}
	return in, nil
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a deposit and debit its objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			if _, err := a.load(cmd.Context()); err != nil {
				return err
			}
			confirm := func() bool {
				if yes {
					return true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Excluir a transação #%d? [s/N] ", id)
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(line)) {
				case "s", "sim", "y", "yes":
					return true
				}
				return false
			}
			if err := a.session.DeleteTransaction(cmd.Context(), id, confirm); err != nil {
				if errors.Is(err, session.ErrCancelled) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelado.")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transação #%d excluída.\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <objective-id>",
		Short: "Flip an objective between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.load(cmd.Context()); err != nil {
				return err
			}
			if err := a.session.ToggleComplete(cmd.Context(), args[0]); err != nil {
				return err
			}
			o, _ := a.session.Snapshot().ObjectiveByID(args[0])
			state := "pendente"
			if o.Completed {
				state = "concluído"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", o.Icon, o.Name, state)
			return nil
		},
	}
}

func (a *app) rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate [value|auto]",
		Short: "Show, set or refresh the USD/BRL rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Without a value, Load refreshes the quote unless --manual-rate.
			if _, err := a.load(cmd.Context()); err != nil {
				return err
			}
			switch {
			case len(args) == 0:
			case strings.EqualFold(args[0], "auto"):
				a.session.EnableAutoRate(cmd.Context())
			default:
				rate, err := core.ParseAmount(args[0])
				if err != nil || !rate.IsPositive() {
					return fmt.Errorf("invalid rate %q", args[0])
				}
				a.session.SetManualRate(cmd.Context(), rate)
			}
			renderRate(cmd.OutOrStdout(), a.session.Snapshot())
			return nil
		},
	}
}

func (a *app) loginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				username = a.cfg.LoginUsername
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			token, err := a.api.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name (default LOGIN_USERNAME)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads a line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Senha: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
