package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/spf13/cobra"

	"pisoheroes/internal/core"
)

func seedCmd() *cobra.Command {
	var username string
	var days int
	var allowance float64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an account with demo expenses, income and a goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}

			u, err := lookupUser(ctx, app, username)
			if err != nil {
				return err
			}
			if _, err := app.Settings.SetMonthlyAllowance(ctx, u.ID, core.Money{Cents: int64(math.Round(allowance * 100))}); err != nil {
				return fmt.Errorf("set allowance: %w", err)
			}

			today := core.Today(time.Now(), app.Location)
			var expenses, incomes int
			for d := days - 1; d >= 0; d-- {
				date := today.AddDays(-d)
				for i := 0; i < 1+rand.IntN(3); i++ {
					_, err := app.Expenses.CreateExpense(ctx, core.Expense{
						UserID:   u.ID,
						Amount:   core.Money{Cents: int64(20+rand.IntN(280)) * 100},
						Category: core.ExpenseCategories[rand.IntN(len(core.ExpenseCategories))],
						Date:     date,
						Notes:    faker.Sentence(),
					})
					if err != nil {
						return fmt.Errorf("seed expense: %w", err)
					}
					expenses++
				}
				if rand.IntN(5) == 0 {
					_, err := app.Income.AddIncome(ctx, core.DailyIncome{
						UserID: u.ID,
						Amount: core.Money{Cents: int64(50+rand.IntN(450)) * 100},
						Source: core.IncomeSources[rand.IntN(len(core.IncomeSources))],
						Date:   date,
						Notes:  faker.Word(),
					})
					if err != nil {
						return fmt.Errorf("seed income: %w", err)
					}
					incomes++
				}
			}

			_, err = app.Goals.CreateGoal(ctx, core.SavingsGoal{
				UserID:      u.ID,
				Name:        "New phone",
				Target:      core.Money{Cents: 1500000},
				Description: faker.Sentence(),
				TargetDate:  today.AddDays(90),
			})
			if err != nil {
				return fmt.Errorf("seed goal: %w", err)
			}

			logger.Info("Seeded demo data", "user_id", u.ID, "expenses", expenses, "income", incomes)
			fmt.Fprintf(cmd.OutOrStdout(), "🌱 Seeded %d expenses, %d income entries and 1 goal for %s\n", expenses, incomes, u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username to seed")
	cmd.Flags().IntVar(&days, "days", 30, "number of days of history")
	cmd.Flags().Float64Var(&allowance, "allowance", 6000, "monthly allowance in pesos")
	return cmd
}
