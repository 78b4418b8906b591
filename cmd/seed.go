package cmd

import (
	"fmt"
	"time"

	"github.com/jmehdipour/payout-engine/internal/db"
	"github.com/jmehdipour/payout-engine/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers, providers and completed payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		tx, err := sqlDB.Beginx()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		now := time.Now().UTC()
		for _, step := range []func(*sqlx.Tx, time.Time) error{seedCustomers, seedProviders, seedServices, seedPayments} {
			if err := step(tx, now); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit seed: %w", err)
		}

		logger.Log.Info("seed completed")
		return nil
	},
}

type seedProvider struct {
	ID       int64
	Name     string
	Email    string
	Verified bool
	Account  *string
}

// demo providers cover the eligibility cases: linked and verified, unverified,
// and verified without a processor account.
var demoProviders = []seedProvider{
	{ID: 1, Name: "Bright Plumbing", Email: "ops@brightplumbing.example", Verified: true, Account: strptr("acct_demo_bright")},
	{ID: 2, Name: "Handy Helpers", Email: "hello@handyhelpers.example", Verified: false, Account: strptr("acct_demo_handy")},
	{ID: 3, Name: "New Leaf Gardens", Email: "team@newleaf.example", Verified: true, Account: nil},
}

func seedCustomers(tx *sqlx.Tx, now time.Time) error {
	const q = `
INSERT INTO customers (id, name, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    updated_at = VALUES(updated_at)
`
	customers := []struct {
		id          int64
		name, email string
	}{
		{1, "Alice Moreno", "alice@example.com"},
		{2, "Ben Okafor", "ben@example.com"},
	}
	for _, c := range customers {
		if _, err := tx.Exec(q, c.id, c.name, c.email, now, now); err != nil {
			return fmt.Errorf("insert customer %q: %w", c.name, err)
		}
	}
	return nil
}

func seedProviders(tx *sqlx.Tx, now time.Time) error {
	const q = `
INSERT INTO providers (id, name, email, is_verified, settlement_account_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name                  = VALUES(name),
    is_verified           = VALUES(is_verified),
    settlement_account_id = VALUES(settlement_account_id),
    updated_at            = VALUES(updated_at)
`
	for _, p := range demoProviders {
		if _, err := tx.Exec(q, p.ID, p.Name, p.Email, p.Verified, p.Account, now, now); err != nil {
			return fmt.Errorf("insert provider %q: %w", p.Name, err)
		}
	}
	return nil
}

func seedServices(tx *sqlx.Tx, now time.Time) error {
	const q = `
INSERT INTO services (id, provider_id, title, description, platform_fee_percent, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    title                = VALUES(title),
    platform_fee_percent = VALUES(platform_fee_percent),
    updated_at           = VALUES(updated_at)
`
	services := []struct {
		id, providerID int64
		title, desc    string
		feePercent     *float64
	}{
		{1, 1, "Kitchen sink repair", "Replace trap and seals", nil},
		{2, 1, "Water heater install", "Tank swap, 50 gallon", floatptr(12.5)},
		{3, 2, "Furniture assembly", "Flat-pack assembly", nil},
		{4, 3, "Lawn care", "Mow and edge", floatptr(8)},
	}
	for _, s := range services {
		if _, err := tx.Exec(q, s.id, s.providerID, s.title, s.desc, s.feePercent, now, now); err != nil {
			return fmt.Errorf("insert service %q: %w", s.title, err)
		}
	}
	return nil
}

func seedPayments(tx *sqlx.Tx, now time.Time) error {
	const q = `
INSERT INTO payments (id, customer_id, provider_id, service_id, amount, currency, status, completed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 'usd', ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    amount     = VALUES(amount),
    status     = VALUES(status),
    updated_at = VALUES(updated_at)
`
	payments := []struct {
		id, customerID, providerID, serviceID, amount int64
		status                                        string
	}{
		{1, 1, 1, 1, 6500, "completed"},
		{2, 2, 1, 2, 48000, "completed"},
		{3, 1, 2, 3, 9000, "completed"},
		{4, 2, 3, 4, 4000, "completed"},
		{5, 1, 1, 1, 7200, "pending"},
	}
	for _, p := range payments {
		var completedAt *time.Time
		if p.status == "completed" {
			completedAt = &now
		}
		if _, err := tx.Exec(q, p.id, p.customerID, p.providerID, p.serviceID, p.amount, p.status, completedAt, now, now); err != nil {
			return fmt.Errorf("insert payment %d: %w", p.id, err)
		}
		logger.Log.Debug("seeded payment", zap.Int64("payment_id", p.id), zap.String("status", p.status))
	}
	return nil
}

func strptr(s string) *string     { return &s }
func floatptr(f float64) *float64 { return &f }
