package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/optik-pos/api/internal/auth"
	"github.com/optik-pos/api/internal/config"
	"github.com/optik-pos/api/internal/database"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/logger"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo shop with orders in every lifecycle stage",
	Long: `Seed creates three demo orders for one shop: a deposit-only order, a
paid and collected order, and an archived order with its automatic refund.
It prints an owner token for the shop so the API can be explored at once.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("shop", "", "Shop UUID (defaults to a new one, or SEED_SHOP_ID)")
	seedCmd.Flags().Bool("migrate", true, "Apply pending migrations first")
}

func main() {
	if err := seedCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := logger.Setup(cfg.Log); err != nil {
		return err
	}
	log := logger.WithComponent("seed")
	ctx := cmd.Context()

	shop, _ := cmd.Flags().GetString("shop")
	if shop == "" {
		shop = os.Getenv("SEED_SHOP_ID")
	}
	shopID := uuid.New()
	if shop != "" {
		id, err := uuid.Parse(shop)
		if err != nil {
			return fmt.Errorf("invalid shop ID: %w", err)
		}
		shopID = id
	}

	if migrateFirst, _ := cmd.Flags().GetBool("migrate"); migrateFirst {
		if err := database.Migrate(cfg.DatabaseURL, 0); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("connected to database")

	svc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, service.Options{
		PaymentMethods: cfg.PaymentMethods,
		InvoicePrefix:  cfg.InvoicePrefix,
	})

	if err := seedOrders(ctx, svc, shopID); err != nil {
		return err
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, "seed-owner", shopID, enum.UserRoleOwner, 0)
	if err != nil {
		return err
	}

	fmt.Println("=== Seed Complete ===")
	fmt.Printf("Shop ID:     %s\n", shopID)
	fmt.Printf("Owner token: %s\n", token)
	return nil
}

func seedOrders(ctx context.Context, svc *service.OrderService, shopID uuid.UUID) error {
	log := logger.WithComponent("seed")
	details, _ := json.Marshal(map[string]string{
		"od_sphere": "-1.25", "os_sphere": "-1.50", "pd": "63", "lens_type": "single vision",
	})

	// Deposit only, still in the lab.
	deposit, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		ShopID:    shopID,
		PatientID: "demo-patient-1",
		Items: order.PricedItems{
			Frame:   money.MustParse("45.000"),
			Lens:    money.MustParse("30.000"),
			Coating: money.MustParse("7.500"),
		},
		Discount:  money.MustParse("2.500"),
		Details:   details,
		CreatedBy: "seed-owner",
		Deposit:   []service.PaymentInput{{Amount: money.MustParse("20.000"), Method: enum.PaymentMethodCash}},
	})
	if err != nil {
		return fmt.Errorf("seed deposit order: %w", err)
	}
	log.Info().Str("number", deposit.Invoice.Number).Msg("seeded deposit order")

	// Paid in split tender and collected.
	paid, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		ShopID:    shopID,
		PatientID: "demo-patient-2",
		Items: order.PricedItems{
			ContactLenses: []order.ContactLensItem{
				{Description: "Monthly toric, 6 pack", Quantity: 2, UnitPrice: money.MustParse("12.250")},
			},
			Service: money.MustParse("5.000"),
		},
		CreatedBy: "seed-owner",
	})
	if err != nil {
		return fmt.Errorf("seed paid order: %w", err)
	}
	if _, err := svc.RecordPayment(ctx, service.RecordPaymentRequest{
		ShopID:    shopID,
		InvoiceID: paid.Invoice.ID,
		Payments: []service.PaymentInput{
			{Amount: money.MustParse("10.000"), Method: enum.PaymentMethodCash},
			{Amount: money.MustParse("19.500"), Method: enum.PaymentMethodKnet, AuthNumber: "DEMO-4411"},
		},
		ReceivedBy: "seed-owner",
	}); err != nil {
		return fmt.Errorf("seed payment: %w", err)
	}
	if _, err := svc.UpdateWorkOrderStatus(ctx, shopID, paid.WorkOrder.ID, enum.WorkOrderStatusComplete); err != nil {
		return fmt.Errorf("seed work order status: %w", err)
	}
	if _, err := svc.MarkPickedUp(ctx, shopID, paid.Invoice.ID); err != nil {
		return fmt.Errorf("seed pickup: %w", err)
	}
	log.Info().Str("number", paid.Invoice.Number).Msg("seeded collected order")

	// Cancelled after a deposit; archiving refunds it.
	cancelled, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		ShopID:    shopID,
		PatientID: "demo-patient-1",
		Items:     order.PricedItems{Frame: money.MustParse("60.000")},
		CreatedBy: "seed-owner",
		Deposit:   []service.PaymentInput{{Amount: money.MustParse("15.000"), Method: enum.PaymentMethodCard, AuthNumber: "DEMO-9020"}},
	})
	if err != nil {
		return fmt.Errorf("seed cancelled order: %w", err)
	}
	res, err := svc.ArchiveOrder(ctx, service.ArchiveRequest{
		ShopID:      shopID,
		WorkOrderID: cancelled.WorkOrder.ID,
		Reason:      "customer cancelled",
	})
	if err != nil {
		return fmt.Errorf("seed archive: %w", err)
	}
	if res.Refund != nil {
		log.Info().Str("number", cancelled.Invoice.Number).Str("refund", res.Refund.Amount.String()).
			Msg("seeded archived order")
	}
	return nil
}
