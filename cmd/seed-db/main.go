package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Colors      []string        `json:"colors"`
	Sizes       []string        `json:"sizes"`
	Images      []string        `json:"images"`
	SoldOut     bool            `json:"soldOut"`
}

// productNamespace derives stable product ids from names so reseeding
// updates rows in place.
var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://storefront/products"))

type demoPromo struct {
	code      string
	percent   int
	validDays int
	maxUses   *int
}

func capped(n int) *int { return &n }

var demoPromos = []demoPromo{
	{code: "WELCOME10", percent: 10, validDays: 365},
	{code: "SUMMER20", percent: 20, validDays: 90, maxUses: capped(100)},
	{code: "VIP30", percent: 30, validDays: 30, maxUses: capped(10)},
}

type options struct {
	databaseURL   string
	productsFile  string
	adminUsername string
	adminEmail    string
	adminPassword string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to products JSON file (defaults to the embedded catalog)")
	flag.StringVar(&opts.adminUsername, "admin-username", "admin", "admin account username")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@storefront.local", "admin account email")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "admin account password (or STORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("running migrations")

	if err := postgres.RunMigrations(opts.databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromos(ctx, postgres.NewPromoRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	if opts.adminPassword == "" {
		slog.Warn("no admin password given, skipping admin account")
		return nil
	}
	admins := admin.NewService(postgres.NewAdminRepository(pool), nil, auth.BcryptHasher{})
	a, err := admins.Register(ctx, admin.RegisterInput{
		Username: opts.adminUsername,
		Email:    opts.adminEmail,
		Password: opts.adminPassword,
		Role:     admin.RoleSuperAdmin,
	})
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	slog.Info("upserted admin", slog.String("id", a.ID), slog.String("username", a.Username))

	return nil
}

func loadProducts(path string) ([]productJSON, error) {
	data := db.Seed
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string) error {
	products, err := loadProducts(path)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	// Stagger creation times so listings keep the file order, newest first.
	now := time.Now().UTC()
	for i, p := range products {
		cat, ok := product.ParseCategory(p.Category)
		if !ok {
			return errors.Errorf("product %q: unknown category %q", p.Name, p.Category)
		}
		created := now.Add(-time.Duration(i) * time.Minute)
		rec := &product.Product{
			ID:          uuid.NewSHA1(productNamespace, []byte(p.Name)).String(),
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
			Category:    cat,
			Colors:      p.Colors,
			Sizes:       p.Sizes,
			Images:      p.Images,
			SoldOut:     p.SoldOut,
			CreatedAt:   created,
			UpdatedAt:   now,
		}
		if err := repo.Upsert(ctx, rec); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Name)
		}

		slog.Info("upserted product", slog.String("id", rec.ID), slog.String("name", rec.Name))
	}

	return nil
}

func seedPromos(ctx context.Context, repo *postgres.PromoRepository) error {
	slog.Info("seeding demo promo codes")

	now := time.Now().UTC()
	codes := make([]promo.Code, len(demoPromos))
	for i, d := range demoPromos {
		codes[i] = promo.Code{
			ID:        uuid.New().String(),
			Code:      d.code,
			Percent:   d.percent,
			ExpiresAt: now.AddDate(0, 0, d.validDays),
			MaxUses:   d.maxUses,
			Active:    true,
			CreatedAt: now,
		}
	}
	if err := repo.UpsertBatch(ctx, codes); err != nil {
		return err
	}

	for _, c := range codes {
		slog.Info("upserted promo code", slog.String("code", c.Code), slog.Int("percent", c.Percent))
	}
	return nil
}
