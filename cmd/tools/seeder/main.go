package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fatou-sy/backend-patisserie/internal/config"
	"github.com/fatou-sy/backend-patisserie/internal/migrate"
	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	st := store.New(pool)
	seedCatalog(ctx, st)
	seedOffers(ctx, st)
	log.Println("seeding completed")
}

func seedCatalog(ctx context.Context, st *store.Store) {
	log.Println("seeding categories and products")

	categories := []struct {
		Name string
		Slug string
	}{
		{"Tartes", "tartes"},
		{"Viennoiseries", "viennoiseries"},
		{"Entremets", "entremets"},
		{"Macarons", "macarons"},
		{"Gateaux", "gateaux"},
	}
	byslug := map[string]store.Category{}
	for _, c := range categories {
		created, err := st.CreateCategory(ctx, c.Name, c.Slug)
		if err != nil {
			log.Printf("seed category %s: %v", c.Slug, err)
			continue
		}
		byslug[c.Slug] = created
	}

	products := []struct {
		Category    string
		Name        string
		Slug        string
		Description string
		Price       int64
		Cost        int64
	}{
		{"tartes", "Tarte aux fraises", "tarte-aux-fraises", "Pate sablee, creme patissiere vanille et fraises fraiches.", 8_500, 4_000},
		{"tartes", "Tarte citron meringuee", "tarte-citron-meringuee", "Creme de citron et meringue italienne flambee.", 7_500, 3_200},
		{"viennoiseries", "Croissant au beurre", "croissant-au-beurre", "Feuilletage pur beurre, cuit chaque matin.", 850, 400},
		{"viennoiseries", "Pain au chocolat", "pain-au-chocolat", "Deux batons de chocolat noir dans un feuilletage dore.", 900, 420},
		{"entremets", "Entremets trois chocolats", "entremets-trois-chocolats", "Mousse noire, lactee et ivoire sur croustillant praline.", 15_000, 7_500},
		{"macarons", "Coffret 12 macarons", "coffret-12-macarons", "Assortiment de saisons, parfums au choix.", 9_000, 3_800},
		{"gateaux", "Gateau anniversaire vanille", "gateau-anniversaire-vanille", "Genoise vanille, creme diplomate, decor personnalise.", 25_000, 11_000},
		{"gateaux", "Mille-feuille", "mille-feuille", "Trois feuilletages caramelises, creme legere vanille.", 2_500, 1_100},
	}
	for _, p := range products {
		cost := p.Cost
		arg := store.CreateProductParams{
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			Price:       p.Price,
			CostPrice:   &cost,
			Active:      true,
		}
		if c, ok := byslug[p.Category]; ok {
			id := c.ID
			arg.CategoryID = &id
		}
		if _, err := st.CreateProduct(ctx, arg); err != nil {
			if err == store.ErrConflict {
				continue
			}
			log.Printf("seed product %s: %v", p.Slug, err)
		}
	}
}

func seedOffers(ctx context.Context, st *store.Store) {
	log.Println("seeding offers")

	now := time.Now()
	monthEnd := now.AddDate(0, 1, 0)
	welcomeCap := int64(5_000)
	limit := int32(200)

	offers := []store.UpsertOfferParams{
		{
			Code:        "BIENVENUE10",
			Kind:        string(offer.KindPercent),
			Percent:     10,
			MaxDiscount: &welcomeCap,
			Active:      true,
		},
		{
			Code:        "PAQUES25",
			Kind:        string(offer.KindPercent),
			Percent:     25,
			MinPurchase: 10_000,
			StartsAt:    &now,
			EndsAt:      &monthEnd,
			UsageLimit:  &limit,
			Active:      true,
		},
		{
			Code:        "LIVRAISON1500",
			Kind:        string(offer.KindFixedAmount),
			Value:       1_500,
			MinPurchase: 5_000,
			Active:      true,
		},
	}
	for _, o := range offers {
		if _, err := st.CreateOffer(ctx, o); err != nil {
			if err == store.ErrConflict {
				continue
			}
			log.Printf("seed offer %s: %v", o.Code, err)
		}
	}
}
