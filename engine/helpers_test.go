package engine_test

import (
	"github.com/shopspring/decimal"

	"github.com/warp/visit-engine/engine"
)

// =============================================================================
// FIXTURE HELPERS
// =============================================================================

var (
	alice    = engine.PromoterRef{ID: 1, Name: "Alice"}
	bruno    = engine.PromoterRef{ID: 2, Name: "Bruno"}
	quarenta = engine.PromoterRef{ID: 42, Name: "Quarenta"}

	storeCentro = engine.StoreRef{ID: 10, Name: "Centro", Number: intPtr(101)}
	storeNorte  = engine.StoreRef{ID: 11, Name: "Norte", Number: intPtr(102)}
	storeSul    = engine.StoreRef{ID: 12, Name: "Sul"}

	brandAcme  = engine.BrandRef{ID: 100, Name: "Acme"}
	brandGlobo = engine.BrandRef{ID: 101, Name: "Globo"}
)

func intPtr(n int) *int { return &n }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func date(s string) engine.Date { return engine.MustParseDate(s) }

func datePtr(s string) *engine.Date {
	d := date(s)
	return &d
}

func visit(id engine.VisitID, p engine.PromoterRef, s engine.StoreRef, b engine.BrandRef, day string, st engine.Status) engine.Visit {
	return engine.Visit{ID: id, Promoter: p, Store: s, Brand: b, Date: date(day), Status: st}
}

func assignment(s engine.StoreRef, b engine.BrandRef, target int) engine.Assignment {
	return engine.Assignment{Store: s, Brand: b, TargetFrequency: target}
}

func priceIndex(entries ...engine.PriceEntry) engine.PriceIndex {
	idx, err := engine.NewPriceIndex(entries)
	if err != nil {
		panic(err)
	}
	return idx
}

func price(s engine.StoreRef, b engine.BrandRef, amount string) engine.PriceEntry {
	return engine.PriceEntry{StoreID: s.ID, BrandID: b.ID, Price: money(amount)}
}
