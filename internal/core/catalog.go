package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedSettingsDate is the lastUpdated stamp of the settings row created by the initial migration.
var SeedSettingsDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type catalogEntry struct {
	id, icon, name string
	brl, usd       int64
	category       Category
}

var catalog = []catalogEntry{
	{"peugeot", "🚘", "Peugeot 308", 44500, 8900, CategoryBR},
	{"iphone", "📱", "iPhone 15 Pro (x2)", 10000, 2000, CategoryBR},
	{"passport", "📘", "Passaporte (2 pessoas)", 3000, 600, CategoryUSA},
	{"visa", "🛂", "Visto (2 pessoas)", 2800, 560, CategoryUSA},
	{"flights", "✈️", "Passagens (2 pessoas)", 6000, 1200, CategoryUSA},
	{"first_shop", "🛒", "Primeira Compra USA", 3000, 600, CategoryUSA},
	{"clothes", "👕", "Roupas Novas", 5000, 1000, CategoryUSA},
	{"rent", "🏠", "Aluguel USA (1º Mês)", 50000, 10000, CategoryUSA},
	{"car_usa", "🚙", "Carro USA", 25000, 5000, CategoryUSA},
	{"furniture", "🛋️", "Mobília USA", 15000, 3000, CategoryUSA},
	{"return_ticket", "🔙", "Passagem de Volta", 7200, 1440, CategoryEmergency},
	{"emergency_fund", "🆘", "Uso de Emergência", 28500, 5700, CategoryEmergency},
}

// DefaultCatalog returns a fresh copy of the twelve objectives pushed into an empty store.
func DefaultCatalog() []Objective {
	out := make([]Objective, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, Objective{
			ID:             e.id,
			Icon:           e.icon,
			Name:           e.name,
			TargetBRL:      decimal.NewFromInt(e.brl),
			TargetUSD:      decimal.NewFromInt(e.usd),
			AccumulatedBRL: decimal.Zero,
			Completed:      false,
			Category:       e.category,
		})
	}
	return out
}
