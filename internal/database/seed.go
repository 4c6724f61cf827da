package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"barback/internal/models"
	"barback/internal/storage"
	"barback/internal/storage/memory"
)

// Catalog - набор справочников для заполнения пустой БД
type Catalog struct {
	Ingredients []models.Ingredient
	Suppliers   []models.Supplier
	Offers      []models.SupplierOffer
	Drinks      []models.Drink
}

// demoID дает стабильный UUID по имени, чтобы повторный seed не плодил дубли
func demoID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("barback:"+kind+":"+name)).String()
}

func qty(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func nullQty(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

// DemoCatalog - небольшой бар: три коктейля и два поставщика
func DemoCatalog() Catalog {
	newIngredient := func(name, unit, stock, minStock, cost string) models.Ingredient {
		return models.Ingredient{
			ID:           demoID("ingredient", name),
			Name:         name,
			Unit:         unit,
			CurrentStock: qty(stock),
			MinStock:     nullQty(minStock),
			UnitCost:     nullQty(cost),
		}
	}
	rum := newIngredient("White rum", "ml", "3000", "1000", "0.08")
	cachaca := newIngredient("Cachaça", "ml", "2500", "1000", "0.06")
	lime := newIngredient("Lime", "un", "60", "30", "0.50")
	mint := newIngredient("Mint", "g", "400", "200", "0.05")
	syrup := newIngredient("Sugar syrup", "ml", "2000", "500", "0.01")
	soda := newIngredient("Soda water", "ml", "6000", "2000", "0.004")
	cola := newIngredient("Cola", "ml", "800", "2000", "0.005")

	atacado := models.Supplier{ID: demoID("supplier", "Atacado Bebidas"), Name: "Atacado Bebidas", Email: "vendas@atacado.example"}
	hortifruti := models.Supplier{ID: demoID("supplier", "Hortifruti Central"), Name: "Hortifruti Central", Phone: "+55 11 4000-0000"}

	offer := func(sup models.Supplier, ing models.Ingredient, price string, lead int) models.SupplierOffer {
		return models.SupplierOffer{
			ID:           demoID("offer", sup.Name+"/"+ing.Name),
			SupplierID:   sup.ID,
			IngredientID: ing.ID,
			UnitPrice:    qty(price),
			LeadTimeDays: lead,
		}
	}

	line := func(ing models.Ingredient, q string, pos int) models.RecipeLine {
		return models.RecipeLine{IngredientID: ing.ID, Quantity: qty(q), Position: pos}
	}
	drink := func(name, category, price string, lines ...models.RecipeLine) models.Drink {
		id := demoID("drink", name)
		for i := range lines {
			lines[i].ID = demoID("recipe", name+"/"+lines[i].IngredientID)
			lines[i].DrinkID = id
		}
		return models.Drink{ID: id, Name: name, Category: category, Price: qty(price), Active: true, Recipe: lines}
	}

	return Catalog{
		Ingredients: []models.Ingredient{rum, cachaca, lime, mint, syrup, soda, cola},
		Suppliers:   []models.Supplier{atacado, hortifruti},
		Offers: []models.SupplierOffer{
			offer(atacado, rum, "0.07", 3),
			offer(atacado, cachaca, "0.05", 3),
			offer(atacado, cola, "0.004", 2),
			offer(atacado, soda, "0.004", 2),
			offer(hortifruti, lime, "0.45", 1),
			offer(hortifruti, mint, "0.04", 1),
			offer(atacado, lime, "0.45", 4),
		},
		Drinks: []models.Drink{
			drink("Mojito", "classic", "32.00",
				line(rum, "50", 1), line(lime, "1", 2), line(mint, "6", 3), line(syrup, "20", 4), line(soda, "100", 5)),
			drink("Caipirinha", "classic", "28.00",
				line(cachaca, "60", 1), line(lime, "1", 2), line(syrup, "15", 3)),
			drink("Cuba Libre", "highball", "26.00",
				line(rum, "50", 1), line(cola, "150", 2), line(lime, "0.5", 3)),
		},
	}
}

// SeedPostgres заполняет пустую БД каталогом. Начальный остаток каждого ингредиента
// записывается движением initial_stock, чтобы журнал сходился с остатками.
func SeedPostgres(ctx context.Context, db *gorm.DB, catalog Catalog, log *logrus.Entry) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var drinks int64
		if err := tx.Model(&models.Drink{}).Count(&drinks).Error; err != nil {
			return errors.Wrap(err, "failed to count drinks")
		}
		if drinks > 0 {
			log.WithField("drinks", drinks).Info("ℹ️ Каталог уже заполнен, seed пропущен")
			return nil
		}

		for _, ing := range catalog.Ingredients {
			ing := ing
			if err := tx.Create(&ing).Error; err != nil {
				return errors.Wrapf(err, "failed to create ingredient %s", ing.Name)
			}
			movement := models.StockMovement{
				IngredientID: ing.ID,
				Delta:        ing.CurrentStock,
				Reason:       models.MovementInitialStock,
				Note:         "начальный остаток",
			}
			if err := tx.Create(&movement).Error; err != nil {
				return errors.Wrapf(err, "failed to record initial stock for %s", ing.Name)
			}
		}
		if err := tx.Create(&catalog.Suppliers).Error; err != nil {
			return errors.Wrap(err, "failed to create suppliers")
		}
		if err := tx.Create(&catalog.Offers).Error; err != nil {
			return errors.Wrap(err, "failed to create supplier offers")
		}
		for _, d := range catalog.Drinks {
			d := d
			if err := tx.Create(&d).Error; err != nil {
				return errors.Wrapf(err, "failed to create drink %s", d.Name)
			}
		}

		log.WithFields(logrus.Fields{
			"ingredients": len(catalog.Ingredients),
			"drinks":      len(catalog.Drinks),
			"suppliers":   len(catalog.Suppliers),
		}).Info("✅ Демо-каталог загружен")
		return nil
	})
}

// SeedMemory загружает каталог в хранилище в памяти (serve --memory).
// Как и в Postgres, начальный остаток попадает в журнал движением initial_stock.
func SeedMemory(ctx context.Context, store *memory.Store, catalog Catalog, log *logrus.Entry) error {
	movements := make([]models.StockMovement, 0, len(catalog.Ingredients))
	for _, ing := range catalog.Ingredients {
		store.PutIngredient(ing)
		movements = append(movements, models.StockMovement{
			IngredientID: ing.ID,
			Delta:        ing.CurrentStock,
			Reason:       models.MovementInitialStock,
			Note:         "начальный остаток",
		})
	}
	for _, sup := range catalog.Suppliers {
		store.PutSupplier(sup)
	}
	for _, o := range catalog.Offers {
		store.PutOffer(o)
	}
	for _, d := range catalog.Drinks {
		store.PutDrink(d)
	}

	err := store.InTx(ctx, func(tx storage.Tx) error {
		return tx.AppendMovements(ctx, movements)
	})
	if err != nil {
		return errors.Wrap(err, "failed to record initial stock")
	}

	log.WithFields(logrus.Fields{
		"ingredients": len(catalog.Ingredients),
		"drinks":      len(catalog.Drinks),
	}).Info("✅ Демо-каталог загружен в память")
	return nil
}
