package services

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"barback/internal/models"
	"barback/internal/storage"
)

// reorderFactor - запас сверх недостающего до порога
var reorderFactor = decimal.RequireFromString("1.5")

// Suggestion - рекомендация закупки по одному ингредиенту
type Suggestion struct {
	Ingredient          models.Ingredient      `json:"ingredient"`
	BestOffer           models.SupplierOffer   `json:"best_offer"`
	Alternatives        []models.SupplierOffer `json:"alternatives,omitempty"`
	RecommendedQuantity decimal.Decimal        `json:"recommended_quantity"`
	EstimatedCost       decimal.Decimal        `json:"estimated_cost"`
}

// ReplenishmentAdvisor формирует рекомендации закупки по заканчивающимся ингредиентам. Только чтение.
type ReplenishmentAdvisor struct {
	store storage.Store
	log   *logrus.Entry
}

// NewReplenishmentAdvisor создает советника по закупкам
func NewReplenishmentAdvisor(store storage.Store) *ReplenishmentAdvisor {
	return &ReplenishmentAdvisor{
		store: store,
		log:   logrus.WithField("component", "replenishment"),
	}
}

// SetLogger задает логгер
func (a *ReplenishmentAdvisor) SetLogger(log *logrus.Entry) {
	a.log = log.WithField("component", "replenishment")
}

// Suggest возвращает рекомендации для каждого ингредиента ниже порога, у которого есть хотя бы одно предложение
func (a *ReplenishmentAdvisor) Suggest(ctx context.Context) ([]Suggestion, error) {
	var out []Suggestion
	err := a.store.View(ctx, func(tx storage.Tx) error {
		low, err := tx.ListLowStock(ctx)
		if err != nil {
			return err
		}
		if len(low) == 0 {
			return nil
		}
		ids := make([]string, len(low))
		for i, ing := range low {
			ids[i] = ing.ID
		}
		offers, err := tx.ListOffers(ctx, ids)
		if err != nil {
			return err
		}

		for _, ing := range low {
			ranked := RankOffers(offers[ing.ID])
			if len(ranked) == 0 {
				a.log.WithField("ingredient_id", ing.ID).Debug("ℹ️ Нет предложений поставщиков")
				continue
			}
			qty := RecommendedQuantity(ing)
			out = append(out, Suggestion{
				Ingredient:          ing,
				BestOffer:           ranked[0],
				Alternatives:        ranked[1:],
				RecommendedQuantity: qty,
				EstimatedCost:       qty.Mul(ranked[0].UnitPrice),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RankOffers сортирует предложения: цена, затем срок поставки, затем поставщик и ID предложения
func RankOffers(offers []models.SupplierOffer) []models.SupplierOffer {
	ranked := append([]models.SupplierOffer(nil), offers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
			return c < 0
		}
		if a.LeadTimeDays != b.LeadTimeDays {
			return a.LeadTimeDays < b.LeadTimeDays
		}
		if a.SupplierID != b.SupplierID {
			return a.SupplierID < b.SupplierID
		}
		return a.ID < b.ID
	})
	return ranked
}

// RecommendedQuantity = max(порог - остаток, 0) x 1.5, с округлением вверх до целой единицы
func RecommendedQuantity(ing models.Ingredient) decimal.Decimal {
	if !ing.MinStock.Valid {
		return decimal.Zero
	}
	gap := ing.MinStock.Decimal.Sub(ing.CurrentStock)
	if !gap.IsPositive() {
		return decimal.Zero
	}
	return gap.Mul(reorderFactor).Ceil()
}

const suggestionSheet = "Sheet1"

// ExportXLSX выгружает рекомендации листом закупки для снабженца
func (a *ReplenishmentAdvisor) ExportXLSX(w io.Writer, suggestions []Suggestion) error {
	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{"Ингредиент", "Ед.", "Остаток", "Порог", "Заказать", "Поставщик", "Цена за ед.", "Срок, дн.", "Сумма"}
	if err := f.SetSheetRow(suggestionSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "ошибка записи заголовка")
	}

	for i, s := range suggestions {
		supplier := s.BestOffer.SupplierID
		if s.BestOffer.Supplier != nil {
			supplier = s.BestOffer.Supplier.Name
		}
		row := []interface{}{
			s.Ingredient.Name,
			s.Ingredient.Unit,
			s.Ingredient.CurrentStock.InexactFloat64(),
			s.Ingredient.MinStock.Decimal.InexactFloat64(),
			s.RecommendedQuantity.InexactFloat64(),
			supplier,
			s.BestOffer.UnitPrice.InexactFloat64(),
			s.BestOffer.LeadTimeDays,
			s.EstimatedCost.Round(2).InexactFloat64(),
		}
		if err := f.SetSheetRow(suggestionSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return errors.Wrapf(err, "ошибка записи строки %d", i+2)
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "ошибка сохранения XLSX")
	}
	a.log.WithField("rows", len(suggestions)).Info("📄 Лист закупки сформирован")
	return nil
}
