// Package memory - хранилище в памяти процесса для тестов и локального запуска (serve --memory).
//
// Транзакции на запись сериализуются мьютексом и работают над копией состояния;
// копия становится текущим состоянием только при успешном завершении.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barback/internal/models"
	"barback/internal/storage"
)

var errReadOnly = errors.New("write in read-only transaction")

type state struct {
	ingredients map[string]models.Ingredient
	drinks      map[string]models.Drink
	orders      map[string]models.Order
	changes     []models.OrderStatusChange
	movements   []models.StockMovement
	suppliers   map[string]models.Supplier
	offers      []models.SupplierOffer
}

func newState() *state {
	return &state{
		ingredients: make(map[string]models.Ingredient),
		drinks:      make(map[string]models.Drink),
		orders:      make(map[string]models.Order),
		suppliers:   make(map[string]models.Supplier),
	}
}

func (s *state) clone() *state {
	c := &state{
		ingredients: make(map[string]models.Ingredient, len(s.ingredients)),
		drinks:      make(map[string]models.Drink, len(s.drinks)),
		orders:      make(map[string]models.Order, len(s.orders)),
		suppliers:   make(map[string]models.Supplier, len(s.suppliers)),
		changes:     append([]models.OrderStatusChange(nil), s.changes...),
		movements:   append([]models.StockMovement(nil), s.movements...),
		offers:      append([]models.SupplierOffer(nil), s.offers...),
	}
	for k, v := range s.ingredients {
		c.ingredients[k] = v
	}
	// Напитки не меняются внутри транзакций, копия среза рецепта не нужна
	for k, v := range s.drinks {
		c.drinks[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	return c
}

// Store - хранилище в памяти
type Store struct {
	mu           sync.RWMutex
	st           *state
	now          func() time.Time
	beforeCommit func() error
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		st: newState(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetClock подменяет источник времени
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetBeforeCommit задает хук, вызываемый перед фиксацией транзакции.
// Ошибка хука откатывает транзакцию, как отказ хранилища при COMMIT.
func (s *Store) SetBeforeCommit(fn func() error) {
	s.mu.Lock()
	s.beforeCommit = fn
	s.mu.Unlock()
}

// InTx выполняет fn над копией состояния
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{st: work, now: s.now}); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(); err != nil {
			return &models.PersistenceError{Op: "commit", Err: err}
		}
	}
	s.st = work
	return nil
}

// View выполняет fn над текущим состоянием без права записи
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{st: s.st, now: s.now, readOnly: true})
}

// Ping всегда успешен
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// PutIngredient добавляет или заменяет ингредиент в обход журнала движений (заполнение каталога)
func (s *Store) PutIngredient(ing models.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ing.ID == "" {
		ing.ID = uuid.New().String()
	}
	s.st.ingredients[ing.ID] = ing
}

// PutDrink добавляет или заменяет напиток вместе с рецептом
func (s *Store) PutDrink(d models.Drink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	lines := make([]models.RecipeLine, len(d.Recipe))
	for i, l := range d.Recipe {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.DrinkID = d.ID
		lines[i] = l
	}
	d.Recipe = lines
	s.st.drinks[d.ID] = d
}

// PutSupplier добавляет или заменяет поставщика
func (s *Store) PutSupplier(sup models.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.suppliers[sup.ID] = sup
}

// PutOffer добавляет предложение поставщика
func (s *Store) PutOffer(o models.SupplierOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Supplier = nil
	s.st.offers = append(s.st.offers, o)
}

type memTx struct {
	st       *state
	now      func() time.Time
	readOnly bool
}

func (t *memTx) writable(op string) error {
	if t.readOnly {
		return &models.PersistenceError{Op: op, Err: errReadOnly}
	}
	return nil
}

func (t *memTx) GetIngredient(ctx context.Context, id string) (*models.Ingredient, error) {
	ing, ok := t.st.ingredients[id]
	if !ok {
		return nil, models.NotFoundf("ингредиент %s не найден", id)
	}
	return &ing, nil
}

func (t *memTx) FindIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error) {
	out := make(map[string]*models.Ingredient, len(ids))
	for _, id := range ids {
		if ing, ok := t.st.ingredients[id]; ok {
			out[id] = &ing
		}
	}
	return out, nil
}

// LockIngredients в памяти не отличается от чтения: запись уже сериализована мьютексом хранилища
func (t *memTx) LockIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error) {
	return t.FindIngredients(ctx, ids)
}

func (t *memTx) ListLowStock(ctx context.Context) ([]models.Ingredient, error) {
	var out []models.Ingredient
	for _, ing := range t.st.ingredients {
		if ing.IsLow() {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *memTx) CreateIngredient(ctx context.Context, ing *models.Ingredient) error {
	if err := t.writable("create ingredient"); err != nil {
		return err
	}
	if ing.ID == "" {
		ing.ID = uuid.New().String()
	}
	now := t.now()
	ing.CreatedAt, ing.UpdatedAt = now, now
	t.st.ingredients[ing.ID] = *ing
	return nil
}

func (t *memTx) AddStock(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := t.writable("add stock"); err != nil {
		return decimal.Zero, err
	}
	ing, ok := t.st.ingredients[id]
	if !ok {
		return decimal.Zero, models.NotFoundf("ингредиент %s не найден", id)
	}
	next := ing.CurrentStock.Add(delta)
	if next.IsNegative() {
		return ing.CurrentStock, storage.ErrNegativeStock
	}
	ing.CurrentStock = next
	ing.UpdatedAt = t.now()
	t.st.ingredients[id] = ing
	return next, nil
}

func (t *memTx) AppendMovements(ctx context.Context, movements []models.StockMovement) error {
	if err := t.writable("append movements"); err != nil {
		return err
	}
	for i := range movements {
		if movements[i].ID == "" {
			movements[i].ID = uuid.New().String()
		}
		if movements[i].CreatedAt.IsZero() {
			movements[i].CreatedAt = t.now()
		}
		t.st.movements = append(t.st.movements, movements[i])
	}
	return nil
}

func (t *memTx) ListMovements(ctx context.Context, filter storage.MovementFilter) ([]models.StockMovement, error) {
	var out []models.StockMovement
	// Обратный обход: при равном времени более поздняя запись идет первой
	for i := len(t.st.movements) - 1; i >= 0; i-- {
		m := t.st.movements[i]
		if filter.IngredientID != "" && m.IngredientID != filter.IngredientID {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) GetDrink(ctx context.Context, id string) (*models.Drink, error) {
	d, ok := t.st.drinks[id]
	if !ok {
		return nil, models.NotFoundf("напиток %s не найден", id)
	}
	d.Recipe = append([]models.RecipeLine(nil), d.Recipe...)
	sort.SliceStable(d.Recipe, func(i, j int) bool {
		return d.Recipe[i].Position < d.Recipe[j].Position
	})
	return &d, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := t.writable("create order"); err != nil {
		return err
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := t.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	for i := range order.Lines {
		if order.Lines[i].ID == "" {
			order.Lines[i].ID = uuid.New().String()
		}
		order.Lines[i].OrderID = order.ID
	}
	t.st.orders[order.ID] = copyOrder(*order)
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, models.NotFoundf("заказ %s не найден", id)
	}
	c := copyOrder(o)
	return &c, nil
}

func (t *memTx) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, change models.OrderStatusChange) error {
	if err := t.writable("update order status"); err != nil {
		return err
	}
	o, ok := t.st.orders[change.OrderID]
	if !ok {
		return models.NotFoundf("заказ %s не найден", change.OrderID)
	}
	now := t.now()
	o.Status = change.To
	if change.StaffID != nil {
		staff := *change.StaffID
		o.StaffID = &staff
	}
	o.UpdatedAt = now
	t.st.orders[o.ID] = o

	if change.ID == "" {
		change.ID = uuid.New().String()
	}
	change.CreatedAt = now
	t.st.changes = append(t.st.changes, change)
	return nil
}

func (t *memTx) ListOrders(ctx context.Context, filter storage.OrderFilter) (*storage.OrderPage, error) {
	filter = filter.Normalize()
	customer := strings.ToLower(filter.Customer)

	var matched []models.Order
	for _, o := range t.st.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if customer != "" && !strings.Contains(strings.ToLower(o.CustomerName), customer) {
			continue
		}
		if filter.From != nil && o.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &storage.OrderPage{Total: int64(len(matched)), Page: filter.Page, Limit: filter.Limit}
	start := (filter.Page - 1) * filter.Limit
	if start < len(matched) {
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Orders = matched[start:end]
	}
	return page, nil
}

func (t *memTx) ListStatusChanges(ctx context.Context, orderID string) ([]models.OrderStatusChange, error) {
	var out []models.OrderStatusChange
	for _, c := range t.st.changes {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memTx) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	s, ok := t.st.suppliers[id]
	if !ok {
		return nil, models.NotFoundf("поставщик %s не найден", id)
	}
	return &s, nil
}

func (t *memTx) ListOffers(ctx context.Context, ingredientIDs []string) (map[string][]models.SupplierOffer, error) {
	wanted := make(map[string]bool, len(ingredientIDs))
	for _, id := range ingredientIDs {
		wanted[id] = true
	}
	out := make(map[string][]models.SupplierOffer)
	for _, o := range t.st.offers {
		if !wanted[o.IngredientID] {
			continue
		}
		if sup, ok := t.st.suppliers[o.SupplierID]; ok {
			o.Supplier = &sup
		}
		out[o.IngredientID] = append(out[o.IngredientID], o)
	}
	return out, nil
}

func copyOrder(o models.Order) models.Order {
	o.Lines = append([]models.OrderLine(nil), o.Lines...)
	return o
}
