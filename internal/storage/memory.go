package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/radiusdt/impact-connector/internal/models"
)

type attributeKey struct {
	keyGroup string
	entityID int64
	key      string
}

// InMemoryStore implements AttributeStore and CommerceStore in memory. It is
// used when no database is configured and as the fake in tests.
type InMemoryStore struct {
	mu sync.RWMutex

	attributes map[attributeKey]string

	customers      map[int64]*models.Customer
	orders         map[int64]*models.Order
	orderItems     map[int64]*models.OrderItem
	products       map[int64]*models.Product
	categories     map[int64][]models.Category // by product, in display order
	discounts      map[int64]*models.Discount
	discountUsage  map[int64][]int64 // order id -> discount ids
	returnRequests map[int64]*models.ReturnRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		attributes:     make(map[attributeKey]string),
		customers:      make(map[int64]*models.Customer),
		orders:         make(map[int64]*models.Order),
		orderItems:     make(map[int64]*models.OrderItem),
		products:       make(map[int64]*models.Product),
		categories:     make(map[int64][]models.Category),
		discounts:      make(map[int64]*models.Discount),
		discountUsage:  make(map[int64][]int64),
		returnRequests: make(map[int64]*models.ReturnRequest),
	}
}

// ---- AttributeStore ----

func (s *InMemoryStore) GetAttribute(_ context.Context, keyGroup string, entityID int64, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributes[attributeKey{keyGroup, entityID, key}], nil
}

func (s *InMemoryStore) SaveAttribute(_ context.Context, keyGroup string, entityID int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := attributeKey{keyGroup, entityID, key}
	if value == "" {
		delete(s.attributes, k)
		return nil
	}
	s.attributes[k] = value
	return nil
}

// ---- Seeding ----

func (s *InMemoryStore) PutCustomer(c models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = &c
}

func (s *InMemoryStore) PutOrder(o models.Order, items ...models.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = &o
	for i := range items {
		it := items[i]
		it.OrderID = o.ID
		s.orderItems[it.ID] = &it
	}
}

func (s *InMemoryStore) PutProduct(p models.Product, categories ...models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
	if len(categories) > 0 {
		s.categories[p.ID] = append([]models.Category(nil), categories...)
	}
}

func (s *InMemoryStore) PutDiscountUsage(orderID int64, d models.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[d.ID] = &d
	s.discountUsage[orderID] = append(s.discountUsage[orderID], d.ID)
}

func (s *InMemoryStore) PutReturnRequest(rr models.ReturnRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnRequests[rr.ID] = &rr
}

// ---- CommerceStore ----

func (s *InMemoryStore) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) GetOrderByOrderItem(_ context.Context, orderItemID int64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.orderItems[orderItemID]
	if !ok {
		return nil, ErrNotFound
	}
	o, ok := s.orders[it.OrderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *InMemoryStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderItemsLocked(orderID), nil
}

// orderItemsLocked returns the order lines sorted by id, which is the host's
// natural item sequence.
func (s *InMemoryStore) orderItemsLocked(orderID int64) []models.OrderItem {
	res := make([]models.OrderItem, 0)
	for _, it := range s.orderItems {
		if it.OrderID == orderID {
			res = append(res, *it)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (s *InMemoryStore) GetProducts(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			cp := *p
			res[id] = &cp
		}
	}
	return res, nil
}

func (s *InMemoryStore) GetFirstCategory(_ context.Context, productID int64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cats := s.categories[productID]
	if len(cats) == 0 {
		return nil, nil
	}
	c := cats[0]
	return &c, nil
}

func (s *InMemoryStore) GetAppliedDiscounts(_ context.Context, orderID int64) ([]models.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []models.Discount
	for _, id := range s.discountUsage[orderID] {
		if d, ok := s.discounts[id]; ok {
			res = append(res, *d)
		}
	}
	return res, nil
}

func (s *InMemoryStore) GetReturnableItems(_ context.Context, orderID int64) ([]models.ReturnableItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	returned := make(map[int64]int)
	for _, rr := range s.returnRequests {
		if countsTowardReturned(rr.Status) {
			returned[rr.OrderItemID] += rr.Quantity
		}
	}

	items := s.orderItemsLocked(orderID)
	res := make([]models.ReturnableItem, 0, len(items))
	for _, it := range items {
		available := it.Quantity - returned[it.ID]
		if available < 0 {
			available = 0
		}
		res = append(res, models.ReturnableItem{Item: it, AvailableQuantityForReturn: available})
	}
	return res, nil
}
