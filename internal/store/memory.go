package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/transactflow/internal/domain"
)

// MemoryStore keeps accounts and the ledger in process memory. Per-account
// mutexes serialize transfers touching the same account; staged writes are
// applied under the store lock only when the callback succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	ledger   []domain.Transaction
	refs     map[string]int
	keys     map[clientKey]int
	nextID   int64

	locks sync.Map // identity -> *sync.Mutex, populated by CreateAccount
	now   func() time.Time
}

// clientKey scopes an idempotency key to the sender that supplied it.
type clientKey struct {
	sender string
	key    string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.Account),
		refs:     make(map[string]int),
		keys:     make(map[clientKey]int),
		now:      time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) GetAccount(_ context.Context, identity string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[identity]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acc.Identity]; exists {
		return fmt.Errorf("account %s already exists", acc.Identity)
	}
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.Identity] = *acc
	s.locks.Store(acc.Identity, &sync.Mutex{})
	return nil
}

func (s *MemoryStore) FindByParticipant(_ context.Context, identity string, role domain.Role) ([]domain.Transaction, error) {
	s.mu.RLock()
	out := make([]domain.Transaction, 0)
	for _, txn := range s.ledger {
		if matchesRole(txn, identity, role) {
			out = append(out, txn)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func matchesRole(txn domain.Transaction, identity string, role domain.Role) bool {
	switch role {
	case domain.RoleSender:
		return txn.SenderIdentity == identity
	case domain.RoleReceiver:
		return txn.ReceiverIdentity == identity
	default:
		return txn.SenderIdentity == identity || txn.ReceiverIdentity == identity
	}
}

// accountLock returns nil for unknown identities. Writes to an account created
// mid-transfer are still guarded by the version check in commit.
func (s *MemoryStore) accountLock(identity string) *sync.Mutex {
	l, ok := s.locks.Load(identity)
	if !ok {
		return nil
	}
	return l.(*sync.Mutex)
}

func (s *MemoryStore) ExecTransfer(ctx context.Context, sender, receiver string, fn func(UnitOfWork) error) error {
	var held []*sync.Mutex
	for _, id := range lockOrder(sender, receiver) {
		if l := s.accountLock(id); l != nil {
			l.Lock()
			held = append(held, l)
		}
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	unit := &memoryUnit{store: s, saved: make(map[string]domain.Account)}
	if err := fn(unit); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(unit)
}

func (s *MemoryStore) commit(u *memoryUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, acc := range u.saved {
		current, ok := s.accounts[id]
		if !ok || current.Version != acc.Version-1 {
			return domain.ErrConflict
		}
	}
	for _, txn := range u.appended {
		if _, dup := s.refs[txn.ReferenceNumber]; dup {
			return domain.ErrDuplicateTransaction
		}
		if txn.ClientKey != "" {
			if _, dup := s.keys[clientKey{txn.SenderIdentity, txn.ClientKey}]; dup {
				return domain.ErrIdempotencyInProgress
			}
		}
	}

	for id, acc := range u.saved {
		s.accounts[id] = acc
	}
	for _, txn := range u.appended {
		s.nextID++
		txn.ID = s.nextID
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = s.now()
		}
		s.ledger = append(s.ledger, *txn)
		s.refs[txn.ReferenceNumber] = len(s.ledger) - 1
		if txn.ClientKey != "" {
			s.keys[clientKey{txn.SenderIdentity, txn.ClientKey}] = len(s.ledger) - 1
		}
	}
	return nil
}

type memoryUnit struct {
	store    *MemoryStore
	saved    map[string]domain.Account
	appended []*domain.Transaction
}

func (u *memoryUnit) Account(ctx context.Context, identity string) (*domain.Account, error) {
	if acc, ok := u.saved[identity]; ok {
		return &acc, nil
	}
	return u.store.GetAccount(ctx, identity)
}

func (u *memoryUnit) SaveAccount(_ context.Context, acc *domain.Account) error {
	expected := acc.Version
	if staged, ok := u.saved[acc.Identity]; ok {
		if staged.Version != expected {
			return domain.ErrConflict
		}
	} else {
		u.store.mu.RLock()
		current, ok := u.store.accounts[acc.Identity]
		u.store.mu.RUnlock()
		if !ok {
			return domain.ErrAccountNotFound
		}
		if current.Version != expected {
			return domain.ErrConflict
		}
	}

	next := *acc
	next.Version = expected + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = u.store.now()
	}
	u.saved[acc.Identity] = next
	acc.Version = next.Version
	return nil
}

func (u *memoryUnit) ExistsByReference(_ context.Context, ref string) (bool, error) {
	for _, txn := range u.appended {
		if txn.ReferenceNumber == ref {
			return true, nil
		}
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	_, ok := u.store.refs[ref]
	return ok, nil
}

func (u *memoryUnit) FindByClientKey(_ context.Context, sender, key string) (*domain.Transaction, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	idx, ok := u.store.keys[clientKey{sender, key}]
	if !ok {
		return nil, nil
	}
	txn := u.store.ledger[idx]
	return &txn, nil
}

func (u *memoryUnit) Append(_ context.Context, txn *domain.Transaction) error {
	for _, staged := range u.appended {
		if staged.ReferenceNumber == txn.ReferenceNumber {
			return domain.ErrDuplicateTransaction
		}
	}
	u.appended = append(u.appended, txn)
	return nil
}
