// Package testutil provides an in-memory data store for service and handler tests.
//
// Usage:
//
//	store := testutil.NewMemStore()
//	org, client := store.AddClient("Acme")
//	store.AddMember(userID, org, model.RoleAdmin)
//	tokens := store.PortalTokens()
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/automsp/portal-server-go/internal/database"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/repository"
)

// MemStore holds clients, memberships, portal tokens and tickets in memory.
// Its repositories ignore transactions; WithTx serializes callers instead.
type MemStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	clients     map[string]model.Client
	memberships map[string]model.Role
	tokens      []*model.PortalToken
	tickets     []*model.Ticket
	clock       time.Time

	// Calls counts repository calls by method name.
	Calls map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		clients:     make(map[string]model.Client),
		memberships: make(map[string]model.Role),
		clock:       time.Now(),
		Calls:       make(map[string]int),
	}
}

// tick returns strictly increasing timestamps so newest-first ordering is stable.
func (s *MemStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *MemStore) record(method string) {
	s.Calls[method]++
}

// CallCount returns how often a repository method was called.
func (s *MemStore) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

// AddClient creates a client in a new organization and returns both ids.
func (s *MemStore) AddClient(name string) (organizationID, clientID string) {
	organizationID = uuid.NewString()
	return organizationID, s.AddClientToOrganization(organizationID, name)
}

// AddClientToOrganization creates a client in organizationID and returns its id.
func (s *MemStore) AddClientToOrganization(organizationID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.clients[id] = model.Client{ID: id, Name: name, OrganizationID: organizationID}
	return id
}

func (s *MemStore) AddMember(userID, organizationID string, role model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[userID+"/"+organizationID] = role
}

// Tokens returns copies of all stored tokens in insertion order.
func (s *MemStore) Tokens() []model.PortalToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PortalToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, *t)
	}
	return out
}

// Tickets returns copies of all stored tickets in insertion order.
func (s *MemStore) Tickets() []model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, *t)
	}
	return out
}

// SetTokenExpiry overrides the expiry of a stored token.
func (s *MemStore) SetTokenExpiry(tokenID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.ID == tokenID {
			t.ExpiresAt = &expiresAt
		}
	}
}

// WithTx runs fn while holding the store's transaction lock.
func (s *MemStore) WithTx(_ context.Context, fn database.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(nil)
}

func (s *MemStore) PortalTokens() repository.PortalTokenRepository { return &memTokens{s} }
func (s *MemStore) Clients() repository.ClientRepository           { return &memClients{s} }
func (s *MemStore) Memberships() repository.MembershipRepository   { return &memMemberships{s} }
func (s *MemStore) TicketRepo() repository.TicketRepository        { return &memTickets{s} }

type memTokens struct{ s *MemStore }

func (r *memTokens) WithTx(*sqlx.Tx) repository.PortalTokenRepository { return r }

func (r *memTokens) Create(_ context.Context, p model.CreatePortalTokenParams) (*model.PortalToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("Create")
	expires := p.ExpiresAt
	t := &model.PortalToken{
		ID:             uuid.NewString(),
		ClientID:       p.ClientID,
		OrganizationID: p.OrganizationID,
		TokenDigest:    p.TokenDigest,
		HolderEmail:    p.HolderEmail,
		HolderName:     p.HolderName,
		IsActive:       true,
		ExpiresAt:      &expires,
		CreatedAt:      r.s.tick(),
	}
	r.s.tokens = append(r.s.tokens, t)
	out := *t
	return &out, nil
}

func (r *memTokens) FindByID(_ context.Context, id string) (*model.PortalToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("FindByID")
	for _, t := range r.s.tokens {
		if t.ID == id {
			out := *t
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memTokens) FindActiveByDigest(_ context.Context, digest string) (*model.PortalTokenWithClient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("FindActiveByDigest")
	for _, t := range r.s.tokens {
		if t.TokenDigest == digest && t.IsActive {
			return &model.PortalTokenWithClient{
				PortalToken: *t,
				ClientName:  r.s.clients[t.ClientID].Name,
			}, nil
		}
	}
	return nil, nil
}

func (r *memTokens) ListByClient(_ context.Context, clientID string, limit, offset int) ([]model.PortalToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("ListByClient")
	out := []model.PortalToken{}
	for i := len(r.s.tokens) - 1; i >= 0; i-- {
		if r.s.tokens[i].ClientID == clientID {
			out = append(out, *r.s.tokens[i])
		}
	}
	if offset >= len(out) {
		return []model.PortalToken{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTokens) DeactivateActiveForHolder(_ context.Context, clientID, holderEmail string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("DeactivateActiveForHolder")
	var n int64
	for _, t := range r.s.tokens {
		if t.ClientID == clientID && t.HolderEmail == holderEmail && t.IsActive {
			t.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memTokens) Revoke(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("Revoke")
	for _, t := range r.s.tokens {
		if t.ID == id && t.IsActive {
			t.IsActive = false
			return true, nil
		}
	}
	return false, nil
}

func (r *memTokens) UpdateLastUsed(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("UpdateLastUsed")
	for _, t := range r.s.tokens {
		if t.ID == id {
			t.LastUsedAt = &at
		}
	}
	return nil
}

func (r *memTokens) DeactivateExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("DeactivateExpired")
	now := time.Now()
	var n int64
	for _, t := range r.s.tokens {
		if t.IsActive && t.IsExpiredAt(now) {
			t.IsActive = false
			n++
		}
	}
	return n, nil
}

type memClients struct{ s *MemStore }

func (r *memClients) WithTx(*sqlx.Tx) repository.ClientRepository { return r }

func (r *memClients) FindByID(_ context.Context, id string) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("FindClientByID")
	c, ok := r.s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memClients) LockByID(ctx context.Context, id string) (*model.Client, error) {
	return r.FindByID(ctx, id)
}

type memMemberships struct{ s *MemStore }

func (r *memMemberships) Find(_ context.Context, userID, organizationID string) (*model.OrganizationMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.memberships[userID+"/"+organizationID]
	if !ok {
		return nil, nil
	}
	return &model.OrganizationMembership{UserID: userID, OrganizationID: organizationID, Role: role}, nil
}

type memTickets struct{ s *MemStore }

func (r *memTickets) ListForPortal(_ context.Context, clientID string, limit int) ([]model.PortalTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("ListForPortal")
	matched := []*model.Ticket{}
	for _, t := range r.s.tickets {
		if t.ClientID == clientID {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]model.PortalTicket, 0, len(matched))
	for _, t := range matched {
		out = append(out, model.PortalTicket{
			ID:          t.ID,
			Subject:     t.Subject,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			SLADueDate:  t.SLADueDate,
			ResolvedAt:  t.ResolvedAt,
		})
	}
	return out, nil
}

func (r *memTickets) Create(_ context.Context, p model.CreateTicketParams) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("CreateTicket")
	now := r.s.tick()
	priority := p.Priority
	email := p.CustomerEmail
	t := &model.Ticket{
		ID:                uuid.NewString(),
		ClientID:          p.ClientID,
		OrganizationID:    p.OrganizationID,
		Subject:           p.Subject,
		Description:       p.Description,
		Status:            p.Status,
		Priority:          &priority,
		CustomerSubmitted: p.CustomerSubmitted,
		CustomerEmail:     &email,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.s.tickets = append(r.s.tickets, t)
	out := *t
	return &out, nil
}
