package profile

import (
	"context"
	"sync"
)

var _ Gateway = (*FakeGateway)(nil)

// FakeGateway is an in-process Gateway for tests. It runs a Service over a
// memory repository with the profile id as the caller, so every write is by
// the owner. Queued errors are returned before the service is called.
type FakeGateway struct {
	Service *Service

	mu         sync.Mutex
	createErrs []error
	creates    int
}

// NewFakeGateway builds a FakeGateway over an empty memory repository.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{Service: NewService(NewMemoryRepository(), Options{})}
}

// FailCreate queues errors for the next Create calls.
func (g *FakeGateway) FailCreate(errs ...error) {
	g.mu.Lock()
	g.createErrs = append(g.createErrs, errs...)
	g.mu.Unlock()
}

// Creates reports how many Create calls were made, failed ones included.
func (g *FakeGateway) Creates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates
}

func (g *FakeGateway) Create(ctx context.Context, p Profile) (Profile, error) {
	g.mu.Lock()
	g.creates++
	var err error
	if len(g.createErrs) > 0 {
		err, g.createErrs = g.createErrs[0], g.createErrs[1:]
	}
	g.mu.Unlock()
	if err != nil {
		return Profile{}, err
	}
	stored, _, err := g.Service.Create(ctx, p.ProfileID, p)
	return stored, err
}

func (g *FakeGateway) Fetch(ctx context.Context, id string) (Profile, error) {
	return g.Service.Get(ctx, id)
}

func (g *FakeGateway) Update(ctx context.Context, p Profile) (Profile, error) {
	return g.Service.Update(ctx, p.ProfileID, p)
}

func (g *FakeGateway) Search(ctx context.Context, q SearchQuery) ([]Summary, error) {
	return g.Service.Search(ctx, q)
}
