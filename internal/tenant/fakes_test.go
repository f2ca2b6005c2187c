package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/reactive"
	"github.com/ragdesk/console/internal/session"
)

type fakeSession struct {
	obs *reactive.Observable[session.State]
}

func newFakeSession(p *domain.Principal) *fakeSession {
	return &fakeSession{obs: reactive.New(session.State{Principal: p})}
}

func (f *fakeSession) Principal() *domain.Principal {
	return f.obs.Get().Principal
}

func (f *fakeSession) Subscribe(fn func(session.State)) func() {
	return f.obs.Subscribe(fn)
}

func (f *fakeSession) set(p *domain.Principal) {
	f.obs.Set(session.State{Principal: p})
}

type gate struct {
	started chan struct{}
	release chan struct{}
	// honorCancel makes the fetch return as soon as its context is done.
	honorCancel bool
}

func newGate(honorCancel bool) *gate {
	return &gate{
		started:     make(chan struct{}, 1),
		release:     make(chan struct{}),
		honorCancel: honorCancel,
	}
}

type fakeTenantAPI struct {
	mu      sync.Mutex
	tenants map[string]*domain.TenantRecord
	errs    map[string]error
	gates   map[string]*gate
	calls   map[string]int

	settingsPatches []domain.SettingsPatch
	tenantPatches   []domain.TenantPatch
	writeErr        error
}

func newFakeTenantAPI(records ...*domain.TenantRecord) *fakeTenantAPI {
	f := &fakeTenantAPI{
		tenants: make(map[string]*domain.TenantRecord),
		errs:    make(map[string]error),
		gates:   make(map[string]*gate),
		calls:   make(map[string]int),
	}
	for _, rec := range records {
		f.tenants[rec.ID] = rec
	}
	return f
}

func (f *fakeTenantAPI) GetTenant(ctx context.Context, tenantID string) (*domain.TenantRecord, error) {
	f.mu.Lock()
	f.calls[tenantID]++
	g := f.gates[tenantID]
	f.mu.Unlock()

	if g != nil {
		g.started <- struct{}{}
		if g.honorCancel {
			select {
			case <-g.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-g.release
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[tenantID]; err != nil {
		return nil, err
	}
	rec, ok := f.tenants[tenantID]
	if !ok {
		return nil, domain.ErrNotFound("Tenant not found").WithCode(domain.ErrorCodeTenantNotFound)
	}
	return rec.Clone(), nil
}

func (f *fakeTenantAPI) UpdateTenant(ctx context.Context, tenantID string, patch domain.TenantPatch) (*domain.TenantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.tenantPatches = append(f.tenantPatches, patch)
	rec := f.tenants[tenantID].Clone()
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Domain != nil {
		rec.Domain = *patch.Domain
	}
	if patch.Plan != nil {
		rec.Plan = *patch.Plan
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	f.tenants[tenantID] = rec
	return rec.Clone(), nil
}

func (f *fakeTenantAPI) UpdateTenantSettings(ctx context.Context, tenantID string, patch domain.SettingsPatch) (*domain.TenantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.settingsPatches = append(f.settingsPatches, patch)
	rec := f.tenants[tenantID].Clone()
	if patch.DefaultChatModel != nil {
		rec.Settings.DefaultChatModel = *patch.DefaultChatModel
	}
	if patch.DefaultEmbeddingModel != nil {
		rec.Settings.DefaultEmbeddingModel = *patch.DefaultEmbeddingModel
	}
	if patch.WebhookNotifications != nil {
		rec.Settings.WebhookNotifications = *patch.WebhookNotifications
	}
	if patch.AllowedOrigins != nil {
		rec.Settings.AllowedOrigins = append([]string(nil), (*patch.AllowedOrigins)...)
	}
	f.tenants[tenantID] = rec
	return rec.Clone(), nil
}

func (f *fakeTenantAPI) setGate(tenantID string, g *gate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[tenantID] = g
}

func (f *fakeTenantAPI) setErr(tenantID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[tenantID] = err
}

func (f *fakeTenantAPI) callCount(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantID]
}

func (f *fakeTenantAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func principalIn(tenantID string, role domain.Role) *domain.Principal {
	p := &domain.Principal{ID: "user-" + string(role), Role: role, IsActive: true}
	if tenantID != "" {
		id := tenantID
		p.TenantID = &id
	}
	return p
}

func record(id, name string) *domain.TenantRecord {
	return &domain.TenantRecord{
		ID:     id,
		Name:   name,
		Domain: id + ".example.com",
		Plan:   "starter",
		Status: "active",
		Settings: domain.TenantSettings{
			MaxUsers:              10,
			MaxDocuments:          1000,
			MaxStorageMB:          512,
			DefaultChatModel:      "gpt-4o-mini",
			DefaultEmbeddingModel: "text-embedding-3-small",
			AllowedOrigins:        []string{"https://" + id + ".example.com"},
		},
	}
}

func waitBriefly() {
	time.Sleep(time.Millisecond)
}
