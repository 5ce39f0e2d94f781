package claims

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// -- Mock Repository --

type mockRepo struct {
	mu        sync.Mutex
	claims    map[int64]*Claim
	nextID    int64
	nextLine  int64
	createErr error
	getErr    error
	updateErr error
	creates   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{claims: make(map[int64]*Claim)}
}

func (m *mockRepo) CreateWithLines(_ context.Context, reference string, lines []ClaimLineInput) (*Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return nil, m.createErr
	}
	if len(lines) == 0 {
		return nil, &ValidationError{Line: -1, Field: "lines", Rule: RuleMinLines}
	}
	for _, c := range m.claims {
		if c.ClaimReference == reference {
			return nil, duplicateReference(reference)
		}
	}

	m.nextID++
	now := time.Now()
	c := &Claim{ID: m.nextID, ClaimReference: reference, CreatedAt: now, UpdatedAt: now}
	for _, in := range lines {
		m.nextLine++
		l := newClaimLine(c.ID, in)
		l.ID = m.nextLine
		l.CreatedAt = now
		c.Lines = append(c.Lines, l)
	}
	c.TotalNetFee = SumNetFees(c.Lines)
	c.Status = StatusProcessed
	m.claims[c.ID] = c

	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetByReference(_ context.Context, reference string) (*Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, c := range m.claims {
		if c.ClaimReference == reference {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *mockRepo) TopProvidersByNetFee(_ context.Context, limit int) ([]*ProviderRanking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byNPI := make(map[string]*ProviderRanking)
	for _, c := range m.claims {
		for _, l := range c.Lines {
			p, ok := byNPI[l.ProviderNPI]
			if !ok {
				p = &ProviderRanking{ProviderNPI: l.ProviderNPI}
				byNPI[l.ProviderNPI] = p
			}
			p.TotalNetFees = Money{p.TotalNetFees.Add(l.NetFee.Decimal)}
			p.ClaimCount++
		}
	}
	items := make([]*ProviderRanking, 0, len(byNPI))
	for _, p := range byNPI {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool {
		if c := items[i].TotalNetFees.Cmp(items[j].TotalNetFees.Decimal); c != 0 {
			return c > 0
		}
		return items[i].ProviderNPI < items[j].ProviderNPI
	})
	if len(items) > limit {
		items = items[:limit]
	}
	for i, p := range items {
		p.Rank = i + 1
	}
	return items, nil
}

func (m *mockRepo) lineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.claims {
		n += len(c.Lines)
	}
	return n
}

// -- Mock Notifier --

type mockNotifier struct {
	mu       sync.Mutex
	err      error
	requests []PaymentRequest
}

func (n *mockNotifier) Notify(_ context.Context, req PaymentRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	return n.err
}

// -- Mock JSON store --

type mockStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	sets    int
	deletes int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

// -- Fixtures --

func money(s string) *Money {
	m := MustMoney(s)
	return &m
}

func serviceDate(y int, mo time.Month, d int) pgtype.Date {
	return pgtype.Date{Time: time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// validLine returns a line that passes every rule; net fee 81.25.
func validLine() ClaimLineInput {
	quadrant := "UR"
	return ClaimLineInput{
		ServiceDate:        serviceDate(2018, time.March, 28),
		SubmittedProcedure: "d0180",
		Quadrant:           &quadrant,
		PlanGroup:          "GRP-1000",
		SubscriberNumber:   "3730189502",
		ProviderNPI:        "1497775530",
		ProviderFees:       money("130.00"),
		AllowedFees:        money("65.00"),
		MemberCoinsurance:  money("16.25"),
		MemberCopay:        money("0.00"),
	}
}

func lineWithFees(npi, provider, allowed, coinsurance, copay string) ClaimLineInput {
	l := validLine()
	l.ProviderNPI = npi
	l.ProviderFees = money(provider)
	l.AllowedFees = money(allowed)
	l.MemberCoinsurance = money(coinsurance)
	l.MemberCopay = money(copay)
	return l
}

func claimRequest(ref string, lines ...ClaimLineInput) CreateClaimRequest {
	return CreateClaimRequest{ClaimReference: ref, Lines: lines}
}
