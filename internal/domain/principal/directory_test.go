package principal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	clinicians map[string]*Principal
	nurses     map[string]*Principal
	admins     map[string]*Principal
	byID       map[uuid.UUID]*Principal

	err error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clinicians: map[string]*Principal{},
		nurses:     map[string]*Principal{},
		admins:     map[string]*Principal{},
		byID:       map[uuid.UUID]*Principal{},
	}
}

func (m *mockRepo) add(p *Principal) {
	switch p.Kind {
	case KindClinician:
		m.clinicians[p.Email] = p
	case KindNurse:
		m.nurses[p.Email] = p
	case KindClinicAdmin:
		m.admins[p.Email] = p
		if p.LoginName != "" {
			m.admins[p.LoginName] = p
		}
	}
	m.byID[p.ID] = p
}

func (m *mockRepo) get(store map[string]*Principal, key string) (*Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := store[key]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetClinicianByEmail(_ context.Context, email string) (*Principal, error) {
	return m.get(m.clinicians, email)
}

func (m *mockRepo) GetNurseByEmail(_ context.Context, email string) (*Principal, error) {
	return m.get(m.nurses, email)
}

func (m *mockRepo) GetAdminByLogin(_ context.Context, login string) (*Principal, error) {
	return m.get(m.admins, login)
}

func (m *mockRepo) getByID(id uuid.UUID, kind Kind) (*Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.byID[id]; ok && p.Kind == kind {
		return p, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetClinicianByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	return m.getByID(id, KindClinician)
}

func (m *mockRepo) GetNurseByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	return m.getByID(id, KindNurse)
}

func (m *mockRepo) GetAdminByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	return m.getByID(id, KindClinicAdmin)
}

func (m *mockRepo) CreateClinician(_ context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Kind = KindClinician
	m.add(p)
	return nil
}

func (m *mockRepo) UpdatePasswordHash(_ context.Context, p *Principal, hash string) error {
	stored, ok := m.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Hash = hash
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, p *Principal, active bool) error {
	stored, ok := m.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	stored.IsActive = active
	return nil
}

func TestLookupByEmailOrder(t *testing.T) {
	repo := newMockRepo()
	repo.add(&Principal{ID: uuid.New(), Kind: KindClinician, Email: "shared@clinic.test", Role: "doctor"})
	repo.add(&Principal{ID: uuid.New(), Kind: KindNurse, Email: "shared@clinic.test", Role: "nurse"})
	repo.add(&Principal{ID: uuid.New(), Kind: KindClinicAdmin, Email: "shared@clinic.test", Role: "clinic-admin"})

	dir := NewDirectory(repo)
	p, err := dir.LookupByEmail(context.Background(), "shared@clinic.test")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Kind != KindClinician {
		t.Errorf("expected clinician to win email collision, got %s", p.Kind)
	}
}

func TestLookupByEmailFallsThrough(t *testing.T) {
	repo := newMockRepo()
	repo.add(&Principal{ID: uuid.New(), Kind: KindNurse, Email: "nurse@clinic.test", Role: "nurse"})
	repo.add(&Principal{ID: uuid.New(), Kind: KindClinicAdmin, Email: "admin@clinic.test", LoginName: "frontdesk", Role: "clinic-admin"})

	dir := NewDirectory(repo)

	p, err := dir.LookupByEmail(context.Background(), "nurse@clinic.test")
	if err != nil {
		t.Fatalf("nurse lookup: %v", err)
	}
	if p.Kind != KindNurse {
		t.Errorf("expected nurse, got %s", p.Kind)
	}

	p, err = dir.LookupByEmail(context.Background(), "frontdesk")
	if err != nil {
		t.Fatalf("admin username lookup: %v", err)
	}
	if p.Kind != KindClinicAdmin {
		t.Errorf("expected clinic-admin, got %s", p.Kind)
	}
}

func TestLookupByEmailNormalizes(t *testing.T) {
	repo := newMockRepo()
	repo.add(&Principal{ID: uuid.New(), Kind: KindClinician, Email: "doc@clinic.test"})

	dir := NewDirectory(repo)
	p, err := dir.LookupByEmail(context.Background(), "  Doc@Clinic.Test ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Email != "doc@clinic.test" {
		t.Errorf("unexpected email %q", p.Email)
	}
}

func TestLookupByEmailNotFound(t *testing.T) {
	dir := NewDirectory(newMockRepo())
	if _, err := dir.LookupByEmail(context.Background(), "nobody@clinic.test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByEmailStoreError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")

	dir := NewDirectory(repo)
	_, err := dir.LookupByEmail(context.Background(), "doc@clinic.test")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("store errors must surface, got %v", err)
	}
}

func TestLookupByID(t *testing.T) {
	repo := newMockRepo()
	nurse := &Principal{ID: uuid.New(), Kind: KindNurse, Email: "n@clinic.test"}
	repo.add(nurse)

	dir := NewDirectory(repo)
	p, err := dir.LookupByID(context.Background(), nurse.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.ID != nurse.ID || p.Kind != KindNurse {
		t.Errorf("got %+v", p)
	}

	if _, err := dir.LookupByID(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
