package testutil

import (
	"context"
	"sync"

	"helpdesk/internal/model"
)

// StubStore is an in-memory principal, schema and settings store with error
// injection. Implements helpdesk.PrincipalStore, helpdesk.SchemaInspector and
// helpdesk.SettingsStore.
type StubStore struct {
	mu        sync.Mutex
	users     map[int64]*model.User
	relations map[string][]model.Column
	settings  map[string]string

	UserErr     error
	RelationErr error
	ColumnErr   error
	SettingErr  error
}

// NewStubStore creates a store holding the critical relations with a
// minimal column set and no users.
func NewStubStore() *StubStore {
	s := &StubStore{
		users:     make(map[int64]*model.User),
		relations: make(map[string][]model.Column),
		settings:  make(map[string]string),
	}
	for _, rel := range []string{"usuarios", "clientes", "chamados", "agendamentos", "configuracoes"} {
		s.relations[rel] = []model.Column{{Name: "id", Type: "INTEGER"}, {Name: "nome", Type: "TEXT"}}
	}
	return s
}

// AddUser stores a user with the given id.
func (s *StubStore) AddUser(id int64, username, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &model.User{ID: id, Username: username, Role: role}
}

// DeleteUser removes a user.
func (s *StubStore) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// SetColumns replaces the columns of a relation, creating it if needed.
func (s *StubStore) SetColumns(relation string, cols []model.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[relation] = cols
}

// DropRelation removes a relation.
func (s *StubStore) DropRelation(relation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relations, relation)
}

func (s *StubStore) FindUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UserErr != nil {
		return nil, s.UserErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *StubStore) ListRelations(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RelationErr != nil {
		return nil, s.RelationErr
	}
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	return names, nil
}

func (s *StubStore) RelationColumns(_ context.Context, relation string) ([]model.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ColumnErr != nil {
		return nil, s.ColumnErr
	}
	return append([]model.Column(nil), s.relations[relation]...), nil
}

func (s *StubStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettingErr != nil {
		return "", false, s.SettingErr
	}
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *StubStore) SetSetting(_ context.Context, key, value, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettingErr != nil {
		return s.SettingErr
	}
	s.settings[key] = value
	return nil
}
