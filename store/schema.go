package store

import (
	"errors"
	"fmt"
)

// Entity is a persisted record type and its unique fields.
type Entity struct {
	Name   string
	Unique []string
}

// Relation declares that From.ForeignKey references To.
type Relation struct {
	From       string
	To         string
	ForeignKey string
}

// Schema is the typed relationship description consumed by Migrate.
type Schema struct {
	Entities  []Entity
	Relations []Relation
	Roles     []Role
}

const (
	EntityAccount = "account"
	EntityRole    = "role"
)

// DefaultSchema declares accounts, roles, and the role 1-N account relation,
// seeding the admin and user roles.
func DefaultSchema() Schema {
	return Schema{
		Entities: []Entity{
			{Name: EntityRole, Unique: []string{"name"}},
			{Name: EntityAccount, Unique: []string{"username", "email"}},
		},
		Relations: []Relation{
			{From: EntityAccount, To: EntityRole, ForeignKey: "role"},
		},
		Roles: []Role{RoleAdmin, RoleUser},
	}
}

// Validate checks the schema is internally consistent.
func (s Schema) Validate() error {
	entities := make(map[string]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return errors.New("schema entity name is required")
		}
		if _, dup := entities[e.Name]; dup {
			return fmt.Errorf("schema entity %q declared twice", e.Name)
		}
		entities[e.Name] = struct{}{}
	}
	if _, ok := entities[EntityAccount]; !ok {
		return errors.New("schema must declare the account entity")
	}
	for _, r := range s.Relations {
		if _, ok := entities[r.From]; !ok {
			return fmt.Errorf("relation references undeclared entity %q", r.From)
		}
		if _, ok := entities[r.To]; !ok {
			return fmt.Errorf("relation references undeclared entity %q", r.To)
		}
		if r.ForeignKey == "" {
			return fmt.Errorf("relation %s->%s has no foreign key", r.From, r.To)
		}
	}
	if len(s.Roles) == 0 {
		return errors.New("schema must seed at least one role")
	}
	for _, role := range s.Roles {
		if !role.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}
	return nil
}

func (s Schema) roleSet() map[Role]struct{} {
	out := make(map[Role]struct{}, len(s.Roles))
	for _, r := range s.Roles {
		out[r] = struct{}{}
	}
	return out
}
