package store

import "testing"

func TestDefaultSchemaValidates(t *testing.T) {
	if err := DefaultSchema().Validate(); err != nil {
		t.Fatalf("DefaultSchema invalid: %v", err)
	}
}

func TestSchemaValidateRejects(t *testing.T) {
	cases := map[string]Schema{
		"no account entity": {
			Entities: []Entity{{Name: EntityRole}},
			Roles:    []Role{RoleUser},
		},
		"dangling relation": {
			Entities:  []Entity{{Name: EntityAccount}},
			Relations: []Relation{{From: EntityAccount, To: "team", ForeignKey: "team"}},
			Roles:     []Role{RoleUser},
		},
		"no seed roles": {
			Entities: []Entity{{Name: EntityAccount}},
		},
		"unknown role": {
			Entities: []Entity{{Name: EntityAccount}},
			Roles:    []Role{"owner"},
		},
		"duplicate entity": {
			Entities: []Entity{{Name: EntityAccount}, {Name: EntityAccount}},
			Roles:    []Role{RoleUser},
		},
	}
	for name, s := range cases {
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
