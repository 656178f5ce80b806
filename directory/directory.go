package directory

import (
	"fmt"
	"nexus-mail/domain"
	"nexus-mail/errors"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type IDirectory interface {
	Resolve(id string) (domain.User, bool)
	List() []domain.User
}

// Directory is the read-only registry of users known to the engine.
type Directory struct {
	users []domain.User
	byID  map[string]domain.User
}

type seedUser struct {
	ID          string `yaml:"id" validate:"required,ne=everyone"`
	DisplayName string `yaml:"display_name" validate:"required"`
	Role        string `yaml:"role" validate:"required,oneof=admin member"`
	Email       string `yaml:"email" validate:"omitempty,email"`
	Avatar      string `yaml:"avatar" validate:"omitempty,url"`
	Department  string `yaml:"department"`
}

type seedFile struct {
	Users []seedUser `yaml:"users" validate:"required,min=1,dive"`
}

var validate = validator.New()

// New builds a directory. Ids must be unique and "everyone" is reserved.
func New(users []domain.User) (*Directory, error) {
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		if u.ID == "" || u.ID == domain.Everyone {
			return nil, fmt.Errorf("%w: invalid user id %q", errors.ErrValidation, u.ID)
		}
		if _, ok := byID[u.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate user id %q", errors.ErrValidation, u.ID)
		}
		byID[u.ID] = u
	}
	return &Directory{users: append([]domain.User(nil), users...), byID: byID}, nil
}

// Load reads a YAML seed file:
//
//	users:
//	  - id: admin-1
//	    display_name: System Admin
//	    role: admin
func Load(path string) (*Directory, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory file: %w", err)
	}
	var file seedFile
	if err = yaml.Unmarshal(bytes, &file); err != nil {
		return nil, fmt.Errorf("directory file %s: %w", path, err)
	}
	if err = validate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return New(lo.Map(file.Users, func(s seedUser, _ int) domain.User {
		return domain.User{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Role:        domain.Role(s.Role),
			Email:       s.Email,
			Avatar:      s.Avatar,
			Department:  s.Department,
		}
	}))
}

// Default is the built-in roster used when no seed file is configured.
func Default() *Directory {
	d, _ := New([]domain.User{
		{ID: "admin-1", DisplayName: "System Admin", Role: domain.RoleAdmin, Email: "admin@nexus.com", Avatar: "https://picsum.photos/id/1/200/200"},
		{ID: "user-1", DisplayName: "Alice Chen", Role: domain.RoleMember, Email: "alice@nexus.com", Avatar: "https://picsum.photos/id/64/200/200", Department: "Engineering"},
		{ID: "user-2", DisplayName: "Bob Smith", Role: domain.RoleMember, Email: "bob@nexus.com", Avatar: "https://picsum.photos/id/91/200/200", Department: "Sales"},
	})
	return d
}

func (d *Directory) Resolve(id string) (domain.User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// List returns a copy, in registration order.
func (d *Directory) List() []domain.User {
	return append([]domain.User(nil), d.users...)
}
