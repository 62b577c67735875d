// Package sample is a small demo domain served by the gateway.
package sample

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const Namespace = "org.sample"

type Role int

const (
	Engineer Role = iota
	Manager
	Director
)

var roleNames = [...]string{"Engineer", "Manager", "Director"}

func (r Role) String() string {
	if int(r) < len(roleNames) && r >= 0 {
		return roleNames[r]
	}
	return "Unknown"
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	for i, n := range roleNames {
		if n == string(b) {
			*r = Role(i)
			return nil
		}
	}
	return errors.Errorf("unknown role %q", b)
}

type Person struct {
	ID       int64         `odata:"id,key"`
	Name     string        `odata:"name,notnull"`
	Email    *string       `odata:"email"`
	Role     Role          `odata:"role,enum=string,notnull"`
	Tags     []string      `odata:"tags"`
	Joined   time.Time     `odata:"joined"`
	Employer *Company      `odata:"employer,manyToOne"`
	Projects []Project     `odata:"projects,manyToMany"`
	Internal string        `odata:"-"`
	Shift    time.Duration `odata:"shift"`
}

type Company struct {
	ID        int64    `odata:"id,key"`
	Name      string   `odata:"name,notnull"`
	Founded   int32    `odata:"founded"`
	Employees []Person `odata:"employees,oneToMany,mappedBy=employer"`
}

type Project struct {
	ID      uuid.UUID `odata:"id,key"`
	Title   string    `odata:"title,notnull"`
	Budget  float64   `odata:"budget"`
	Members []Person  `odata:"members,manyToMany,mappedBy=projects"`
}
