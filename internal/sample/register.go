package sample

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"odatagate/internal/dispatch"
	"odatagate/internal/memstore"
	"odatagate/internal/pg"
	"odatagate/internal/service"
)

// Controllers serve the three sample entity sets.
type Controllers struct {
	People    dispatch.Controller[Person]
	Companies dispatch.Controller[Company]
	Projects  dispatch.Controller[Project]
}

// Register adds Person, Company and Project to b.
func Register(b *service.Builder, c Controllers) error {
	if err := service.Register(b, Namespace, "Person", "People", c.People); err != nil {
		return err
	}
	if err := service.Register(b, Namespace, "Company", "Companies", c.Companies); err != nil {
		return err
	}
	return service.Register(b, Namespace, "Project", "Projects", c.Projects)
}

// Memory returns in-memory controllers with a few seeded records.
func Memory() (Controllers, error) {
	people, err := memstore.New[Person]()
	if err != nil {
		return Controllers{}, err
	}
	companies, err := memstore.New[Company]("name")
	if err != nil {
		return Controllers{}, err
	}
	projects, err := memstore.New[Project]("title")
	if err != nil {
		return Controllers{}, err
	}

	email := "ada@example.org"
	joined := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := companies.Seed(
		Company{ID: 1, Name: "Analytical Engines", Founded: 1837},
		Company{ID: 2, Name: "Difference Works", Founded: 1822},
	); err != nil {
		return Controllers{}, err
	}
	if err := people.Seed(
		Person{ID: 1, Name: "Ada", Email: &email, Role: Director, Tags: []string{"math", "code"}, Joined: joined, Shift: 8 * time.Hour},
		Person{ID: 2, Name: "Charles", Role: Manager, Joined: joined.AddDate(0, 2, 0)},
	); err != nil {
		return Controllers{}, err
	}
	if err := projects.Seed(
		Project{ID: uuid.MustParse("5f2b6c1e-8d55-4d8e-9f6a-0c9a3e7d1b42"), Title: "Notes on the Engine", Budget: 1200.5},
	); err != nil {
		return Controllers{}, err
	}
	return Controllers{People: people, Companies: companies, Projects: projects}, nil
}

// Postgres returns controllers over the tables produced by pg.GenerateDDL.
func Postgres(db *sql.DB, logger *zap.Logger) (Controllers, error) {
	people, err := pg.NewTableController[Person](db, Namespace, "People", logger)
	if err != nil {
		return Controllers{}, err
	}
	companies, err := pg.NewTableController[Company](db, Namespace, "Companies", logger)
	if err != nil {
		return Controllers{}, err
	}
	projects, err := pg.NewTableController[Project](db, Namespace, "Projects", logger)
	if err != nil {
		return Controllers{}, err
	}
	return Controllers{People: people, Companies: companies, Projects: projects}, nil
}
