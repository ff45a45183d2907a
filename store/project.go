package store

import "time"

// Project status values. Suspended projects are refused at the door;
// the other three map to monthly usage allowances.
const (
	ProjectStatusUltra     = "ultra"
	ProjectStatusPro       = "pro"
	ProjectStatusActive    = "active"
	ProjectStatusSuspended = "suspended"
)

// The root project is seeded at bootstrap so single-tenant deployments
// work without a provisioning step.
const (
	RootProjectID     = "__root__"
	RootProjectSecret = "__root__"
)

// Project is an API tenant. Everything except ProfileConfig is managed
// out of band; the API itself never creates or deletes projects.
type Project struct {
	ID            string
	Secret        string
	ProfileConfig string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateProject struct {
	ID     string
	Secret string
	Status string
}
