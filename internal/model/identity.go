package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Region identifies the cloud data center hosting a project.
type Region string

const (
	RegionUS   Region = "US"
	RegionEMEA Region = "EMEA"
	RegionAUS  Region = "AUS"
)

// ParseRegion normalizes and validates a region selector.
func ParseRegion(raw string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "US":
		return RegionUS, nil
	case "EMEA", "EU":
		return RegionEMEA, nil
	case "AUS", "APAC":
		return RegionAUS, nil
	case "":
		return "", fmt.Errorf("region is required")
	default:
		return "", fmt.Errorf("unsupported region %q (must be one of: US, EMEA, AUS)", raw)
	}
}

// Identity is the immutable identity of a cloud-hosted model: the hosting
// region plus the project and model GUIDs. It is comparable by value and is
// the sole node key for the dependency graph; two links that resolve to the
// same Identity are the same node.
type Identity struct {
	Region    Region
	ProjectID uuid.UUID
	ModelID   uuid.UUID
}

// NewIdentity parses the three identity components.
func NewIdentity(region, projectGUID, modelGUID string) (Identity, error) {
	r, err := ParseRegion(region)
	if err != nil {
		return Identity{}, err
	}
	pg, err := uuid.Parse(strings.TrimSpace(projectGUID))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid project GUID %q: %w", projectGUID, err)
	}
	mg, err := uuid.Parse(strings.TrimSpace(modelGUID))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid model GUID %q: %w", modelGUID, err)
	}
	if pg == uuid.Nil {
		return Identity{}, fmt.Errorf("project GUID must not be the nil GUID")
	}
	if mg == uuid.Nil {
		return Identity{}, fmt.Errorf("model GUID must not be the nil GUID")
	}
	return Identity{Region: r, ProjectID: pg, ModelID: mg}, nil
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s/%s", id.Region, id.ProjectID, id.ModelID)
}

// Short returns an abbreviated model GUID for display in trees and logs.
func (id Identity) Short() string {
	s := id.ModelID.String()
	if len(s) > 13 {
		return s[:13] + "…"
	}
	return s
}

// Record formats the identity as the delimited clipboard record understood by
// the rest of the toolchain: name,region,projectGUID,modelGUID.
func (id Identity) Record(name string) string {
	return fmt.Sprintf("%s,%s,%s,%s", name, id.Region, id.ProjectID, id.ModelID)
}
