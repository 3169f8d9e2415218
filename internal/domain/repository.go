package domain

import (
	"context"
)

// ContentRepo defines the interface for content storage
type ContentRepo interface {
	// FindByID returns ErrNotFound when no row has the surrogate id
	FindByID(ctx context.Context, id int64) (*Content, error)
	// FindByExternalID returns ErrNotFound when the pair is not stored
	FindByExternalID(ctx context.Context, externalID string, contentType ContentType) (*Content, error)
	ListByType(ctx context.Context, contentType ContentType) ([]Content, error)
	ListByTypeAndLabel(ctx context.Context, contentType ContentType, label ContentLabel) ([]Content, error)
	// FindByExternalIDs returns the stored rows of a type among ids
	FindByExternalIDs(ctx context.Context, contentType ContentType, ids []string) ([]Content, error)
	// ExternalIDs maps every stored external id of a type to its surrogate id
	ExternalIDs(ctx context.Context, contentType ContentType) (map[string]int64, error)
	// ExistingExternalIDs returns which of ids are stored under any type
	ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	// Save inserts or updates one row and sets its ID
	Save(ctx context.Context, content *Content) error
	// SaveAll inserts or updates every row in a single transaction
	SaveAll(ctx context.Context, contents []*Content) error
}

// SnapshotRepository defines the interface for catalog snapshot files
type SnapshotRepository interface {
	Get(ctx context.Context, path string) (*Snapshot, error)
	Store(ctx context.Context, path string, snapshot *Snapshot) error
}

// Snapshot is a portable listing of the stored catalog
type Snapshot struct {
	Catalogs []SnapshotCatalog `yaml:"catalogs"`
}

// SnapshotCatalog lists the stored titles of one content type
type SnapshotCatalog struct {
	Type  ContentType     `yaml:"type"`
	Items []SnapshotEntry `yaml:"items"`
}

// SnapshotEntry is one title of a snapshot
type SnapshotEntry struct {
	ExternalID string       `yaml:"externalId"`
	Title      string       `yaml:"title"`
	Label      ContentLabel `yaml:"label"`
	Rating     float64      `yaml:"rating"`
	Genres     []string     `yaml:"genres,omitempty"`
}
