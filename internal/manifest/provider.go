package manifest

import (
	"context"

	"cohortlens/internal/domain"
)

// Compile-time check.
var _ domain.MetadataProvider = (*Provider)(nil)

// Provider serves dataset metadata straight from manifests, without a
// metadata database. Datasets are addressable by id and by name.
type Provider struct {
	datasets map[string]*domain.Dataset
}

// NewProvider indexes the given manifests. A manifest without an id is
// addressed by its name only.
func NewProvider(docs ...*Document) (*Provider, error) {
	p := &Provider{datasets: make(map[string]*domain.Dataset, len(docs))}
	for _, doc := range docs {
		ds := doc.Dataset()
		for _, key := range []string{ds.ID, ds.Name} {
			if key == "" {
				continue
			}
			if prev, ok := p.datasets[key]; ok && prev != ds {
				return nil, domain.ErrConflict("dataset %q declared twice", key)
			}
			p.datasets[key] = ds
		}
	}
	return p, nil
}

// LoadProvider builds a Provider from every manifest in dir.
func LoadProvider(dir string) (*Provider, error) {
	docs, err := LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	return NewProvider(docs...)
}

// ListTables implements domain.MetadataProvider.
func (p *Provider) ListTables(_ context.Context, datasetID string) ([]domain.TableMetadata, error) {
	ds, ok := p.datasets[datasetID]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", datasetID)
	}
	out := make([]domain.TableMetadata, len(ds.Tables))
	copy(out, ds.Tables)
	return out, nil
}
