package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/pbcore/pbcore"
	"github.com/jacentio/pbcore/store"
)

// ErrAssetRequired is returned when saving an instantiation without an asset.
var ErrAssetRequired = errors.New("archive: instantiation has no asset")

// Repository loads and saves Assets and Instantiations.
type Repository struct {
	store  *store.Store
	tables Tables
	logger *slog.Logger
}

// NewRepository creates a Repository. Empty table names take their defaults.
func NewRepository(s *store.Store, tables Tables, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: s, tables: tables.withDefaults(), logger: logger}
}

// Tables returns the table names in use.
func (r *Repository) Tables() Tables {
	return r.tables
}

// CreateAsset stores a new asset, assigning an ID if it has none.
func (r *Repository) CreateAsset(ctx context.Context, asset *pbcore.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	item, err := marshal(assetItem{ID: asset.ID, Title: asset.Title})
	if err != nil {
		return err
	}
	if err := r.store.Create(ctx, assetEntity{id: asset.ID, tables: r.tables}, item); err != nil {
		return fmt.Errorf("create asset %s: %w", asset.ID, err)
	}
	return nil
}

// LoadAsset returns the asset with id, or store.ErrNotFound.
func (r *Repository) LoadAsset(ctx context.Context, id string) (*pbcore.Asset, error) {
	got, err := r.store.Get(ctx, r.tables.Assets, idKey(id))
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", id, err)
	}
	var item assetItem
	if err := unmarshal(got.Raw, &item); err != nil {
		return nil, err
	}
	return &pbcore.Asset{ID: item.ID, Title: item.Title}, nil
}

// DeleteAsset marks an asset deleted. Without cascade it fails with
// store.ErrHasChildren while the asset has live instantiations; with cascade
// the stream handler deletes them.
func (r *Repository) DeleteAsset(ctx context.Context, id string, cascade bool) error {
	err := r.store.Delete(ctx, assetEntity{id: id, tables: r.tables}, store.DeleteOptions{
		Cascade:       cascade,
		OrphanProtect: true,
	})
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	r.logger.Info("deleted asset", "asset_id", id, "cascade", cascade)
	return nil
}

// LoadInstantiation returns the instantiation with id, or store.ErrNotFound.
// Version carries the stored version for the next save.
func (r *Repository) LoadInstantiation(ctx context.Context, id string) (*pbcore.Instantiation, error) {
	got, err := r.store.Get(ctx, r.tables.Instantiations, idKey(id))
	if err != nil {
		return nil, fmt.Errorf("load instantiation %s: %w", id, err)
	}
	return decodeInstantiation(got)
}

// SaveInstantiation validates and stores inst, returning its ID. A zero
// Version creates the record; otherwise the stored version must still equal
// Version or store.ErrConcurrentModification is returned. Owned collections
// are written with the record in one conditional write. On success Version
// holds the new stored version.
//
// Validation failures are returned as *pbcore.ValidationError before any write.
func (r *Repository) SaveInstantiation(ctx context.Context, inst *pbcore.Instantiation) (string, error) {
	if err := inst.Check(); err != nil {
		return "", err
	}
	if inst.AssetID == "" {
		return "", ErrAssetRequired
	}
	assignOwnedIDs(inst)

	if inst.Version == 0 {
		if inst.ID == "" {
			inst.ID = uuid.NewString()
		}
		item, err := marshal(newInstantiationItem(inst))
		if err != nil {
			return "", err
		}
		if err := r.store.Create(ctx, r.instantiationEntity(inst), item); err != nil {
			return "", fmt.Errorf("create instantiation %s: %w", inst.ID, err)
		}
		inst.Version = 1
		r.logger.Debug("created instantiation", "id", inst.ID, "asset_id", inst.AssetID)
		return inst.ID, nil
	}

	item, err := marshal(newInstantiationItem(inst))
	if err != nil {
		return "", err
	}
	// Moving an instantiation between assets is not supported.
	delete(item, "asset_id")
	if err := r.store.Update(ctx, r.instantiationEntity(inst), item, inst.Version); err != nil {
		return "", fmt.Errorf("update instantiation %s: %w", inst.ID, err)
	}
	inst.Version++
	r.logger.Debug("updated instantiation", "id", inst.ID, "version", inst.Version)
	return inst.ID, nil
}

// DeleteInstantiation marks an instantiation deleted.
func (r *Repository) DeleteInstantiation(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, instantiationEntity{id: id, tables: r.tables}, store.DeleteOptions{})
	if err != nil {
		return fmt.Errorf("delete instantiation %s: %w", id, err)
	}
	return nil
}

// ListInstantiations returns the live instantiations of an asset, oldest first.
func (r *Repository) ListInstantiations(ctx context.Context, assetID string) ([]*pbcore.Instantiation, error) {
	items, err := r.store.Query(ctx, store.QueryInput{
		TableName:                r.tables.Instantiations,
		IndexName:                r.tables.AssetIndex,
		KeyConditionExpression:   "#asset_id = :asset_id",
		ExpressionAttributeNames: map[string]string{"#asset_id": "asset_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":asset_id": &types.AttributeValueMemberS{Value: assetID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list instantiations of %s: %w", assetID, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return items[i].EntityRef < items[j].EntityRef
	})

	out := make([]*pbcore.Instantiation, 0, len(items))
	for _, item := range items {
		inst, err := decodeInstantiation(item)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (r *Repository) instantiationEntity(inst *pbcore.Instantiation) instantiationEntity {
	return instantiationEntity{id: inst.ID, assetID: inst.AssetID, tables: r.tables}
}

func decodeInstantiation(got *store.Item) (*pbcore.Instantiation, error) {
	var item instantiationItem
	if err := unmarshal(got.Raw, &item); err != nil {
		return nil, err
	}
	return item.instantiation(got.Version)
}

func assignOwnedIDs(inst *pbcore.Instantiation) {
	for _, f := range inst.FormatIDs {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
	}
	for _, e := range inst.EssenceTracks {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
	}
	for _, d := range inst.DatesAvailable {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
	}
	for _, a := range inst.Annotations {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
	}
}
