package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/pbcore/picklist"
	"github.com/jacentio/pbcore/store"
)

// PicklistBackend stores picklist entries in DynamoDB. Names are unique per
// vocabulary through the store's unique-constraint table.
type PicklistBackend struct {
	store  *store.Store
	tables Tables
}

var _ picklist.Backend = (*PicklistBackend)(nil)

// NewPicklistBackend creates a PicklistBackend.
func NewPicklistBackend(s *store.Store, tables Tables) *PicklistBackend {
	return &PicklistBackend{store: s, tables: tables.withDefaults()}
}

// Lookup implements picklist.Backend.
func (b *PicklistBackend) Lookup(ctx context.Context, vocabulary, name string) (picklist.Entry, error) {
	ref, err := b.store.LookupUnique(ctx, vocabularyScope(vocabulary), EntityPicklistEntry, "name", name)
	if errors.Is(err, store.ErrNotFound) {
		return picklist.Entry{}, picklist.ErrNotFound
	}
	if err != nil {
		return picklist.Entry{}, err
	}
	_, id, ok := store.ParseRef(ref)
	if !ok {
		return picklist.Entry{}, fmt.Errorf("archive: malformed entity reference %q", ref)
	}
	return b.Get(ctx, picklist.Ref{Vocabulary: vocabulary, ID: id})
}

// Create implements picklist.Backend.
func (b *PicklistBackend) Create(ctx context.Context, vocabulary, name string) (picklist.Entry, error) {
	entity := entryEntity{id: uuid.NewString(), vocabulary: vocabulary, name: name, tables: b.tables}
	item, err := marshal(entryItem{ID: entity.id, Vocabulary: vocabulary, Name: name})
	if err != nil {
		return picklist.Entry{}, err
	}
	err = b.store.Create(ctx, entity, item)
	if errors.Is(err, store.ErrDuplicateValue) {
		return picklist.Entry{}, picklist.ErrConflict
	}
	if err != nil {
		return picklist.Entry{}, err
	}
	return picklist.Entry{Ref: picklist.Ref{Vocabulary: vocabulary, ID: entity.id}, Name: name}, nil
}

// Get implements picklist.Backend.
func (b *PicklistBackend) Get(ctx context.Context, ref picklist.Ref) (picklist.Entry, error) {
	got, err := b.store.Get(ctx, b.tables.Picklists, idKey(ref.ID))
	if errors.Is(err, store.ErrNotFound) {
		return picklist.Entry{}, picklist.ErrNotFound
	}
	if err != nil {
		return picklist.Entry{}, err
	}
	var item entryItem
	if err := unmarshal(got.Raw, &item); err != nil {
		return picklist.Entry{}, err
	}
	if item.Vocabulary != ref.Vocabulary {
		return picklist.Entry{}, picklist.ErrNotFound
	}
	return picklist.Entry{Ref: ref, Name: item.Name}, nil
}

// List implements picklist.Backend. Entries are sorted by name.
func (b *PicklistBackend) List(ctx context.Context, vocabulary string) ([]picklist.Entry, error) {
	items, err := b.store.Query(ctx, store.QueryInput{
		TableName:                b.tables.Picklists,
		IndexName:                b.tables.VocabularyIndex,
		KeyConditionExpression:   "#vocabulary = :vocabulary",
		ExpressionAttributeNames: map[string]string{"#vocabulary": "vocabulary"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":vocabulary": &types.AttributeValueMemberS{Value: vocabulary},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", vocabulary, err)
	}

	entries := make([]picklist.Entry, 0, len(items))
	for _, got := range items {
		var item entryItem
		if err := unmarshal(got.Raw, &item); err != nil {
			return nil, err
		}
		entries = append(entries, picklist.Entry{
			Ref:  picklist.Ref{Vocabulary: vocabulary, ID: item.ID},
			Name: item.Name,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
