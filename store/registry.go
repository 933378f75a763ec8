package store

// Relationship declares that entities of ChildType belong to a ParentType.
// The cascade handler consults it to decide which deletions fan out.
type Relationship struct {
	// ParentType is the owning entity type (e.g., "asset").
	ParentType string

	// ChildType is the owned entity type (e.g., "instantiation").
	ChildType string

	// ChildTableName is the table holding ChildType items (e.g., "pbcore_instantiations").
	ChildTableName string

	// ParentKeyAttr is the child attribute holding the parent ID (e.g., "asset_id").
	ParentKeyAttr string
}

// Registry holds the known parent/child relationships.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates an empty Registry.
func NewRegistry(rels ...Relationship) *Registry {
	r := &Registry{byParent: make(map[string][]Relationship)}
	for _, rel := range rels {
		r.Register(rel)
	}
	return r
}

// Register adds a relationship.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// ChildrenOf returns the child relationships of parentType.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// AllRelationships returns every registered relationship in registration order.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren reports whether parentType has registered children.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}
