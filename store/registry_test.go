package store

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		Relationship{ParentType: "asset", ChildType: "instantiation", ChildTableName: "instantiations", ParentKeyAttr: "asset_id"},
	)
	r.Register(Relationship{ParentType: "asset", ChildType: "rights", ChildTableName: "rights"})
	r.Register(Relationship{ParentType: "instantiation", ChildType: "essence_track"})

	if !r.HasChildren("asset") || r.HasChildren("picklist_entry") {
		t.Error("unexpected HasChildren result")
	}
	children := r.ChildrenOf("asset")
	if len(children) != 2 || children[0].ChildType != "instantiation" || children[1].ChildType != "rights" {
		t.Errorf("unexpected children: %+v", children)
	}
	if children[0].ParentKeyAttr != "asset_id" {
		t.Errorf("expected ParentKeyAttr 'asset_id', got %q", children[0].ParentKeyAttr)
	}
	if len(r.AllRelationships()) != 3 {
		t.Errorf("expected 3 relationships, got %d", len(r.AllRelationships()))
	}
	if r.ChildrenOf("") != nil {
		t.Error("expected no children for an empty type")
	}
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	if len(r.AllRelationships()) != 0 || r.HasChildren("asset") {
		t.Error("expected an empty registry")
	}
}
