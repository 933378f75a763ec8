package xmlmap

// Owned is implemented by items of an owned sub-element collection.
type Owned interface {
	// OwnedID returns the item's identity within its parent. Empty for new items.
	OwnedID() string

	// SetOwnedID assigns the item's identity.
	SetOwnedID(id string)
}

// SyncReport lists the identities affected by a Sync.
type SyncReport struct {
	// Created are identities assigned to new items.
	Created []string

	// Updated are identities of prior items replaced in place by an item carrying the same identity.
	Updated []string

	// Retained are identities of prior items matched by content.
	Retained []string

	// Destroyed are identities of prior items absent from the new list.
	Destroyed []string
}

// Sync replaces current with next and returns the new collection.
//
// An item in next that carries the identity of an unclaimed item in current
// replaces it in place. An item without identity takes over the identity of the
// first unclaimed current item with an equal content key. Everything else in
// next gets a fresh identity from newID. Unclaimed items of current are
// reported as destroyed. The order of next is preserved and current is not
// modified; callers assign the returned slice in one step.
func Sync[P Owned](current, next []P, key func(P) string, newID func() string) ([]P, SyncReport) {
	var report SyncReport

	byID := make(map[string]int, len(current))
	byKey := make(map[string][]int, len(current))
	for i, item := range current {
		id := item.OwnedID()
		if id == "" {
			// Never persisted; nothing to retain or destroy.
			continue
		}
		if _, dup := byID[id]; !dup {
			byID[id] = i
		}
		k := key(item)
		byKey[k] = append(byKey[k], i)
	}
	claimed := make([]bool, len(current))

	out := make([]P, 0, len(next))
	pending := make([]int, 0, len(next))

	// Identity matches first so content matching cannot steal an item that is
	// explicitly updated later in the list.
	for i, item := range next {
		out = append(out, item)
		if id := item.OwnedID(); id != "" {
			if j, ok := byID[id]; ok && !claimed[j] {
				claimed[j] = true
				report.Updated = append(report.Updated, id)
				continue
			}
		}
		pending = append(pending, i)
	}

	for _, i := range pending {
		item := out[i]
		if item.OwnedID() == "" {
			if j, ok := claimFirst(byKey[key(item)], claimed); ok {
				item.SetOwnedID(current[j].OwnedID())
				report.Retained = append(report.Retained, current[j].OwnedID())
				continue
			}
		}
		id := newID()
		item.SetOwnedID(id)
		report.Created = append(report.Created, id)
	}

	for j, item := range current {
		if !claimed[j] && item.OwnedID() != "" {
			report.Destroyed = append(report.Destroyed, item.OwnedID())
		}
	}
	return out, report
}

func claimFirst(candidates []int, claimed []bool) (int, bool) {
	for _, j := range candidates {
		if !claimed[j] {
			claimed[j] = true
			return j, true
		}
	}
	return 0, false
}
