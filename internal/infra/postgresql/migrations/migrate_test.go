package migrations

import (
	"sort"
	"testing"
)

func TestAllMigrationsAreOrderedAndUnique(t *testing.T) {
	t.Parallel()

	all := All()
	if len(all) == 0 {
		t.Fatal("expected at least one migration")
	}

	seen := make(map[string]bool, len(all))
	ids := make([]string, 0, len(all))
	for _, m := range all {
		if m.ID == "" {
			t.Fatal("migration id must not be empty")
		}
		if seen[m.ID] {
			t.Fatalf("duplicate migration id %q", m.ID)
		}
		if m.Migrate == nil || m.Rollback == nil {
			t.Fatalf("migration %q must define Migrate and Rollback", m.ID)
		}
		seen[m.ID] = true
		ids = append(ids, m.ID)
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatalf("migration ids are not in apply order: %v", ids)
	}
}
