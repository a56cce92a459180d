package db

import "testing"

func TestMigrations_Ordered(t *testing.T) {
	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			t.Errorf("migration versions must be strictly increasing, got %d after %d", m.Version, last)
		}
		if m.Name == "" {
			t.Errorf("migration %d has no name", m.Version)
		}
		if m.SQL == "" {
			t.Errorf("migration %d has no SQL", m.Version)
		}
		last = m.Version
	}
}
