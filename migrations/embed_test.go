package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFS_ContainsCacheEntries(t *testing.T) {
	sql, err := fs.ReadFile(FS, "001_cache_entries.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	for _, want := range []string{"cache_entries", "key", "value", "expires_at"} {
		if !strings.Contains(string(sql), want) {
			t.Errorf("expected migration to mention %q", want)
		}
	}
}
