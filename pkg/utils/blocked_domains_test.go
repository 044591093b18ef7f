package utils

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestBlockedDomainsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")

	b := NewBlockedDomains(path)
	if b.IsBlocked("https://www.tipcars.com/skoda") {
		t.Fatal("new list should be empty")
	}
	if err := b.Add("https://www.TipCars.com/skoda/octavia"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("not a url"); err == nil {
		t.Error("expected error for URL without host")
	}

	reloaded := NewBlockedDomains(path)
	if !reloaded.IsBlocked("https://www.tipcars.com/") {
		t.Error("domain not persisted")
	}
	if got := reloaded.Domains(); !reflect.DeepEqual(got, []string{"www.tipcars.com"}) {
		t.Errorf("domains = %v", got)
	}
}

func TestBlockedDomainsInMemory(t *testing.T) {
	b := NewBlockedDomains("")
	_ = b.Add("https://auto.bazos.cz/inzerat/1/x.php")
	if !b.IsBlocked("https://auto.bazos.cz/") || b.IsBlocked("https://www.sauto.cz/") {
		t.Errorf("domains = %v", b.Domains())
	}
}
