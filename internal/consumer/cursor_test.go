package consumer

import "testing"

func TestCursorResidueTracksConsumption(t *testing.T) {
	c := NewCursor([]int{10, 20, 30})

	if got := c.Residue(); got != 3 {
		t.Fatalf("residue before consuming = %d, want 3", got)
	}

	if v, ok := c.Next(); !ok || v != 10 {
		t.Fatalf("Next() = (%v, %v), want (10, true)", v, ok)
	}
	if got := c.Residue(); got != 2 {
		t.Fatalf("residue after one Next = %d, want 2", got)
	}

	c.Next()
	c.Next()
	if got := c.Residue(); got != 0 {
		t.Fatalf("residue after exhausting = %d, want 0", got)
	}

	if _, ok := c.Next(); ok {
		t.Fatal("Next() on exhausted cursor should return ok=false")
	}
}

func TestCursorItemsUnaffectedByAdvancement(t *testing.T) {
	items := []string{"x", "y"}
	c := NewCursor(items)
	c.Next()

	got := c.Items()
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("Items() = %v, want unchanged original slice", got)
	}
}
