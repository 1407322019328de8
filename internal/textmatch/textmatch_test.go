package textmatch

import (
	"reflect"
	"testing"
)

func TestFoldAndHas(t *testing.T) {
	f := Fold("BREAKING: Man Utd's new signing -- confirmed!")
	if f != " breaking man utd s new signing confirmed " {
		t.Fatalf("Fold = %q", f)
	}
	if !Has(f, "man utd") {
		t.Fatalf("expected multi-word term to match")
	}
	if Has(f, "sign") {
		t.Fatalf("partial word must not match")
	}
	if !HasAny(f, []string{"rumour", "confirmed"}) {
		t.Fatalf("HasAny should match confirmed")
	}
	if Has(f, "") {
		t.Fatalf("empty term must not match")
	}
}

func TestWordsTrimsPunctuation(t *testing.T) {
	got := Words("  Salah, (Liverpool) scores!  ")
	want := []string{"salah", "liverpool", "scores"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Words = %v, want %v", got, want)
	}
}
