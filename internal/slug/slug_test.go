package slug

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"CUST001":             "cust001",
		"accounts-receivable": "accounts-receivable",
		"Acme & Sons":         "acme-sons",
		"  spaced  out  ":     "spaced-out",
		"":                    "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSlug(t *testing.T) {
	if !IsSlug("accounts-receivable") || !IsSlug("current_asset") || !IsSlug("cust001") {
		t.Error("valid slugs rejected")
	}
	if IsSlug("Bad Slug") || IsSlug("x") || IsSlug("") {
		t.Error("invalid slugs accepted")
	}
}
