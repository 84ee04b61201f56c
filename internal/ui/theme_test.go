package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Dracula" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Dracula Slate]", names)
	}
	names[0] = "mutated"
	if ThemeNames()[0] != "Dracula" {
		t.Fatalf("ThemeNames exposes its backing slice")
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Dracula"); got != "Slate" {
		t.Fatalf("NextTheme(Dracula) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("unknown"); got != "Dracula" {
		t.Fatalf("NextTheme(unknown) = %q, want Dracula", got)
	}
}

func TestGetThemeFallsBackToDracula(t *testing.T) {
	if got := GetTheme("nope").Name; got != "Dracula" {
		t.Fatalf("GetTheme(nope).Name = %q", got)
	}
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q", got)
	}
}

func TestRegionColor(t *testing.T) {
	th := GetTheme("Dracula")
	if got := th.RegionColor(" Europe "); got != th.RegionColors["europe"] {
		t.Fatalf("RegionColor(Europe) = %q, want %q", got, th.RegionColors["europe"])
	}
	if got := th.RegionColor("Atlantis"); got != th.Muted {
		t.Fatalf("RegionColor(unknown) = %q, want muted %q", got, th.Muted)
	}
	for _, name := range ThemeNames() {
		if len(GetTheme(name).RegionColors) != 6 {
			t.Fatalf("theme %s does not color every region", name)
		}
	}
}
