package telegram

import "testing"

func TestFormatPlainBreaks(t *testing.T) {
	got := FormatPlain("Hallo!<br>Wie geht es dir?<br/>Gut?<br />")
	want := "Hallo!\nWie geht es dir?\nGut?"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestFormatPlainStripsTags(t *testing.T) {
	got := FormatPlain("<p><b>Aufgabe:</b> Übersetze den Satz.</p>\n\n<i>Viel Erfolg!</i>")
	want := "Aufgabe: Übersetze den Satz.\nViel Erfolg!"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestFormatPlainEntities(t *testing.T) {
	got := FormatPlain("a&nbsp;&lt;&nbsp;b &amp; c")
	want := "a < b & c"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestFormatPlainEmpty(t *testing.T) {
	if got := FormatPlain("<br><br/>"); got != "" {
		t.Fatalf("ожидали пустую строку, получили %q", got)
	}
}
