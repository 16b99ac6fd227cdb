package conversation

import "testing"

func TestStripMarkup(t *testing.T) {
	for name, tc := range map[string]struct {
		in   string
		want string
	}{
		"plain text":  {"Hello world.", "Hello world."},
		"bold":        {"**Arthrose** ist eine __chronische__ Erkrankung.", "Arthrose ist eine chronische Erkrankung."},
		"italic":      {"This is *important* and _subtle_.", "This is important and subtle."},
		"link":        {"See [the guide](https://example.com/guide) for details.", "See the guide for details."},
		"image":       {"![x-ray of a knee](https://example.com/knee.png) shows wear.", "x-ray of a knee shows wear."},
		"inline code": {"use `ibuprofen` sparingly", "use ibuprofen sparingly"},
		"code fence":  {"Before.\n```\nunreadable block\n```\nAfter.", "Before. After."},
		"headers":     {"# Symptoms\nPain and stiffness.\n## Causes\nWear.", "Symptoms Pain and stiffness. Causes Wear."},
		"bullets":     {"- rest\n- ice\n1. elevate", "rest ice elevate"},
		"blockquote":  {"> consult a physician", "consult a physician"},
		"whitespace":  {"  spaced\n\n\nout  ", "spaced out"},
		"empty":       {"", ""},
	} {
		if got := stripMarkup(tc.in); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", name, tc.want, got)
		}
	}
}
