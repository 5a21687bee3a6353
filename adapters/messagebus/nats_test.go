package messagebus

import "testing"

func TestDurableName(t *testing.T) {
	cases := []struct {
		queue string
		want  string
	}{
		{"readmodel.products", "readmodel-products"},
		{"readmodel.orders", "readmodel-orders"},
		{"plain", "plain"},
		{"a.b*c>d", "a-b-c-d"},
	}

	for _, tc := range cases {
		if got := durableName(tc.queue); got != tc.want {
			t.Errorf("durableName(%q) = %q, want %q", tc.queue, got, tc.want)
		}
	}
}

func TestNATSConfigValidate(t *testing.T) {
	valid := DefaultNATSConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noURL := valid
	noURL.URL = ""
	if err := noURL.Validate(); err == nil {
		t.Error("expected error for empty url")
	}

	noStream := valid
	noStream.Stream = ""
	if err := noStream.Validate(); err == nil {
		t.Error("expected error for empty stream")
	}

	noSubjects := valid
	noSubjects.Subjects = nil
	if err := noSubjects.Validate(); err == nil {
		t.Error("expected error for empty subjects")
	}
}
