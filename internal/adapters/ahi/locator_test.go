package ahi

import "testing"

func TestFrameLocatorRoundTrip(t *testing.T) {
	loc := frameLocator{
		DatastoreID:    "ds-1",
		ImageSetID:     "is-1",
		SeriesUID:      "1.2.3",
		SOPInstanceUID: "1.2.3.4",
		FrameID:        "frame-1",
	}

	s := loc.String()
	want := "ahi://ds-1/is-1/1.2.3/1.2.3.4/frame-1"
	if s != want {
		t.Fatalf("String() = %q, want %q", s, want)
	}

	parsed, err := parseFrameLocator(s)
	if err != nil {
		t.Fatalf("parseFrameLocator(%q) returned error: %v", s, err)
	}
	if parsed != loc {
		t.Fatalf("parsed locator = %+v, want %+v", parsed, loc)
	}
}

func TestParseFrameLocatorRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		locator string
	}{
		{"wrong scheme", "http://ds/is/se/sop/f"},
		{"too few segments", "ahi://ds/is/se/sop"},
		{"too many segments", "ahi://ds/is/se/sop/f/extra"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseFrameLocator(tc.locator); err == nil {
				t.Fatalf("parseFrameLocator(%q) succeeded, want error", tc.locator)
			}
		})
	}
}
