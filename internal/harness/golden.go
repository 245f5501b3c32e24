package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertReportGolden renders report as text and compares it with
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Only the text scorecard is compared, so run ids and durations never
// leak into the fixture.
func AssertReportGolden(t *testing.T, name string, report *Report) {
	t.Helper()

	var buf bytes.Buffer
	FormatReportText(&buf, report)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}
