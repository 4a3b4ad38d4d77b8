package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(chunks ...string) (string, []Marker) {
	var l MarkerLexer
	var text string
	var markers []Marker
	for _, c := range chunks {
		t, ms := l.Write(c)
		text += t
		markers = append(markers, ms...)
	}
	return text + l.Flush(), markers
}

func TestExtractPlanMarkers(t *testing.T) {
	text, markers := lexAll(`before <<<PlanInit: ["a","b"]>>> after`)
	assert.Equal(t, "before  after", text)
	require.Len(t, markers, 1)
	assert.Equal(t, MarkerPlanInit, markers[0].Kind)
	assert.Equal(t, `["a","b"]`, markers[0].Payload)
}

func TestExtractAllMarkerKinds(t *testing.T) {
	_, markers := lexAll(
		`<<<PlanInit: ["x"]>>><<<PlanUpdate: ["y"]>>><<<StepStart: {"id":"t1"}>>><<<StepEnd: {"id":"t1"}>>>`,
	)
	require.Len(t, markers, 4)
	assert.Equal(t, MarkerPlanInit, markers[0].Kind)
	assert.Equal(t, MarkerPlanUpdate, markers[1].Kind)
	assert.Equal(t, MarkerStepStart, markers[2].Kind)
	assert.Equal(t, `{"id":"t1"}`, markers[2].Payload)
	assert.Equal(t, MarkerStepEnd, markers[3].Kind)
}

func TestMarkerSplitAcrossChunks(t *testing.T) {
	text, markers := lexAll("a <<", `<PlanInit: ["Fe`, `tch"]>`, ">> b")
	assert.Equal(t, "a  b", text)
	require.Len(t, markers, 1)
	assert.Equal(t, MarkerPlanInit, markers[0].Kind)
	assert.Equal(t, `["Fetch"]`, markers[0].Payload)
}

func TestToolLogMarker(t *testing.T) {
	text, markers := lexAll("checking *Running tool: search* now")
	assert.Equal(t, "checking  now", text)
	require.Len(t, markers, 1)
	assert.Equal(t, MarkerToolLog, markers[0].Kind)
	assert.Equal(t, "search", markers[0].Payload)
}

func TestToolLogMarkerSplit(t *testing.T) {
	text, markers := lexAll("x *Running to", "ol: fetch* y")
	assert.Equal(t, "x  y", text)
	require.Len(t, markers, 1)
	assert.Equal(t, "fetch", markers[0].Payload)
}

func TestUnknownMarkerPassesThrough(t *testing.T) {
	text, markers := lexAll("a <<<Mystery: 42>>> b")
	assert.Equal(t, "a <<<Mystery: 42>>> b", text)
	assert.Empty(t, markers)
}

func TestEmphasisIsNotAToolLog(t *testing.T) {
	text, markers := lexAll("this is *important* text")
	assert.Equal(t, "this is *important* text", text)
	assert.Empty(t, markers)
}

func TestUnterminatedMarkerReleasedAtFlush(t *testing.T) {
	text, markers := lexAll("tail <<<PlanInit: [\"never closed\"")
	assert.Equal(t, "tail <<<PlanInit: [\"never closed\"", text)
	assert.Empty(t, markers)
}
