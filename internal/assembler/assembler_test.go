package assembler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigloome/research-agent/internal/plan"
)

func newTest() *Assembler {
	return New(Options{Logger: zerolog.Nop()})
}

func push(a *Assembler, lines ...string) Update {
	var last Update
	for _, l := range lines {
		last = a.Push([]byte(l))
	}
	return last
}

func TestAccumulatesTextAcrossFrames(t *testing.T) {
	a := newTest()
	update := push(a,
		"0:\"Hello \"\n",
		"0:\"world\"\n",
		"d:{\"type\":\"meta\"}\n",
	)
	assert.True(t, update.Done)
	assert.Equal(t, "Hello world", a.Finalize())
}

func TestPlanAndToolStateFromStream(t *testing.T) {
	a := newTest()
	push(a, "0:\"<<<PlanInit: [\\\"Fetch papers\\\",\\\"Summarize\\\"]>>>\"\n")
	update := a.Push([]byte("d:{\"type\":\"tool_start\",\"tool\":\"search\",\"description\":\"Searching ArXiv\"}\n"))

	require.Len(t, update.Plan, 2)
	assert.Equal(t, "Fetch papers", update.Plan[0].Label)
	assert.Equal(t, plan.Pending, update.Plan[0].Status)
	assert.Equal(t, "Summarize", update.Plan[1].Label)

	require.Len(t, update.ActiveTools, 1)
	assert.Equal(t, "search", update.ActiveTools[0].Name)
	assert.Equal(t, "Searching ArXiv", update.ActiveTools[0].Description)
}

func TestHiddenTagSplitAcrossTextEvents(t *testing.T) {
	a := newTest()
	update := push(a,
		"0:\"<thi\"\n",
		"0:\"nking>secret</thinking> visible\"\n",
	)
	assert.Equal(t, " visible", update.DeltaText)
	assert.NotContains(t, a.Finalize(), "secret")
	assert.Equal(t, " visible", a.Text())
}

func TestMalformedFrameDoesNotInterruptStream(t *testing.T) {
	a := newTest()
	push(a,
		"0:\"before \"\n",
		"d:{\"type\":\n",
		"0:\"after\"\n",
	)
	assert.Equal(t, "before after", a.Finalize())
}

func TestUnknownPrefixAndEventIgnored(t *testing.T) {
	a := newTest()
	push(a,
		"0:\"a\"\n",
		"x9:whatever\n",
		"d:{\"type\":\"telemetry_v2\"}\n",
		"0:\"b\"\n",
	)
	assert.Equal(t, "ab", a.Finalize())
}

func TestResearchRawReembedded(t *testing.T) {
	a := newTest()
	push(a,
		"0:\"intro\"\n",
		"d:{\"type\":\"research_event\",\"raw\":\"MARKER\"}\n",
	)
	assert.Equal(t, "intro\n\nMARKER\n\n", a.Finalize())
}

func TestTextClearsActiveTools(t *testing.T) {
	a := newTest()
	update := push(a, "d:{\"type\":\"tool_start\",\"tool\":\"search\",\"description\":\"\"}\n")
	require.Len(t, update.ActiveTools, 1)

	update = push(a, "0:\"done searching\"\n")
	assert.Empty(t, update.ActiveTools)
}

func TestMetaClearsActiveTools(t *testing.T) {
	a := newTest()
	update := push(a, "d:{\"type\":\"tool_start\",\"tool\":\"search\",\"description\":\"\"}\n")
	require.Len(t, update.ActiveTools, 1)

	update = push(a, "d:{\"type\":\"meta\"}\n")
	assert.Empty(t, update.ActiveTools)
	assert.True(t, update.Done)
}

func TestToolLogMarkerStartsTool(t *testing.T) {
	a := newTest()
	update := push(a, "0:\"*Running tool: zlibrary*\"\n")
	require.Len(t, update.ActiveTools, 1)
	assert.Equal(t, "zlibrary", update.ActiveTools[0].Name)
	assert.Equal(t, "", a.Finalize())
}

func TestStepMarkersDriveLifecycle(t *testing.T) {
	a := newTest()
	push(a,
		"0:\"<<<PlanInit: [{\\\"id\\\":\\\"t1\\\",\\\"description\\\":\\\"Search\\\"}]>>>\"\n",
		"0:\"<<<StepStart: {\\\"id\\\":\\\"t1\\\"}>>>\"\n",
	)
	require.Len(t, a.Plan(), 1)
	assert.Equal(t, plan.Running, a.Plan()[0].Status)

	push(a, "0:\"<<<StepEnd: {\\\"id\\\":\\\"t1\\\"}>>>\"\n")
	assert.Equal(t, plan.Completed, a.Plan()[0].Status)
}

func TestStepMarkersForUnknownTaskAreNoOps(t *testing.T) {
	a := newTest()
	push(a,
		"0:\"<<<StepStart: {\\\"id\\\":\\\"t1\\\"}>>>\"\n",
		"0:\"<<<StepEnd: {\\\"id\\\":\\\"t1\\\"}>>>\"\n",
	)
	assert.Empty(t, a.Plan())
}

func TestFinalizeWithoutMetaKeepsPartial(t *testing.T) {
	a := newTest()
	push(a, "0:\"partial answer\"\n")
	// Transport died: no meta frame ever arrives.
	assert.False(t, a.Done())
	assert.Equal(t, "partial answer", a.Finalize())
	assert.True(t, a.Done())
}

func TestFinalizeDiscardsOpenHiddenTag(t *testing.T) {
	a := newTest()
	push(a, "0:\"ok <thinking>half a secret\"\n")
	assert.Equal(t, "ok ", a.Finalize())
}

// Feeding the same wire bytes at any chunk granularity must produce the
// same transcript.
func TestChunkingInvariance(t *testing.T) {
	input := "0:\"Hello <thinking>x\"\n0:\"y</thinking>world \"\n" +
		"0:\"<<<PlanInit: [\\\"a\\\"]>>>\"\n" +
		"d:{\"type\":\"tool_start\",\"tool\":\"s\",\"description\":\"\"}\n" +
		"0:\"bye\"\n" +
		"d:{\"type\":\"meta\"}\n"

	whole := newTest()
	whole.Push([]byte(input))
	want := whole.Finalize()
	wantPlan := whole.Plan()

	for size := 1; size <= len(input); size += 3 {
		a := newTest()
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			a.Push([]byte(input[i:end]))
		}
		assert.Equal(t, want, a.Finalize(), "chunk size %d", size)
		assert.Equal(t, wantPlan, a.Plan(), "chunk size %d", size)
	}
}
