package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/storybook/internal/pipeline"
)

func TestSSEWriter_Frames(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteProgress(pipeline.CharacterFeatures{Type: pipeline.KindCharacterFeatures, Name: "蹦蹦", Features: "白兔"}))
	require.NoError(t, sse.WriteProgress(pipeline.ReviewRequest{Type: pipeline.KindReviewRequest, Story: "故事"}))
	require.NoError(t, sse.WriteProgress(pipeline.NewErrorEvent("boom")))
	require.NoError(t, sse.KeepAlive())

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t,
		`data: {"type":"character_features","features":"白兔","name":"蹦蹦"}`+"\n\n"+
			"event: review_request\n"+
			`data: {"type":"review_request","story":"故事","outline":"","character_features":"","character_name":""}`+"\n\n"+
			"event: error\n"+
			`data: {"error":"boom"}`+"\n\n"+
			": keep-alive\n\n",
		w.Body.String())
}

func TestSSEWriter_FinalResultAddsComplete(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteProgress(pipeline.FinalResult{Type: pipeline.KindFinalResult, Title: "标题", Completed: true, BookID: "b1"}))

	payload := `{"type":"final_result","title":"标题","story":"","scenes":null,"completed":true,"book_id":"b1"}`
	assert.Equal(t, "data: "+payload+"\n\nevent: complete\ndata: "+payload+"\n\n", w.Body.String())
}
