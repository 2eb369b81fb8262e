package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) pendingSummary(t *testing.T, owner, source string) model.Fragment {
	t.Helper()
	fr := model.Fragment{OwnerID: owner, Content: source, Kind: model.KindSummary}
	require.NoError(t, f.store.CreateFragment(f.ctx, &fr))
	return fr
}

func summaryRequested(t *testing.T, evt events.SummaryRequested) kafka.Message {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{Topic: events.TopicSummaryRequested, Value: body}
}

func completions(t *testing.T, f *fixture) []events.SummaryCompleted {
	t.Helper()
	var out []events.SummaryCompleted
	for _, msg := range f.bus.drain(events.TopicSummaryCompleted) {
		var evt events.SummaryCompleted
		require.NoError(t, kafka.Decode(msg, &evt))
		assert.Equal(t, events.IDKey(evt.SummaryID), msg.Key)
		out = append(out, evt)
	}
	return out
}

func TestSummaryIsGeneratedIndexedLinkedAndAnnounced(t *testing.T) {
	f := newFixture(t)
	f.embed["Architecture"] = []float32{1, 0}
	c, _, err := f.rec.CreateCluster(f.ctx, model.Cluster{OwnerID: "alice", Name: "Architecture"})
	require.NoError(t, err)

	sum := f.pendingSummary(t, "alice", "chapter three")
	f.complete.reply = "  # Layers\n- keep concerns apart  "
	f.embed["# Layers\n- keep concerns apart"] = []float32{0.72, 0.6939}

	evt := events.SummaryRequested{SummaryID: sum.ID, OwnerID: "alice", Text: "chapter three", Language: "pt-BR"}
	require.NoError(t, f.p.HandleSummaryRequested(f.ctx, summaryRequested(t, evt)))

	assert.Contains(t, f.complete.system, "Portuguese")
	assert.Equal(t, "chapter three", f.complete.user)

	stored, err := f.store.FindFragment(f.ctx, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.Equal(t, "# Layers\n- keep concerns apart", stored.Content)

	matches, err := f.index.Search(f.ctx, vectordb.SpaceUser, vectordb.SearchRequest{
		Vector: []float32{0.72, 0.6939}, Owner: "alice", TopK: 5,
		Filters: vectordb.NewFilterSet(vectordb.Must(vectordb.NewMatch(vectordb.FieldType, vectordb.TypeResume))),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	id, ok := matches[0].Uint(vectordb.FieldFragmentID)
	assert.True(t, ok)
	assert.Equal(t, sum.ID, id)

	requests := f.bus.drain(events.TopicAssociationRequested)
	require.Len(t, requests, 1)
	require.NoError(t, f.rec.HandleAssociationRequested(f.ctx, requests[0]))
	rows, err := f.store.AssociationsForCluster(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sum.ID, rows[0].FragmentID)

	assert.Len(t, f.bus.drain(events.TopicRecomputeRequested), 1, "a summary counts towards milestones")
	done := completions(t, f)
	require.Len(t, done, 1)
	assert.Equal(t, events.SummaryCompleted{SummaryID: sum.ID, Text: "# Layers\n- keep concerns apart", Status: events.SummaryCompletedOK}, done[0])

	require.NoError(t, f.p.HandleSummaryRequested(f.ctx, summaryRequested(t, evt)))
	assert.Empty(t, completions(t, f), "a redelivery after completion does nothing")
}

func TestSummaryInputIsCapped(t *testing.T) {
	f := newFixture(t)
	sum := f.pendingSummary(t, "alice", "long")
	f.complete.reply = "short"
	f.embed["short"] = []float32{1, 0}

	long := make([]rune, MaxSummaryInput+500)
	for i := range long {
		long[i] = 'é'
	}
	out := f.p.ProcessSummary(f.ctx, events.SummaryRequested{SummaryID: sum.ID, OwnerID: "alice", Text: string(long)})
	require.NoError(t, out.Primary)
	assert.Len(t, []rune(f.complete.user), MaxSummaryInput)
	assert.Contains(t, f.complete.system, "English")
}

func TestPermanentSummaryFailureIsAnnounced(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		reply string
		err   error
	}{
		{"empty input", "   ", "", nil},
		{"rejected by the model", "chapter", "", fmt.Errorf("%w: 400", embedding.ErrPermanent)},
		{"empty reply", "chapter", " ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			sum := f.pendingSummary(t, "alice", "chapter")
			f.complete.reply, f.complete.err = tc.reply, tc.err

			err := f.p.HandleSummaryRequested(f.ctx, summaryRequested(t, events.SummaryRequested{
				SummaryID: sum.ID, OwnerID: "alice", Text: tc.text,
			}))
			require.NoError(t, err, "the event is acknowledged")

			stored, err := f.store.FindFragment(f.ctx, sum.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusFailed, stored.Status)

			done := completions(t, f)
			require.Len(t, done, 1)
			assert.Equal(t, events.SummaryCompletedFailed, done[0].Status)
			assert.Contains(t, done[0].Text, "summary failed")
			assert.Equal(t, 0, f.index.Len(vectordb.SpaceUser))
		})
	}
}

func TestTransientSummaryFailureIsRedelivered(t *testing.T) {
	f := newFixture(t)
	sum := f.pendingSummary(t, "alice", "chapter")
	f.complete.err = fmt.Errorf("%w: 503", embedding.ErrTransient)

	err := f.p.HandleSummaryRequested(f.ctx, summaryRequested(t, events.SummaryRequested{
		SummaryID: sum.ID, OwnerID: "alice", Text: "chapter",
	}))
	require.Error(t, err)
	assert.False(t, kafka.IsPermanent(err))

	stored, err := f.store.FindFragment(f.ctx, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Empty(t, completions(t, f))
}

func TestSummaryOfAnotherOwnerIsRejected(t *testing.T) {
	f := newFixture(t)
	sum := f.pendingSummary(t, "bob", "chapter")
	highlight := f.pending(t, "alice", "a highlight", nil)

	for _, id := range []uint64{sum.ID, highlight.ID} {
		out := f.p.ProcessSummary(f.ctx, events.SummaryRequested{SummaryID: id, OwnerID: "alice", Text: "chapter"})
		assert.ErrorIs(t, out.Primary, ErrNotSummary)
		assert.True(t, kafka.IsPermanent(out.Primary))
	}
}

func TestGuestSummaryStaysInGuestSpace(t *testing.T) {
	f := newFixture(t)
	f.complete.reply = "guest summary"
	f.embed["guest summary"] = []float32{1, 0}

	out := f.p.ProcessSummary(f.ctx, events.SummaryRequested{SummaryID: 99, OwnerID: "guest-7", Text: "chapter"})
	require.NoError(t, out.Primary)
	assert.Equal(t, model.StatusProcessed, out.Status)
	assert.Equal(t, 1, f.index.Len(vectordb.SpaceGuest))
	assert.Equal(t, 0, f.index.Len(vectordb.SpaceUser))
	assert.Zero(t, f.timer.starts)
	require.Len(t, completions(t, f), 1)
}

func TestSummaryCompletionFailureIsSecondary(t *testing.T) {
	f := newFixture(t)
	sum := f.pendingSummary(t, "alice", "chapter")
	f.complete.reply = "done"
	f.embed["done"] = []float32{1, 0}
	f.bus.err = errors.New("broker down")

	out := f.p.ProcessSummary(f.ctx, events.SummaryRequested{SummaryID: sum.ID, OwnerID: "alice", Text: "chapter"})
	assert.NoError(t, out.Primary)
	assert.Error(t, out.Completion)
	assert.Equal(t, model.StatusProcessed, out.Status)
}

func TestLanguage(t *testing.T) {
	for tag, want := range map[string]string{
		"pt-BR": "Portuguese",
		"PL":    "Polish",
		"es":    "Spanish",
		"en-US": "English",
		"":      "English",
		"de":    "English",
	} {
		assert.Equal(t, want, Language(tag), tag)
	}
}
