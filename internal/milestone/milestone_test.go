package milestone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/internal/store/storetest"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	user  string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.user = user
	return f.reply, f.err
}

func newTrigger(t *testing.T, completer Completer) (*Trigger, *store.Store, *kafka.MockPublisher) {
	s := storetest.New(t)
	pub := kafka.NewMockPublisher(gomock.NewController(t))
	return New(Config{}, s, pub, completer, logger.NewNop()), s, pub
}

func addProcessed(t *testing.T, s *store.Store, owner string, from, n int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := from; i < from+n; i++ {
		f := model.Fragment{
			OwnerID:   owner,
			Content:   fmt.Sprintf("%03d %s", i, strings.Repeat("x", 300)),
			Kind:      model.KindHighlight,
			Status:    model.StatusProcessed,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateFragment(context.Background(), &f))
	}
}

func TestShouldFire(t *testing.T) {
	trig, _, _ := newTrigger(t, nil)
	for count, want := range map[int64]bool{0: false, 1: true, 2: false, 29: false, 30: true, 31: false, 59: false, 60: true, 90: true} {
		assert.Equal(t, want, trig.ShouldFire(count), "count %d", count)
	}
}

func TestOnFragmentPersistedFiresOnMilestones(t *testing.T) {
	ctx := context.Background()
	trig, s, pub := newTrigger(t, nil)

	var published []events.RecomputeRequested
	pub.EXPECT().
		Publish(gomock.Any(), events.TopicRecomputeRequested, "alice", gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, _, _ string, value any, _ map[string]string) error {
			published = append(published, value.(events.RecomputeRequested))
			return nil
		}).
		Times(3)

	fired := 0
	for i := 1; i <= 60; i++ {
		addProcessed(t, s, "alice", i-1, 1)
		ok, err := trig.OnFragmentPersisted(ctx, "alice", int64(i))
		require.NoError(t, err)
		if ok {
			fired++
			assert.Contains(t, []int{1, 30, 60}, i)
		}
	}
	assert.Equal(t, 3, fired)

	require.Len(t, published, 3)
	assert.Len(t, published[0].Snippets, 1)
	last := published[2]
	assert.Len(t, last.Snippets, events.MaxSnippets)
	for _, snip := range last.Snippets {
		assert.LessOrEqual(t, len([]rune(snip)), events.MaxSnippetLength)
	}
	assert.True(t, strings.HasPrefix(last.Snippets[0], "059 "), "newest first: %q", last.Snippets[0][:4])
}

func TestOnFragmentPersistedIgnoresOtherCounts(t *testing.T) {
	trig, s, _ := newTrigger(t, nil)
	addProcessed(t, s, "alice", 0, 2)

	for _, count := range []int64{0, 2, 31} {
		fired, err := trig.OnFragmentPersisted(context.Background(), "alice", count)
		require.NoError(t, err)
		assert.False(t, fired, "count %d", count)
	}
}

func TestOnFragmentPersistedReportsPublishFailure(t *testing.T) {
	trig, s, pub := newTrigger(t, nil)
	addProcessed(t, s, "alice", 0, 1)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	fired, err := trig.OnFragmentPersisted(context.Background(), "alice", 1)
	assert.Error(t, err)
	assert.False(t, fired)
}

func recomputeMessage(t *testing.T, evt events.RecomputeRequested) kafka.Message {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{Topic: events.TopicRecomputeRequested, Value: body}
}

func TestHandleRecomputeRequested(t *testing.T) {
	radar := `[{"subject":"Go","A":120},{"subject":"Kafka","A":80}]`

	t.Run("publishes the cleaned radar", func(t *testing.T) {
		c := &fakeCompleter{reply: "```json\n" + radar + "\n```"}
		trig, _, pub := newTrigger(t, c)
		pub.EXPECT().
			Publish(gomock.Any(), events.TopicRecomputeCompleted, "alice",
				events.RecomputeCompleted{OwnerID: "alice", Result: json.RawMessage(radar)}, gomock.Nil()).
			Return(nil)

		msg := recomputeMessage(t, events.RecomputeRequested{OwnerID: "alice", Snippets: []string{"one", " ", "two"}})
		require.NoError(t, trig.HandleRecomputeRequested(context.Background(), msg))
		assert.Equal(t, "one\n---\ntwo", c.user)
	})

	t.Run("skips empty requests", func(t *testing.T) {
		c := &fakeCompleter{}
		trig, _, _ := newTrigger(t, c)
		msg := recomputeMessage(t, events.RecomputeRequested{OwnerID: "alice"})
		require.NoError(t, trig.HandleRecomputeRequested(context.Background(), msg))
		assert.Zero(t, c.calls)
	})

	t.Run("malformed reply is permanent", func(t *testing.T) {
		trig, _, _ := newTrigger(t, &fakeCompleter{reply: `{"subject":"Go"}`})
		msg := recomputeMessage(t, events.RecomputeRequested{OwnerID: "alice", Snippets: []string{"one"}})
		err := trig.HandleRecomputeRequested(context.Background(), msg)
		assert.True(t, kafka.IsPermanent(err))
		assert.ErrorIs(t, err, ErrMalformedRadar)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		trig, _, _ := newTrigger(t, &fakeCompleter{err: embedding.ErrTransient})
		msg := recomputeMessage(t, events.RecomputeRequested{OwnerID: "alice", Snippets: []string{"one"}})
		err := trig.HandleRecomputeRequested(context.Background(), msg)
		require.Error(t, err)
		assert.False(t, kafka.IsPermanent(err))
	})
}

func TestHandleRecomputeCompletedStoresRadar(t *testing.T) {
	trig, s, _ := newTrigger(t, nil)
	radar := json.RawMessage(`[{"subject":"Go","A":120}]`)
	body, err := json.Marshal(events.RecomputeCompleted{OwnerID: "alice", Result: radar})
	require.NoError(t, err)

	require.NoError(t, trig.HandleRecomputeCompleted(context.Background(), kafka.Message{Value: body}))

	p, err := s.FindProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.JSONEq(t, string(radar), string(p.Radar))
}

func TestParseRadar(t *testing.T) {
	_, err := ParseRadar("[]")
	assert.ErrorIs(t, err, ErrMalformedRadar)
	_, err = ParseRadar(`[{"A":1}]`)
	assert.ErrorIs(t, err, ErrMalformedRadar)
	out, err := ParseRadar("```\n[{\"subject\":\"Go\",\"A\":1}]\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"subject":"Go","A":1}]`, string(out))
}
