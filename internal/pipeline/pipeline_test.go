package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/milestone"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/internal/store/storetest"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantTimer fires as soon as it is started and counts the pauses.
type instantTimer struct {
	starts int
	c      chan time.Time
}

func (t *instantTimer) Start(time.Duration) {
	t.starts++
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

type mapEmbedder map[string][]float32

func (m mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "flaky" {
		return nil, fmt.Errorf("%w: upstream 503", embedding.ErrTransient)
	}
	if v, ok := m[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: cannot embed %q", embedding.ErrPermanent, text)
}

// bus records published events as the consumer would see them.
type bus struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (b *bus) Publish(_ context.Context, topic, key string, value any, _ map[string]string) error {
	if b.err != nil {
		return b.err
	}
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, kafka.Message{Topic: topic, Key: key, Value: body})
	return nil
}

// drain returns and forgets the messages published to topic.
func (b *bus) drain(topic string) []kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out, rest []kafka.Message
	for _, m := range b.msgs {
		if m.Topic == topic {
			out = append(out, m)
		} else {
			rest = append(rest, m)
		}
	}
	b.msgs = rest
	return out
}

type fakeBlobs map[string][]byte

func (f fakeBlobs) Download(_ context.Context, key string) ([]byte, error) {
	if b, ok := f[key]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", minio.ErrObjectNotFound, key)
}

type fakeAnalyzer struct {
	results []processor.Result
	calls   int
}

func (f *fakeAnalyzer) Process(_ context.Context, fp string, _ processor.Payload) (processor.Result, error) {
	res := f.results[f.calls]
	f.calls++
	res.Fingerprint = fp
	return res, nil
}

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (c *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	c.system, c.user = system, user
	return c.reply, c.err
}

type fixture struct {
	ctx      context.Context
	store    *store.Store
	index    *vectordb.MemoryStore
	embed    mapEmbedder
	bus      *bus
	blobs    fakeBlobs
	analyzer *fakeAnalyzer
	complete *fakeCompleter
	rec      *reconciler.Reconciler
	p        *Pipeline
	timer    *instantTimer
}

func newFixture(t *testing.T) *fixture {
	log := logger.NewNop()
	f := &fixture{
		ctx:      context.Background(),
		store:    storetest.New(t),
		index:    vectordb.NewMemoryStore(),
		embed:    mapEmbedder{},
		bus:      &bus{},
		blobs:    fakeBlobs{},
		analyzer: &fakeAnalyzer{},
		complete: &fakeCompleter{},
	}
	engine := gravity.New(gravity.Config{}, f.embed, f.index, f.store, log)
	f.rec = reconciler.New(f.store, engine, f.bus, log)
	trigger := milestone.New(milestone.Config{}, f.store, f.bus, nil, log)

	f.p = New(Config{}, Deps{
		Store:      f.store,
		Engine:     engine,
		Publisher:  f.bus,
		Milestones: trigger,
		Summarizer: f.complete,
		Analyzer:   f.analyzer,
		Blobs:      f.blobs,
		Logger:     log,
	})
	f.timer = &instantTimer{}
	f.p.newTimer = func() backoff.Timer { return f.timer }
	return f
}

func (f *fixture) pending(t *testing.T, owner, text string, vec []float32) model.Fragment {
	t.Helper()
	fr := model.Fragment{OwnerID: owner, Content: text, Kind: model.KindHighlight}
	require.NoError(t, f.store.CreateFragment(f.ctx, &fr))
	if vec != nil {
		f.embed[text] = vec
	}
	return fr
}

func created(t *testing.T, fr model.Fragment) kafka.Message {
	t.Helper()
	body, err := json.Marshal(events.FragmentCreated{
		FragmentID: fr.ID,
		OwnerID:    fr.OwnerID,
		Text:       fr.Content,
		Kind:       string(fr.Kind),
	})
	require.NoError(t, err)
	return kafka.Message{Topic: events.TopicFragmentCreated, Value: body}
}

func TestFragmentLinksToExistingClusterExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.embed["Architecture"] = []float32{1, 0}

	c, linked, err := f.rec.CreateCluster(f.ctx, model.Cluster{OwnerID: "alice", Name: "Architecture"})
	require.NoError(t, err)
	assert.Zero(t, linked.Links)

	fr := f.pending(t, "alice", "layered systems keep concerns apart", []float32{0.72, 0.6939})

	for delivery := 1; delivery <= 2; delivery++ {
		var evt events.FragmentCreated
		require.NoError(t, kafka.Decode(created(t, fr), &evt))
		out := f.p.ProcessFragment(f.ctx, evt)
		require.NoError(t, out.Primary)
		assert.NoError(t, out.Linking)
		assert.Equal(t, model.StatusProcessed, out.Status)
		assert.Equal(t, 1, out.Links)
		assert.Equal(t, delivery == 1, out.Fired, "milestone fires on the first processed fragment only")

		requests := f.bus.drain(events.TopicAssociationRequested)
		require.Len(t, requests, 1)
		var req events.AssociationRequested
		require.NoError(t, kafka.Decode(requests[0], &req))
		assert.Equal(t, c.ID, req.ClusterID)
		assert.InDelta(t, 0.72, req.Score, 1e-3)
		require.NoError(t, f.rec.HandleAssociationRequested(f.ctx, requests[0]))
	}

	rows, err := f.store.AssociationsForCluster(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fr.ID, rows[0].FragmentID)
	assert.InDelta(t, 0.72, rows[0].Score, 1e-3)

	stored, err := f.store.FindFragment(f.ctx, fr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.Len(t, f.bus.drain(events.TopicRecomputeRequested), 1)
}

func TestSecondaryFailuresDoNotFailTheFragment(t *testing.T) {
	f := newFixture(t)
	f.embed["Architecture"] = []float32{1, 0}
	_, _, err := f.rec.CreateCluster(f.ctx, model.Cluster{OwnerID: "alice", Name: "Architecture"})
	require.NoError(t, err)
	fr := f.pending(t, "alice", "layers", []float32{1, 0})

	f.bus.err = errors.New("broker down")
	out := f.p.ProcessFragment(f.ctx, events.FragmentCreated{FragmentID: fr.ID, OwnerID: "alice", Text: fr.Content, Kind: "highlight"})

	assert.NoError(t, out.Primary)
	assert.Error(t, out.Linking)
	assert.Error(t, out.Milestone)
	assert.False(t, out.Fired)
	assert.Equal(t, model.StatusProcessed, out.Status)
	assert.NoError(t, f.p.HandleFragmentCreated(f.ctx, created(t, fr)))
}

func TestMissingFragmentGivesUpAfterVisibilityRetries(t *testing.T) {
	f := newFixture(t)

	out := f.p.ProcessFragment(f.ctx, events.FragmentCreated{FragmentID: 404, OwnerID: "alice", Text: "x", Kind: "highlight"})

	assert.ErrorIs(t, out.Primary, ErrNotVisible)
	assert.True(t, kafka.IsPermanent(out.Primary))
	assert.Equal(t, DefaultVisibilityAttempts-1, f.timer.starts)
}

func TestPermanentEmbeddingFailureMarksFragmentFailed(t *testing.T) {
	f := newFixture(t)
	fr := f.pending(t, "alice", "unembeddable", nil)

	require.NoError(t, f.p.HandleFragmentCreated(f.ctx, created(t, fr)))

	stored, err := f.store.FindFragment(f.ctx, fr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Empty(t, f.bus.drain(events.TopicRecomputeRequested))
}

func TestTransientEmbeddingFailureIsRedelivered(t *testing.T) {
	f := newFixture(t)
	fr := f.pending(t, "alice", "flaky", nil)

	err := f.p.HandleFragmentCreated(f.ctx, created(t, fr))
	require.Error(t, err)
	assert.False(t, kafka.IsPermanent(err))

	stored, err := f.store.FindFragment(f.ctx, fr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestGuestFragmentsStayInGuestSpace(t *testing.T) {
	f := newFixture(t)
	f.embed["visiting"] = []float32{1, 0}

	out := f.p.ProcessFragment(f.ctx, events.FragmentCreated{FragmentID: 77, OwnerID: "Guest_42", Text: "visiting", Kind: "highlight"})

	require.NoError(t, out.Primary)
	assert.Empty(t, out.Status)
	assert.Equal(t, 1, f.index.Len(vectordb.SpaceGuest))
	assert.Equal(t, 0, f.index.Len(vectordb.SpaceUser))
	assert.Zero(t, f.timer.starts, "guests have no rows to wait for")

	body, err := json.Marshal(events.Deleted{Kind: events.DeletedHighlight, ID: 77, OwnerID: "guest42"})
	require.NoError(t, err)
	require.NoError(t, f.p.HandleFragmentDeleted(f.ctx, kafka.Message{Topic: events.TopicFragmentDeleted, Value: body}))
	assert.Equal(t, 0, f.index.Len(vectordb.SpaceGuest))
}

func TestEmptyOwnerIsRejected(t *testing.T) {
	f := newFixture(t)
	out := f.p.ProcessFragment(f.ctx, events.FragmentCreated{FragmentID: 1, OwnerID: "***", Text: "x", Kind: "highlight"})
	assert.ErrorIs(t, out.Primary, ErrEmptyOwner)
	assert.True(t, kafka.IsPermanent(out.Primary))
}

func TestDeletionEventsRemoveVectors(t *testing.T) {
	f := newFixture(t)
	f.embed["Architecture"] = []float32{1, 0}
	c, _, err := f.rec.CreateCluster(f.ctx, model.Cluster{OwnerID: "alice", Name: "Architecture"})
	require.NoError(t, err)
	fr := f.pending(t, "alice", "layers", []float32{1, 0})
	require.NoError(t, f.p.HandleFragmentCreated(f.ctx, created(t, fr)))
	require.Equal(t, 2, f.index.Len(vectordb.SpaceUser))

	require.NoError(t, f.rec.DeleteFragment(f.ctx, "alice", fr.ID))
	deleted := f.bus.drain(events.TopicFragmentDeleted)
	require.Len(t, deleted, 1)
	require.NoError(t, f.p.HandleFragmentDeleted(f.ctx, deleted[0]))
	assert.Equal(t, 1, f.index.Len(vectordb.SpaceUser))

	body, err := json.Marshal(events.Deleted{Kind: events.DeletedCluster, ID: c.ID, OwnerID: "alice"})
	require.NoError(t, err)
	msg := kafka.Message{Topic: events.TopicClusterDeleted, Value: body}
	require.NoError(t, f.p.HandleClusterDeleted(f.ctx, msg))
	require.NoError(t, f.p.HandleClusterDeleted(f.ctx, msg), "handling twice is harmless")
	assert.Equal(t, 0, f.index.Len(vectordb.SpaceUser))

	wrong := kafka.Message{Topic: events.TopicFragmentDeleted, Value: body}
	assert.True(t, kafka.IsPermanent(f.p.HandleFragmentDeleted(f.ctx, wrong)))
}

func ingested(t *testing.T, fp, key string) kafka.Message {
	t.Helper()
	body, err := json.Marshal(events.DocumentIngested{
		Fingerprint: fp,
		OwnerID:     "alice",
		ObjectKey:   key,
		FileName:    "notes.txt",
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	return kafka.Message{Topic: events.TopicDocumentIngested, Value: body}
}

func TestDocumentIngestedDegradedThenReplaced(t *testing.T) {
	f := newFixture(t)
	data := []byte("a document about software architecture")
	fp := Fingerprint(data)
	f.blobs["documents/alice/"+fp] = data
	f.embed["architecture notes"] = []float32{1, 0}
	f.analyzer.results = []processor.Result{
		processor.Placeholder(fp, time.Now()),
		{Analysis: processor.Analysis{Summary: "architecture notes", Tags: []string{"design"}, Sentiment: "Neutral"}},
	}
	msg := ingested(t, fp, "documents/alice/"+fp)

	require.NoError(t, f.p.HandleDocumentIngested(f.ctx, msg))
	doc, err := f.store.FindDocumentAnalysis(f.ctx, fp)
	require.NoError(t, err)
	assert.True(t, doc.Degraded)
	assert.Empty(t, doc.VectorID)
	assert.Equal(t, 0, f.index.Len(vectordb.SpaceUser))

	require.NoError(t, f.p.HandleDocumentIngested(f.ctx, msg))
	doc, err = f.store.FindDocumentAnalysis(f.ctx, fp)
	require.NoError(t, err)
	assert.False(t, doc.Degraded)
	assert.Equal(t, "architecture notes", doc.Summary)
	assert.NotEmpty(t, doc.VectorID)
	assert.JSONEq(t, `["design"]`, string(doc.Tags))
	assert.Equal(t, 1, f.index.Len(vectordb.SpaceUser))

	require.NoError(t, f.p.HandleDocumentIngested(f.ctx, msg))
	assert.Equal(t, 2, f.analyzer.calls, "a complete analysis is not redone")
}

func TestDocumentIngestedRejectsBadBlobs(t *testing.T) {
	f := newFixture(t)
	data := []byte("content")
	fp := Fingerprint([]byte("other content"))
	f.blobs["k"] = data

	err := f.p.HandleDocumentIngested(f.ctx, ingested(t, fp, "k"))
	assert.ErrorIs(t, err, ErrFingerprintMismatch)
	assert.True(t, kafka.IsPermanent(err))

	err = f.p.HandleDocumentIngested(f.ctx, ingested(t, fp, "missing"))
	assert.ErrorIs(t, err, minio.ErrObjectNotFound)
	assert.True(t, kafka.IsPermanent(err))
	assert.Zero(t, f.analyzer.calls)
}

func TestRoutesCoverEveryTopic(t *testing.T) {
	f := newFixture(t)
	routes := Routes(f.p, f.rec, &milestone.Trigger{})

	topics := make(map[string]bool)
	for _, r := range routes {
		assert.NotNil(t, r.Handler)
		assert.False(t, topics[r.Topic], "duplicate topic %s", r.Topic)
		topics[r.Topic] = true
	}
	for _, topic := range []string{
		events.TopicFragmentCreated,
		events.TopicAssociationRequested,
		events.TopicRecomputeRequested,
		events.TopicRecomputeCompleted,
		events.TopicFragmentDeleted,
		events.TopicClusterDeleted,
		events.TopicDocumentIngested,
		events.TopicSummaryRequested,
	} {
		assert.True(t, topics[topic], topic)
	}
}
