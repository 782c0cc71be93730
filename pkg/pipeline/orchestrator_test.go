package pipeline

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"igevents/pkg/events"
	"igevents/pkg/inference"
	"igevents/pkg/repository"
	"igevents/pkg/storage"
)

var testNow = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	posts     []repository.Post
	processed map[string]bool
	attempts  map[string]int

	schoolName    string
	schoolAddress string
}

func newFakeSource(posts ...repository.Post) *fakeSource {
	return &fakeSource{
		posts:     posts,
		processed: make(map[string]bool),
		attempts:  make(map[string]int),
	}
}

func (f *fakeSource) FetchUnprocessedPosts(ctx context.Context, limit int) ([]repository.Post, error) {
	if limit > 0 && limit < len(f.posts) {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakeSource) MarkPostProcessed(ctx context.Context, postID string) error {
	f.processed[postID] = true
	return nil
}

func (f *fakeSource) IncrementAttempts(ctx context.Context, postID string) (int, error) {
	f.attempts[postID]++
	return f.attempts[postID], nil
}

func (f *fakeSource) SchoolAddress(ctx context.Context, schoolID string) (string, string, error) {
	return f.schoolName, f.schoolAddress, nil
}

type fakeSink struct {
	inserted []*events.Event
	fail     bool
}

func (f *fakeSink) InsertEvent(ctx context.Context, ev *events.Event, profileID, schoolID, postID, captionID string) bool {
	if f.fail {
		return false
	}
	f.inserted = append(f.inserted, ev)
	return true
}

type fakeExtractor struct {
	result   *events.RawExtraction
	requests []*inference.Request
}

func (f *fakeExtractor) Extract(ctx context.Context, req *inference.Request) *events.RawExtraction {
	f.requests = append(f.requests, req)
	return f.result
}

type fakeBlobs struct {
	objects map[string][]byte
}

func (f *fakeBlobs) ReadBytes(bucket, path string) ([]byte, bool) {
	data, ok := f.objects[bucket+"/"+path]
	return data, ok
}

func (f *fakeBlobs) ReadText(bucket, path string) (string, bool) {
	data, ok := f.ReadBytes(bucket, path)
	return string(data), ok
}

func testPost(id string) repository.Post {
	return repository.Post{
		ID:          id,
		Shortcode:   id,
		CaptionPath: id + ".txt",
		PostedAt:    testNow.Add(-24 * time.Hour),
		Profile: repository.Profile{
			ID:       "profile-1",
			Username: "lincolnhigh",
			SchoolID: "school-1",
		},
	}
}

func newTestOrchestrator(source *fakeSource, sink *fakeSink, extractor *fakeExtractor, blobs *fakeBlobs) *Orchestrator {
	if blobs == nil {
		blobs = &fakeBlobs{objects: map[string][]byte{}}
	}
	o := NewOrchestrator(source, sink, extractor, blobs, nil, Options{
		RetentionDays: 30,
		MaxAttempts:   3,
	}, nil)
	o.now = func() time.Time { return testNow }
	return o
}

func TestRunBatchInsertsAndMarksProcessed(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	source.schoolName = "Lincoln High"
	source.schoolAddress = "100 Main St"
	sink := &fakeSink{}
	extractor := &fakeExtractor{result: &events.RawExtraction{
		Events: []events.RawEvent{{
			Name:          "Pep Rally",
			StartDatetime: "2026-09-01T14:00:00Z",
			LocationName:  "lincoln high",
		}},
		Categories: []events.RawCategory{{Name: "sport"}},
		EventTags:  []events.RawTag{{Tag: "#gameday"}},
	}}

	o := newTestOrchestrator(source, sink, extractor, nil)
	sum, err := o.RunBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(sink.inserted) != 1 {
		t.Fatalf("expected 1 inserted event, got %d", len(sink.inserted))
	}
	ev := sink.inserted[0]
	if ev.Name != "Pep Rally" {
		t.Errorf("unexpected event name %q", ev.Name)
	}
	if ev.LocationName == nil || *ev.LocationName != "lincoln high" {
		t.Errorf("location name must stay as extracted, got %v", ev.LocationName)
	}
	if ev.Address == nil || *ev.Address != "100 Main St" {
		t.Errorf("expected school address copied on name match, got %v", ev.Address)
	}

	if !source.processed["post-1"] {
		t.Error("expected post marked processed")
	}
	if sum.PostsProcessed != 1 || sum.EventsInserted != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestRunBatchKeepsOtherVenuesWithoutSchoolAddress(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	source.schoolName = "Lincoln High"
	source.schoolAddress = "100 Main St"
	sink := &fakeSink{}
	extractor := &fakeExtractor{result: &events.RawExtraction{
		Events: []events.RawEvent{
			{
				Name:          "Away Game",
				StartDatetime: "2026-09-01T14:00:00Z",
				LocationName:  "Rival Stadium",
			},
			{
				Name:          "Spirit Week",
				StartDatetime: "2026-09-02T09:00:00Z",
			},
		},
	}}

	o := newTestOrchestrator(source, sink, extractor, nil)
	if _, err := o.RunBatch(context.Background(), 0); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(sink.inserted) != 2 {
		t.Fatalf("expected 2 inserted events, got %d", len(sink.inserted))
	}
	for _, ev := range sink.inserted {
		if ev.Address != nil {
			t.Errorf("event %q must not inherit the school address, got %q", ev.Name, *ev.Address)
		}
	}
	if sink.inserted[1].LocationName != nil {
		t.Errorf("event without a location must not be given one, got %q", *sink.inserted[1].LocationName)
	}
}

func TestRunBatchSkipsPostsOutsideRetention(t *testing.T) {
	old := testPost("post-old")
	old.PostedAt = testNow.AddDate(0, 0, -45)
	source := newFakeSource(old)
	extractor := &fakeExtractor{}

	o := newTestOrchestrator(source, &fakeSink{}, extractor, nil)
	sum, err := o.RunBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(extractor.requests) != 0 {
		t.Error("expected no extraction call for stale post")
	}
	if !source.processed["post-old"] {
		t.Error("expected stale post marked processed")
	}
	if sum.PostsSkipped != 1 {
		t.Errorf("expected 1 skipped, got %+v", sum)
	}
}

func TestRunBatchNoEventsMarksProcessed(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	extractor := &fakeExtractor{result: &events.RawExtraction{}}

	o := newTestOrchestrator(source, &fakeSink{}, extractor, nil)
	sum, _ := o.RunBatch(context.Background(), 0)

	if !source.processed["post-1"] {
		t.Error("expected post with no events marked processed")
	}
	if source.attempts["post-1"] != 0 {
		t.Error("clean no-event response must not count as a failed attempt")
	}
	if sum.PostsProcessed != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestRunBatchAllDroppedMarksProcessed(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	sink := &fakeSink{}
	extractor := &fakeExtractor{result: &events.RawExtraction{
		Events: []events.RawEvent{{
			Name:          "Last Year's Gala",
			StartDatetime: "2026-08-01T18:00:00Z",
		}},
	}}

	o := newTestOrchestrator(source, sink, extractor, nil)
	sum, _ := o.RunBatch(context.Background(), 0)

	if len(sink.inserted) != 0 {
		t.Error("expected no insertions for past event")
	}
	if !source.processed["post-1"] {
		t.Error("deterministic rejection must still retire the post")
	}
	if sum.EventsDropped != 1 || sum.PostsProcessed != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestRunBatchHonorsConfiguredHorizon(t *testing.T) {
	// 30 days out, no explicit year in the text: inside the default
	// horizon but outside a 10-day one.
	result := &events.RawExtraction{
		Events: []events.RawEvent{{
			Name:          "Fall Festival",
			StartDatetime: testNow.AddDate(0, 0, 30).Format(time.RFC3339),
		}},
	}

	source := newFakeSource(testPost("post-1"))
	sink := &fakeSink{}
	o := newTestOrchestrator(source, sink, &fakeExtractor{result: result}, nil)
	sum, _ := o.RunBatch(context.Background(), 0)
	if sum.EventsInserted != 1 {
		t.Fatalf("expected insertion under default horizon, got %+v", sum)
	}

	source = newFakeSource(testPost("post-1"))
	sink = &fakeSink{}
	o = NewOrchestrator(source, sink, &fakeExtractor{result: result}, &fakeBlobs{objects: map[string][]byte{}}, nil, Options{
		RetentionDays: 30,
		MaxAttempts:   3,
		HorizonDays:   10,
	}, nil)
	o.now = func() time.Time { return testNow }

	sum, _ = o.RunBatch(context.Background(), 0)
	if sum.EventsInserted != 0 || sum.EventsDropped != 1 {
		t.Errorf("expected rejection under 10-day horizon, got %+v", sum)
	}
	if len(sink.inserted) != 0 {
		t.Error("expected no insertions beyond the configured horizon")
	}
}

func TestRunBatchExtractionFailureIncrementsAttempts(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	extractor := &fakeExtractor{result: nil}

	o := newTestOrchestrator(source, &fakeSink{}, extractor, nil)
	sum, _ := o.RunBatch(context.Background(), 0)

	if source.processed["post-1"] {
		t.Error("failed post must stay pending")
	}
	if source.attempts["post-1"] != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", source.attempts["post-1"])
	}
	if sum.PostsFailed != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestRunBatchRetiresPostAtAttemptLimit(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	source.attempts["post-1"] = 2
	extractor := &fakeExtractor{result: nil}

	o := newTestOrchestrator(source, &fakeSink{}, extractor, nil)
	o.RunBatch(context.Background(), 0)

	if source.attempts["post-1"] != 3 {
		t.Errorf("expected third attempt recorded, got %d", source.attempts["post-1"])
	}
	if !source.processed["post-1"] {
		t.Error("expected post retired at attempt limit")
	}
}

func TestRunBatchPersistenceFailureLeavesPending(t *testing.T) {
	source := newFakeSource(testPost("post-1"))
	sink := &fakeSink{fail: true}
	extractor := &fakeExtractor{result: &events.RawExtraction{
		Events: []events.RawEvent{{
			Name:          "Pep Rally",
			StartDatetime: "2026-09-01T14:00:00Z",
		}},
	}}

	o := newTestOrchestrator(source, sink, extractor, nil)
	sum, _ := o.RunBatch(context.Background(), 0)

	if source.processed["post-1"] {
		t.Error("post with unstored events must stay pending")
	}
	if source.attempts["post-1"] != 1 {
		t.Errorf("expected attempt recorded, got %d", source.attempts["post-1"])
	}
	if sum.PostsFailed != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestBuildRequestAssemblesBlobs(t *testing.T) {
	post := testPost("post-1")
	post.Profile.BioFilePath = "lincolnhigh_bio.txt"
	post.ImagePaths = []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}

	blobs := &fakeBlobs{objects: map[string][]byte{
		storage.BucketCaptions + "/post-1.txt":          []byte("Pep rally Friday!"),
		storage.BucketBios + "/lincolnhigh_bio.txt":     []byte("Official school account"),
		storage.BucketPosts + "/a.jpg":                  {0x01},
		storage.BucketPosts + "/b.jpg":                  {0x02},
		storage.BucketPosts + "/c.jpg":                  {0x03},
		storage.BucketPosts + "/d.jpg":                  {0x04},
	}}

	o := newTestOrchestrator(newFakeSource(), &fakeSink{}, &fakeExtractor{}, blobs)
	req := o.buildRequest(post)

	if req.Caption != "Pep rally Friday!" {
		t.Errorf("unexpected caption %q", req.Caption)
	}
	if req.Bio != "Official school account" {
		t.Errorf("unexpected bio %q", req.Bio)
	}
	if len(req.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(req.Images))
	}
	if req.Images[0] != base64.StdEncoding.EncodeToString([]byte{0x01}) {
		t.Errorf("unexpected first image encoding %q", req.Images[0])
	}
}

func TestBuildRequestPrefersInlineBio(t *testing.T) {
	post := testPost("post-1")
	post.Profile.Bio = "Inline bio"
	post.Profile.BioFilePath = "lincolnhigh_bio.txt"

	blobs := &fakeBlobs{objects: map[string][]byte{
		storage.BucketBios + "/lincolnhigh_bio.txt": []byte("Blob bio"),
	}}

	o := newTestOrchestrator(newFakeSource(), &fakeSink{}, &fakeExtractor{}, blobs)
	req := o.buildRequest(post)

	if req.Bio != "Inline bio" {
		t.Errorf("expected inline bio preferred, got %q", req.Bio)
	}
}

func TestRunBatchStopsOnCancelledContext(t *testing.T) {
	source := newFakeSource(testPost("post-1"), testPost("post-2"))
	extractor := &fakeExtractor{result: &events.RawExtraction{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(source, &fakeSink{}, extractor, nil)
	sum, err := o.RunBatch(ctx, 0)
	if err == nil {
		t.Fatal("expected context error")
	}
	if sum.PostsSeen != 0 {
		t.Errorf("expected no posts handled after cancellation, got %+v", sum)
	}
	if len(extractor.requests) != 0 {
		t.Error("expected no extraction calls after cancellation")
	}
}
