package script

import (
	"testing"

	"github.com/kelora-go/kelora/event"
)

type fakeMetrics struct {
	buckets map[string]map[string]int64
	counts  map[string]int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{buckets: map[string]map[string]int64{}, counts: map[string]int64{}}
}

func (m *fakeMetrics) Count(key string, delta int64) { m.counts[key] += delta }
func (m *fakeMetrics) Sum(string, float64)           {}
func (m *fakeMetrics) Min(string, float64)           {}
func (m *fakeMetrics) Max(string, float64)           {}
func (m *fakeMetrics) Avg(string, float64)           {}
func (m *fakeMetrics) Unique(string, any)            {}
func (m *fakeMetrics) Bucket(key, bucket string) {
	if m.buckets[key] == nil {
		m.buckets[key] = map[string]int64{}
	}
	m.buckets[key][bucket]++
}

func newTestEvent(fields map[string]string) *event.Event {
	e := event.New("")
	for k, v := range fields {
		e.Set(k, event.String(v))
	}
	return e
}

func TestRunFilterKeepsMatching(t *testing.T) {
	eng, err := NewEngine([]StageSpec{{Name: "drop-info", Kind: KindFilter, Source: `level != "info"`}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	keep, err := eng.RunFilter(0, newTestEvent(map[string]string{"level": "error"}))
	if err != nil || !keep {
		t.Fatalf("keep=%v err=%v, want true/nil", keep, err)
	}
	keep, err = eng.RunFilter(0, newTestEvent(map[string]string{"level": "info"}))
	if err != nil || keep {
		t.Fatalf("keep=%v err=%v, want false/nil", keep, err)
	}
}

func TestRunTransformSetsField(t *testing.T) {
	eng, err := NewEngine([]StageSpec{{Name: "tag", Kind: KindTransform, Source: `set("tagged", true)`}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := newTestEvent(map[string]string{"level": "info"})
	verdict, err := eng.RunTransform(0, ev)
	if err != nil || !verdict.Kept {
		t.Fatalf("verdict=%+v err=%v", verdict, err)
	}
	v, ok := ev.Fields.Get("tagged")
	if !ok || !v.Bool {
		t.Fatalf("tagged = %+v, ok=%v", v, ok)
	}
}

func TestRunTransformEmitEach(t *testing.T) {
	eng, err := NewEngine([]StageSpec{{Name: "split", Kind: KindTransform, Source: `emit_each("tag", ["a","b","c"])`}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := newTestEvent(map[string]string{"level": "info"})
	verdict, err := eng.RunTransform(0, ev)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Kept {
		t.Fatal("expected original event dropped after emit_each")
	}
	if len(verdict.Emitted) != 3 {
		t.Fatalf("emitted = %d events, want 3", len(verdict.Emitted))
	}
}

func TestTrackBucketMetric(t *testing.T) {
	metrics := newFakeMetrics()
	eng, err := NewEngine([]StageSpec{{Name: "count-status", Kind: KindTransform, Source: `track_bucket("status", status)`}}, metrics)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []string{"200", "404", "200", "500", "404", "200"}
	for _, status := range inputs {
		ev := newTestEvent(map[string]string{"status": status})
		if _, err := eng.RunTransform(0, ev); err != nil {
			t.Fatal(err)
		}
	}
	want := map[string]int64{"200": 3, "404": 2, "500": 1}
	for k, n := range want {
		if metrics.buckets["status"][k] != n {
			t.Errorf("bucket status[%s] = %d, want %d", k, metrics.buckets["status"][k], n)
		}
	}
}

func TestBeginStageFreezesConf(t *testing.T) {
	eng, err := NewEngine([]StageSpec{{Name: "init", Kind: KindBegin, Source: `{"threshold": 10}`}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.RunBegin(); err != nil {
		t.Fatal(err)
	}
	if eng.Conf()["threshold"] != 10 {
		t.Fatalf("conf = %v", eng.Conf())
	}
}

func TestHasPathGetPath(t *testing.T) {
	eng, err := NewEngine([]StageSpec{{Name: "check", Kind: KindFilter, Source: `has_path("user.id")`}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := event.New("")
	nested := event.NewFields()
	nested.Set("id", event.Int(42))
	ev.Set("user", event.Map(nested))
	keep, err := eng.RunFilter(0, ev)
	if err != nil || !keep {
		t.Fatalf("keep=%v err=%v", keep, err)
	}
}
