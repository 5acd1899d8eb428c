package api

import (
	"sync"
	"testing"
)

func TestJobManagerOnePerSession(t *testing.T) {
	m := NewJobManager()

	job, release, ok := m.Begin("a", JobGenerate)
	if !ok || job.ID == "" {
		t.Fatal("first job should be accepted")
	}
	holder, _, ok := m.Begin("a", JobAnswer)
	if ok {
		t.Fatal("second job for the same session must be rejected")
	}
	if holder.ID != job.ID || holder.Kind != JobGenerate {
		t.Fatalf("rejection should report the holding job, got %+v", holder)
	}

	_, releaseB, ok := m.Begin("b", JobUpload)
	if !ok {
		t.Fatal("other sessions are independent")
	}
	defer releaseB()
	if m.Generating() != 1 {
		t.Fatalf("expected 1 generating session, got %d", m.Generating())
	}

	got, ok := m.Get("a")
	if !ok || got.ID != job.ID {
		t.Fatalf("unexpected job %+v", got)
	}
	got.Kind = "changed"
	if again, _ := m.Get("a"); again.Kind != JobGenerate {
		t.Fatal("Get must return a copy")
	}

	release()
	release()
	if _, ok := m.Get("a"); ok {
		t.Fatal("release did not clear the job")
	}
	_, r, ok := m.Begin("a", JobReset)
	if !ok {
		t.Fatal("session should accept a new job after release")
	}
	r()
}

func TestJobManagerStaleReleaseKeepsNewJob(t *testing.T) {
	m := NewJobManager()
	_, release, _ := m.Begin("a", JobUpload)
	release()
	second, release2, ok := m.Begin("a", JobGenerate)
	if !ok {
		t.Fatal("begin after release")
	}
	defer release2()

	release()
	if got, ok := m.Get("a"); !ok || got.ID != second.ID {
		t.Fatal("an old release must not drop a newer job")
	}
}

func TestJobManagerConcurrentBegin(t *testing.T) {
	m := NewJobManager()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, ok := m.Begin("s", JobGenerate); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted job, got %d", accepted)
	}
}
