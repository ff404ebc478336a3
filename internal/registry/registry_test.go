package registry

import (
	"errors"
	"testing"

	"github.com/pixelpress/api/internal/model"
)

func imageFile(name string, size int64) model.SourceFile {
	return model.SourceFile{
		Name: name,
		MIME: "image/jpeg",
		Size: size,
		Data: make([]byte, size),
	}
}

func TestCreateAdmitsOnlyValidFiles(t *testing.T) {
	reg := New()

	files := []model.SourceFile{
		imageFile("a.jpg", 1024),
		{Name: "notes.txt", MIME: "text/plain", Size: 10, Data: []byte("0123456789")},
		imageFile("b.jpg", MaxFileSize+1),
		imageFile("c.jpg", 2048),
		{Name: "empty.png", MIME: "image/png", Size: 0},
	}

	jobs, rejected, err := reg.Create(files)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %d", len(rejected))
	}
	if jobs[0].Source.Name != "a.jpg" || jobs[1].Source.Name != "c.jpg" {
		t.Errorf("jobs not in input order: %s, %s", jobs[0].Source.Name, jobs[1].Source.Name)
	}
	for _, job := range jobs {
		if job.Status != model.JobStatusQueued {
			t.Errorf("job %s status = %s, want queued", job.ID, job.Status)
		}
	}
}

func TestCreateRejectsEmptyBatch(t *testing.T) {
	reg := New()

	files := []model.SourceFile{
		{Name: "notes.txt", MIME: "text/plain", Size: 10},
	}

	jobs, rejected, err := reg.Create(files)
	if !errors.Is(err, ErrNoValidFiles) {
		t.Fatalf("expected ErrNoValidFiles, got %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
	if len(rejected) != 1 {
		t.Errorf("expected 1 rejection, got %d", len(rejected))
	}
	if reg.Len() != 0 {
		t.Errorf("registry should stay empty, has %d records", reg.Len())
	}
}

func TestJobIDsAreUnique(t *testing.T) {
	reg := New()

	var files []model.SourceFile
	for i := 0; i < 50; i++ {
		files = append(files, imageFile("x.jpg", 100))
	}

	jobs, _, err := reg.Create(files)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	seen := make(map[string]bool)
	for _, job := range jobs {
		if seen[job.ID] {
			t.Fatalf("duplicate job ID %s", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestListPreservesSubmissionOrder(t *testing.T) {
	reg := New()

	first, _, _ := reg.Create([]model.SourceFile{imageFile("a.jpg", 10)})
	second, _, _ := reg.Create([]model.SourceFile{imageFile("b.jpg", 10)})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != first[0].ID || list[1].ID != second[0].ID {
		t.Errorf("list order does not match submission order")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	reg := New()
	jobs, _, _ := reg.Create([]model.SourceFile{imageFile("a.jpg", 10)})

	snap, ok := reg.Get(jobs[0].ID)
	if !ok {
		t.Fatal("job not found")
	}
	snap.Status = model.JobStatusError

	again, _ := reg.Get(jobs[0].ID)
	if again.Status != model.JobStatusQueued {
		t.Errorf("mutating a snapshot leaked into the registry")
	}
}

func TestUpdateMutatesRecord(t *testing.T) {
	reg := New()
	jobs, _, _ := reg.Create([]model.SourceFile{imageFile("a.jpg", 10)})

	ok := reg.Update(jobs[0].ID, func(j *model.Job) {
		j.Status = model.JobStatusCompressing
	})
	if !ok {
		t.Fatal("Update reported missing job")
	}

	job, _ := reg.Get(jobs[0].ID)
	if job.Status != model.JobStatusCompressing {
		t.Errorf("status = %s, want compressing", job.Status)
	}

	if reg.Update("unknown", func(j *model.Job) {}) {
		t.Error("Update of unknown ID should report false")
	}
}

func TestRemoveDiscardsRecord(t *testing.T) {
	reg := New()
	jobs, _, _ := reg.Create([]model.SourceFile{
		imageFile("a.jpg", 10),
		imageFile("b.jpg", 10),
	})

	if !reg.Remove(jobs[0].ID) {
		t.Fatal("Remove reported missing job")
	}
	if _, ok := reg.Get(jobs[0].ID); ok {
		t.Error("removed job still retrievable")
	}
	if reg.Remove(jobs[0].ID) {
		t.Error("second Remove should report false")
	}

	list := reg.List()
	if len(list) != 1 || list[0].ID != jobs[1].ID {
		t.Errorf("unexpected list after remove: %d entries", len(list))
	}
}

func TestClearDiscardsEverything(t *testing.T) {
	reg := New()
	reg.Create([]model.SourceFile{
		imageFile("a.jpg", 10),
		imageFile("b.jpg", 10),
	})

	reg.Clear()
	if reg.Len() != 0 {
		t.Errorf("registry not empty after Clear: %d records", reg.Len())
	}
	if len(reg.List()) != 0 {
		t.Errorf("List not empty after Clear")
	}
}
