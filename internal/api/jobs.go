package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobGenerate = "generate"
	JobUpload   = "upload"
	JobAnswer   = "answer"
	JobReset    = "reset"
	JobClear    = "clear"
)

// Job is a mutating request that currently owns a session.
type Job struct {
	ID        string    `json:"jobId"`
	SessionID string    `json:"-"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
}

// JobManager lets at most one mutating request at a time work on a session, so a pending
// generation is never interleaved with other changes to the same snapshot.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
	}
}

// Begin claims sessionID for a job of the given kind. When the session is taken, ok is false
// and job is the one holding it. Otherwise release must be called once the job is done.
func (m *JobManager) Begin(sessionID, kind string) (job *Job, release func(), ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, busy := m.jobs[sessionID]; busy {
		return current.clone(), nil, false
	}
	owned := &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
	m.jobs[sessionID] = owned

	var once sync.Once
	release = func() {
		once.Do(func() {
			m.mu.Lock()
			if current, ok := m.jobs[sessionID]; ok && current.ID == owned.ID {
				delete(m.jobs, sessionID)
			}
			m.mu.Unlock()
		})
	}
	return owned.clone(), release, true
}

func (m *JobManager) Get(sessionID string) (*Job, bool) {
	m.mu.RLock()
	job, ok := m.jobs[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// Generating reports how many sessions are waiting on the agent.
func (m *JobManager) Generating() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, job := range m.jobs {
		if job.Kind == JobGenerate {
			n++
		}
	}
	return n
}

func (job *Job) clone() *Job {
	if job == nil {
		return nil
	}
	copyJob := *job
	return &copyJob
}
