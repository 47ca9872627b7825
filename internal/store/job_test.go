package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/config"
	st "github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      st.Store
		gormDB *gorm.DB
	)

	newTranscript := func() uuid.UUID {
		transcript, err := s.Transcript().Create(context.TODO(), model.Transcript{
			Filename: "audio.wav",
			AudioKey: "uploads/audio.wav",
			Language: "en-US",
		})
		Expect(err).To(BeNil())
		return transcript.ID
	}

	newJob := func(jobID string) *model.TranscriptionJob {
		job, err := s.Job().Create(context.TODO(), model.TranscriptionJob{
			JobID:        jobID,
			TranscriptID: newTranscript(),
			Engine:       "speech",
			MaxRetries:   3,
		})
		Expect(err).To(BeNil())
		return job
	}

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())
		gormDB = db

		s = st.NewStore(db)
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM transcription_jobs;")
		gormDB.Exec("DELETE FROM transcripts;")
	})

	Context("create", func() {
		It("creates a queued job", func() {
			job := newJob("job-1")
			Expect(job.Status()).To(Equal(model.JobStatusQueued))
			Expect(job.Retryable()).To(BeTrue())
			Expect(job.Terminal()).To(BeFalse())
		})

		It("rejects a duplicate job id", func() {
			newJob("job-1")
			_, err := s.Job().Create(context.TODO(), model.TranscriptionJob{
				JobID:        "job-1",
				TranscriptID: newTranscript(),
				Engine:       "speech",
			})
			Expect(err).To(Equal(st.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("returns not found for a missing job", func() {
			_, err := s.Job().GetByJobID(context.TODO(), "missing")
			Expect(err).To(Equal(st.ErrRecordNotFound))
		})

		It("preloads the transcript", func() {
			created := newJob("job-1")

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Transcript).ToNot(BeNil())
			Expect(job.Transcript.ID).To(Equal(created.TranscriptID))
		})

		It("finds a job by transcript id", func() {
			created := newJob("job-1")

			job, err := s.Job().GetByTranscriptID(context.TODO(), created.TranscriptID)
			Expect(err).To(BeNil())
			Expect(job.JobID).To(Equal("job-1"))
		})
	})

	Context("lifecycle", func() {
		It("records worker claim and attempts", func() {
			newJob("job-1")

			Expect(s.Job().UpdateWorkerInfo(context.TODO(), "job-1", "worker-7", time.Now().UTC())).To(BeNil())
			Expect(s.Job().IncrementAttempts(context.TODO(), "job-1")).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(*job.WorkerID).To(Equal("worker-7"))
			Expect(job.Attempts).To(Equal(1))
			Expect(job.StartedAt).ToNot(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusProcessing))
		})

		It("marks a job completed", func() {
			newJob("job-1")

			Expect(s.Job().MarkCompleted(context.TODO(), "job-1", time.Now().UTC())).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusCompleted))
			Expect(job.ErrorDetails).To(BeNil())
			Expect(job.Retryable()).To(BeFalse())
		})

		It("returns not found when completing a missing job", func() {
			Expect(s.Job().MarkCompleted(context.TODO(), "missing", time.Now().UTC())).To(Equal(st.ErrRecordNotFound))
		})

		It("keeps a failed job failed on a late completion", func() {
			newJob("job-1")
			Expect(s.Job().MarkFailed(context.TODO(), "job-1", model.ErrorDetails{Message: "boom"}, time.Now().UTC())).To(BeNil())

			Expect(s.Job().MarkCompleted(context.TODO(), "job-1", time.Now().UTC())).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorDetails.Data.Message).To(Equal("boom"))
		})

		It("keeps a completed job completed on a late failure", func() {
			newJob("job-1")
			Expect(s.Job().MarkCompleted(context.TODO(), "job-1", time.Now().UTC())).To(BeNil())

			Expect(s.Job().MarkFailed(context.TODO(), "job-1", model.ErrorDetails{Message: "boom"}, time.Now().UTC())).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusCompleted))
			Expect(job.ErrorDetails).To(BeNil())
		})

		It("is idempotent on repeated completion", func() {
			newJob("job-1")
			Expect(s.Job().MarkCompleted(context.TODO(), "job-1", time.Now().UTC())).To(BeNil())
			Expect(s.Job().MarkCompleted(context.TODO(), "job-1", time.Now().UTC())).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusCompleted))
		})

		It("marks a job failed with details", func() {
			newJob("job-1")

			details := model.ErrorDetails{Message: "engine timeout", WorkerID: "worker-7", Engine: "speech"}
			Expect(s.Job().MarkFailed(context.TODO(), "job-1", details, time.Now().UTC())).To(BeNil())

			job, err := s.Job().GetByJobID(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status()).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorDetails.Data.Message).To(Equal("engine timeout"))
			Expect(job.Terminal()).To(BeTrue())
		})
	})

	Context("list retryable", func() {
		It("skips exhausted and completed jobs", func() {
			newJob("job-open")

			exhausted := newJob("job-exhausted")
			for i := 0; i < exhausted.MaxRetries; i++ {
				Expect(s.Job().IncrementAttempts(context.TODO(), "job-exhausted")).To(BeNil())
			}

			newJob("job-done")
			Expect(s.Job().MarkCompleted(context.TODO(), "job-done", time.Now().UTC())).To(BeNil())

			jobs, err := s.Job().ListRetryable(context.TODO())
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].JobID).To(Equal("job-open"))
		})
	})

	Context("retention", func() {
		It("deletes only old terminal jobs", func() {
			newJob("job-old")
			Expect(s.Job().MarkCompleted(context.TODO(), "job-old", time.Now().UTC().Add(-48*time.Hour))).To(BeNil())

			newJob("job-recent")
			Expect(s.Job().MarkCompleted(context.TODO(), "job-recent", time.Now().UTC())).To(BeNil())

			newJob("job-open")

			deleted, err := s.Job().DeleteCompletedBefore(context.TODO(), time.Now().UTC().Add(-24*time.Hour))
			Expect(err).To(BeNil())
			Expect(deleted).To(Equal(int64(1)))

			_, err = s.Job().GetByJobID(context.TODO(), "job-old")
			Expect(err).To(Equal(st.ErrRecordNotFound))

			_, err = s.Job().GetByJobID(context.TODO(), "job-recent")
			Expect(err).To(BeNil())
		})
	})
})
