package store_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/config"
	st "github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
)

var _ = Describe("transcript store", Ordered, func() {
	var (
		s      st.Store
		gormDB *gorm.DB
	)

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
		It("creates a transcript with defaults", func() {
			transcript, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "meeting.wav",
				AudioKey: "uploads/abc.wav",
				Language: "en-US",
			})
			Expect(err).To(BeNil())
			Expect(transcript.ID).ToNot(Equal(uuid.Nil))
			Expect(transcript.Status).To(Equal(model.TranscriptStatusProcessing))
		})

		It("keeps the provided id", func() {
			id := uuid.New()
			transcript, err := s.Transcript().Create(context.TODO(), model.Transcript{
				ID:       id,
				Filename: "meeting.wav",
				AudioKey: "uploads/abc.wav",
				Language: "en-US",
			})
			Expect(err).To(BeNil())
			Expect(transcript.ID).To(Equal(id))
		})
	})

	Context("get", func() {
		It("returns not found for a missing transcript", func() {
			_, err := s.Transcript().Get(context.TODO(), uuid.New())
			Expect(err).To(Equal(st.ErrRecordNotFound))
		})

		It("returns the stored transcript", func() {
			created, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "call.mp3",
				AudioKey: "uploads/call.mp3",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			got, err := s.Transcript().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Filename).To(Equal("call.mp3"))
		})
	})

	Context("update segments", func() {
		It("completes the transcript in one write", func() {
			created, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "call.mp3",
				AudioKey: "uploads/call.mp3",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			segments := []model.Segment{
				{Start: 0, End: 2.5, Text: "hello there", SpeakerTag: 1, Confidence: 0.9},
				{Start: 3, End: 5, Text: "hi", SpeakerTag: 2, Confidence: 0.8},
			}
			err = s.Transcript().UpdateSegments(context.TODO(), created.ID, segments, 5.0, map[string]string{"1": "agent"})
			Expect(err).To(BeNil())

			got, err := s.Transcript().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.TranscriptStatusCompleted))
			Expect(got.Duration).To(Equal(5.0))
			Expect(got.Segments.Data).To(HaveLen(2))
			Expect(got.Segments.Data[0].Text).To(Equal("hello there"))
			Expect(got.SpeakerRoles.Data).To(HaveKeyWithValue("1", "agent"))
			Expect(got.ErrorMessage).To(BeNil())
		})

		It("returns not found for a missing transcript", func() {
			err := s.Transcript().UpdateSegments(context.TODO(), uuid.New(), nil, 0, nil)
			Expect(err).To(Equal(st.ErrRecordNotFound))
		})

		It("keeps a failed transcript failed on a late completion", func() {
			created, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "call.mp3",
				AudioKey: "uploads/call.mp3",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			msg := "engine exploded"
			Expect(s.Transcript().UpdateStatus(context.TODO(), created.ID, model.TranscriptStatusFailed, &msg)).To(BeNil())

			segments := []model.Segment{{Start: 0, End: 1, Text: "late", SpeakerTag: 1}}
			Expect(s.Transcript().UpdateSegments(context.TODO(), created.ID, segments, 1.0, nil)).To(BeNil())

			got, err := s.Transcript().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.TranscriptStatusFailed))
			Expect(got.Segments).To(BeNil())
			Expect(*got.ErrorMessage).To(Equal("engine exploded"))
		})
	})

	Context("update status", func() {
		It("records a failure with its message", func() {
			created, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "call.mp3",
				AudioKey: "uploads/call.mp3",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			msg := "backend unavailable"
			err = s.Transcript().UpdateStatus(context.TODO(), created.ID, model.TranscriptStatusFailed, &msg)
			Expect(err).To(BeNil())

			got, err := s.Transcript().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.TranscriptStatusFailed))
			Expect(*got.ErrorMessage).To(Equal("backend unavailable"))
			Expect(got.Terminal()).To(BeTrue())
		})

		It("keeps a completed transcript completed on a late failure", func() {
			created, err := s.Transcript().Create(context.TODO(), model.Transcript{
				Filename: "call.mp3",
				AudioKey: "uploads/call.mp3",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			segments := []model.Segment{{Start: 0, End: 1, Text: "done", SpeakerTag: 1}}
			Expect(s.Transcript().UpdateSegments(context.TODO(), created.ID, segments, 1.0, nil)).To(BeNil())

			msg := "late failure"
			Expect(s.Transcript().UpdateStatus(context.TODO(), created.ID, model.TranscriptStatusFailed, &msg)).To(BeNil())

			got, err := s.Transcript().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.TranscriptStatusCompleted))
			Expect(got.ErrorMessage).To(BeNil())
			Expect(got.Segments.Data).To(HaveLen(1))
		})

		It("returns not found for a missing transcript", func() {
			msg := "missing"
			err := s.Transcript().UpdateStatus(context.TODO(), uuid.New(), model.TranscriptStatusFailed, &msg)
			Expect(err).To(Equal(st.ErrRecordNotFound))
		})
	})

	Context("transaction", func() {
		It("commits a created transcript", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Transcript().Create(ctx, model.Transcript{
				Filename: "tx.wav",
				AudioKey: "uploads/tx.wav",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from transcripts;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back a created transcript", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Transcript().Create(ctx, model.Transcript{
				Filename: "tx.wav",
				AudioKey: "uploads/tx.wav",
				Language: "en-US",
			})
			Expect(err).To(BeNil())

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from transcripts;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})
})
