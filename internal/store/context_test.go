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

var _ = Describe("context store", Ordered, func() {
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
		gormDB.Exec("DELETE FROM contexts;")
	})

	It("round trips word boosting and speaker labels", func() {
		created, err := s.Context().Create(context.TODO(), model.Context{
			ID:       uuid.New(),
			Name:     "cardiology",
			Language: "en-US",
			WordBoosting: model.MakeJSONField(map[string]model.BoostCategory{
				"medications": {Terms: []string{"atorvastatin", "lisinopril"}, Boost: 15},
			}),
			SpeakerLabels: model.MakeJSONField(map[string]string{"1": "clinician"}),
		})
		Expect(err).To(BeNil())

		got, err := s.Context().Get(context.TODO(), created.ID)
		Expect(err).To(BeNil())
		Expect(got.Name).To(Equal("cardiology"))
		Expect(got.WordBoosting.Data).To(HaveKey("medications"))
		Expect(got.WordBoosting.Data["medications"].Boost).To(Equal(15.0))
		Expect(got.SpeakerLabels.Data).To(HaveKeyWithValue("1", "clinician"))
	})

	It("returns not found for a missing context", func() {
		_, err := s.Context().Get(context.TODO(), uuid.New())
		Expect(err).To(Equal(st.ErrRecordNotFound))
	})

	It("deletes a context", func() {
		created, err := s.Context().Create(context.TODO(), model.Context{ID: uuid.New(), Name: "general", Language: "en-US"})
		Expect(err).To(BeNil())

		Expect(s.Context().Delete(context.TODO(), created.ID)).To(BeNil())

		_, err = s.Context().Get(context.TODO(), created.ID)
		Expect(err).To(Equal(st.ErrRecordNotFound))
	})
})
