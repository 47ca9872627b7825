package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("drains the buffer to the writer", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			body, err := json.Marshal(JobCompletedEvent{
				JobID:  "job-1",
				Engine: "whisperx",
				Result: api.ResultPayload{TranscriptID: "t-1", SegmentsCount: 3, Duration: 12},
			})
			Expect(err).To(BeNil())

			Expect(ep.Write(context.TODO(), JobCompletedKind, bytes.NewReader(body))).To(BeNil())
			Eventually(w.Events).Should(HaveLen(1))

			events := w.Events()
			Expect(events[0].Type()).To(Equal(JobCompletedKind))
			Expect(events[0].Source()).To(Equal(eventSource))

			var decoded JobCompletedEvent
			Expect(json.Unmarshal(events[0].Data(), &decoded)).To(BeNil())
			Expect(decoded.JobID).To(Equal("job-1"))
			Expect(decoded.Result.SegmentsCount).To(Equal(3))

			Expect(ep.Write(context.TODO(), JobFailedKind, bytes.NewReader([]byte(`{"job_id":"job-2"}`)))).To(BeNil())
			Eventually(w.Events).Should(HaveLen(2))
			Expect(w.Events()[1].Type()).To(Equal(JobFailedKind))

			ep.Close()
		})

		It("uses the configured topic", func() {
			w := newTestWriter()
			ep := NewEventProducer(w, WithOutputTopic("transcription.results"))

			Expect(ep.Write(context.TODO(), JobCompletedKind, bytes.NewReader([]byte(`{}`)))).To(BeNil())
			Eventually(w.Topics).Should(ContainElement("transcription.results"))

			ep.Close()
		})
	})
})

type testwriter struct {
	lock   sync.Mutex
	events []cloudevents.Event
	topics []string
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.events = append(t.events, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Events() []cloudevents.Event {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]cloudevents.Event{}, t.events...)
}

func (t *testwriter) Topics() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string{}, t.topics...)
}
