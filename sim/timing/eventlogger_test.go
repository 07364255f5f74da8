package timing

import (
	"bytes"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

var _ = Describe("EventLogger", func() {
	var (
		buf *bytes.Buffer
		s   *Scheduler
	)

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		s = NewScheduler()
	})

	It("should log each fired event once", func() {
		logger := zerolog.New(buf).Level(zerolog.DebugLevel)
		s.AcceptHook(NewEventLogger(logger, func(id UserID) string {
			return fmt.Sprintf("event-%d", id)
		}))

		a := s.RegisterEvent(9, HandlerFunc(func(*EventContext) {}))
		s.ScheduleAt(a, 3)
		s.Advance(4)

		Expect(buf.String()).To(Equal(
			`{"level":"debug","now":4,"event":0,"user_id":9,"target":3,` +
				`"name":"event-9","message":"event fired"}` + "\n"))
	})

	It("should stay quiet above debug level", func() {
		logger := zerolog.New(buf).Level(zerolog.InfoLevel)
		s.AcceptHook(NewEventLogger(logger, nil))

		a := s.RegisterEvent(9, HandlerFunc(func(*EventContext) {}))
		s.ScheduleAt(a, 3)
		s.Advance(4)

		Expect(buf.Len()).To(BeZero())
	})
})
