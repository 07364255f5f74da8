package timing

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RationalClock", func() {
	It("should panic on a zero term", func() {
		Expect(func() { NewRationalClock(0, 1) }).To(Panic())
		Expect(func() { NewRationalClock(1, 0) }).To(Panic())
	})

	It("should reduce frequencies to lowest terms", func() {
		c := RatioOf(22579200*Hz, 26874100*Hz)

		Expect(gcd(c.Num, c.Den)).To(Equal(uint64(1)))
		Expect(float64(c.Num) / float64(c.Den)).
			To(BeNumerically("~", 22579200.0/26874100.0, 1e-12))

		Expect(RatioOf(10*MHz, 20*MHz)).To(Equal(RationalClock{Num: 1, Den: 2}))
	})

	It("should pass counts through at one to one", func() {
		c := OneToOne()

		Expect(c.IsOneToOne()).To(BeTrue())
		Expect(c.ToLocal(12345)).To(Equal(uint64(12345)))
		Expect(c.ToBase(12345)).To(Equal(uint64(12345)))
		Expect(c.ToBase(NoDeadline)).To(Equal(NoDeadline))
	})

	It("should floor to local and ceil to base", func() {
		c := NewRationalClock(3, 5)

		Expect(c.ToLocal(10)).To(Equal(uint64(6)))
		Expect(c.ToLocal(11)).To(Equal(uint64(6)))
		Expect(c.ToBase(6)).To(Equal(uint64(10)))
		Expect(c.ToBase(7)).To(Equal(uint64(12)))
	})

	It("should not wrap on large counts", func() {
		c := NewRationalClock(1, 2)

		Expect(c.ToLocal(math.MaxUint64)).To(Equal(uint64(math.MaxUint64 / 2)))
		Expect(c.ToBase(math.MaxUint64)).To(Equal(uint64(math.MaxUint64)))

		big := uint64(1) << 62
		Expect(NewRationalClock(3, 4).ToLocal(big)).To(Equal(big / 4 * 3))
	})

	DescribeTable("round trips",
		func(num, den uint64) {
			c := NewRationalClock(num, den)

			for x := uint64(0); x < 2000; x++ {
				b := c.ToBase(c.ToLocal(x))
				Expect(b).To(BeNumerically("<=", x))
				if x > 0 {
					Expect(b).To(BeNumerically(">=", x-1))
				}

				Expect(c.ToLocal(c.ToBase(x))).To(Equal(x))
			}
		},
		Entry("1/2", uint64(1), uint64(2)),
		Entry("2/3", uint64(2), uint64(3)),
		Entry("3/5", uint64(3), uint64(5)),
		Entry("one to one", uint64(1), uint64(1)),
		Entry("sound clock", uint64(225792), uint64(268741)),
	)

	It("should keep base conversions within one local period for slow clocks", func() {
		c := NewRationalClock(1, 7)

		for x := uint64(0); x < 500; x++ {
			b := c.ToBase(c.ToLocal(x))
			Expect(b).To(BeNumerically("<=", x))
			Expect(x - b).To(BeNumerically("<", 7))
		}
	})
})
