package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	positions []string
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
}

type taggedHook struct {
	tags []string
}

func (h taggedHook) Func(HookCtx) {}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Pos"}
	})

	It("should invoke hooks in registration order", func() {
		var order []int

		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))

		base.InvokeHook(HookCtx{Pos: pos})

		Expect(order).To(Equal([]int{1, 2}))
		Expect(base.NumHooks()).To(Equal(2))
	})

	It("should pass the context through", func() {
		hook := &recordingHook{}
		base.AcceptHook(hook)

		base.InvokeHook(HookCtx{Pos: pos})
		base.InvokeHook(HookCtx{Pos: pos})

		Expect(hook.positions).To(Equal([]string{"Pos", "Pos"}))
		Expect(base.Hooks()).To(ContainElement(hook))
	})

	It("should panic on a duplicated hook", func() {
		hook := &recordingHook{}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept hooks whose values cannot be compared", func() {
		base.AcceptHook(&recordingHook{})
		base.AcceptHook(taggedHook{tags: []string{"a"}})

		Expect(func() {
			base.AcceptHook(taggedHook{tags: []string{"b"}})
		}).NotTo(Panic())
		Expect(base.NumHooks()).To(Equal(3))
	})
})
