package lamp_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/halolight/lamp-command/mocks"
	"github.com/halolight/lamp-command/pkg/lamp"
	"github.com/halolight/lamp-command/pkg/protocol"
	"github.com/halolight/lamp-command/pkg/state"
)

// fakeCommander records every delivered frame sequence and reachability
// check.
type fakeCommander struct {
	sendErr   error
	verifyErr error

	sent     [][]protocol.Frame
	sentIDs  []string
	verified []string
}

func (f *fakeCommander) SendSequence(_ context.Context, id string, frames []protocol.Frame) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frames)
	f.sentIDs = append(f.sentIDs, id)
	return nil
}

func (f *fakeCommander) VerifyPeripheral(_ context.Context, id string) error {
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.verified = append(f.verified, id)
	return nil
}

var _ = Describe("Lamp actions", func() {
	var (
		ctx       context.Context
		ctrl      *gomock.Controller
		store     *mocks.MockStore
		conn      *fakeCommander
		control   *lamp.Lamp
		persisted state.Lamp
	)

	// stateful wires the mock store to an in-memory record so consecutive
	// actions observe each other's saves.
	stateful := func(initial state.Lamp) {
		persisted = initial
		store.EXPECT().Load().DoAndReturn(func() (state.Lamp, error) {
			return persisted, nil
		}).AnyTimes()
		store.EXPECT().Save(gomock.Any()).DoAndReturn(func(l state.Lamp) error {
			persisted = l
			return nil
		}).AnyTimes()
	}

	pairedLamp := func() state.Lamp {
		return state.Lamp{DeviceID: "AA:BB:CC:DD:EE:FF"}
	}

	BeforeEach(func() {
		ctx = context.Background()
		ctrl = gomock.NewController(GinkgoT())
		store = mocks.NewMockStore(ctrl)
		conn = &fakeCommander{}
		control = lamp.New(conn, store)
	})

	Describe("device selection", func() {
		It("fails every action when no lamp is paired", func() {
			store.EXPECT().Load().Return(state.Lamp{}, nil).AnyTimes()

			_, err := control.PowerOn(ctx)
			Expect(err).To(MatchError(protocol.ErrDeviceNotSelected))
			_, err = control.TogglePower(ctx)
			Expect(err).To(MatchError(protocol.ErrDeviceNotSelected))
			_, err = control.Verify(ctx)
			Expect(err).To(MatchError(protocol.ErrDeviceNotSelected))
			Expect(conn.sent).To(BeEmpty())
			Expect(conn.verified).To(BeEmpty())
		})

		It("propagates store failures", func() {
			loadErr := errors.New("disk on fire")
			store.EXPECT().Load().Return(state.Lamp{}, loadErr)

			_, err := control.PowerOn(ctx)
			Expect(err).To(MatchError(loadErr))
		})
	})

	Describe("power", func() {
		BeforeEach(func() {
			stateful(pairedLamp())
		})

		It("turns the lamp on and records the state", func() {
			result, err := control.PowerOn(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp turned on."))
			Expect(conn.sent).To(HaveLen(1))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Power(true)}))
			Expect(conn.sentIDs[0]).To(Equal("AA:BB:CC:DD:EE:FF"))
			Expect(persisted.Power).To(HaveValue(BeTrue()))
		})

		It("turns the lamp off and records the state", func() {
			result, err := control.PowerOff(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp turned off."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Power(false)}))
			Expect(persisted.Power).To(HaveValue(BeFalse()))
		})

		It("does not persist after a failed send", func() {
			conn.sendErr = protocol.ErrConnectionFailed

			_, err := control.PowerOn(ctx)
			Expect(err).To(MatchError(protocol.ErrConnectionFailed))
			Expect(persisted.Power).To(BeNil())
		})
	})

	Describe("toggle", func() {
		BeforeEach(func() {
			stateful(pairedLamp())
		})

		It("turns an unknown lamp on and says so", func() {
			result, err := control.TogglePower(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp state was unknown; turned it on."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Power(true)}))
			Expect(persisted.Power).To(HaveValue(BeTrue()))
		})

		It("returns to the original state after two toggles", func() {
			persisted.SetPower(true)

			result, err := control.TogglePower(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp turned off."))

			result, err = control.TogglePower(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp turned on."))

			Expect(conn.sent).To(Equal([][]protocol.Frame{
				{protocol.Power(false)},
				{protocol.Power(true)},
			}))
			Expect(persisted.Power).To(HaveValue(BeTrue()))
		})
	})

	Describe("brightness", func() {
		BeforeEach(func() {
			stateful(pairedLamp())
		})

		It("toggles a bright lamp down to half intensity, keeping its color", func() {
			persisted.SetHSV(120, 80, 100)

			result, err := control.ToggleIntensity(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Brightness set to 50%."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Color(120, 80, 50)}))
		})

		It("toggles a dim lamp up to full intensity", func() {
			persisted.SetHSV(120, 80, 50)

			result, err := control.ToggleIntensity(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Brightness set to 100%."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Color(120, 80, 100)}))
		})

		It("toggles an unknown lamp to full intensity", func() {
			_, err := control.ToggleIntensity(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Color(0, 0, 100)}))
		})

		It("sets an explicit level, clamped to the percentage range", func() {
			persisted.SetHSV(30, 100, 100)

			result, err := control.SetBrightness(ctx, 150)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Brightness set to 100%."))

			_, err = control.SetBrightness(ctx, -10)
			Expect(err).NotTo(HaveOccurred())

			Expect(conn.sent).To(Equal([][]protocol.Frame{
				{protocol.Color(30, 100, 100)},
				{protocol.Color(30, 100, 0)},
			}))
		})
	})

	Describe("color", func() {
		BeforeEach(func() {
			stateful(pairedLamp())
		})

		It("sets a named preset", func() {
			result, err := control.SetColor(ctx, "Cyan")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Color set to cyan."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Color(90, 100, 100)}))
			h, s, v, ok := persisted.HSV()
			Expect(ok).To(BeTrue())
			Expect([3]int{h, s, v}).To(Equal([3]int{90, 100, 100}))
		})

		It("rejects an unknown preset and lists the alternatives", func() {
			_, err := control.SetColor(ctx, "chartreuse")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chartreuse"))
			Expect(err.Error()).To(ContainSubstring("warm-white"))
			Expect(conn.sent).To(BeEmpty())
		})

		It("sets an arbitrary RGB color via HSV conversion", func() {
			result, err := control.SetRGB(ctx, 255, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Color set to RGB(255, 0, 0)."))
			Expect(conn.sent[0]).To(Equal([]protocol.Frame{protocol.Color(0, 100, 100)}))
		})
	})

	Describe("persistence failures", func() {
		It("reports success when only the save fails", func() {
			// The lamp already changed state on the radio; a failed save
			// must not turn a delivered command into a reported failure.
			store.EXPECT().Load().Return(pairedLamp(), nil)
			store.EXPECT().Save(gomock.Any()).Return(errors.New("read-only filesystem"))

			result, err := control.PowerOn(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Lamp turned on."))
			Expect(conn.sent).To(HaveLen(1))
		})
	})

	Describe("verify", func() {
		It("checks reachability without sending frames", func() {
			store.EXPECT().Load().Return(pairedLamp(), nil)

			result, err := control.Verify(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("The lamp is reachable."))
			Expect(conn.verified).To(Equal([]string{"AA:BB:CC:DD:EE:FF"}))
			Expect(conn.sent).To(BeEmpty())
		})

		It("surfaces an unreachable lamp", func() {
			store.EXPECT().Load().Return(pairedLamp(), nil)
			conn.verifyErr = protocol.ErrDeviceNotFound

			_, err := control.Verify(ctx)
			Expect(err).To(MatchError(protocol.ErrDeviceNotFound))
		})
	})
})
