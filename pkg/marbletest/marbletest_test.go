package marbletest_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/roach88/marbles/pkg/marbletest"
	"github.com/roach88/marbles/pkg/sandbox"
)

// recordingTB captures Errorf calls.
type recordingTB struct {
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

var _ = Describe("Marble matchers", func() {
	var (
		sb *sandbox.Sandbox
	)

	BeforeEach(func() {
		sb = sandbox.Create(false, 1, 1000)
	})

	AfterEach(func() {
		sb.Dispose()
	})

	record := func(src sandbox.Observable, subscription string) *sandbox.Recorder {
		rec, err := sb.Record(src, subscription)
		Expect(err).NotTo(HaveOccurred())
		return rec
	}

	It("matches a cold source replayed for a late subscriber", func() {
		src, err := sb.Cold("-a-b-|", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		rec := record(src, "--^")
		sb.Flush()

		Expect(sb.GetMessages(rec)).To(marbletest.MatchMessages(sb.MustE("---a-b-|", nil, nil)))
		Expect(src.Subscriptions()).To(marbletest.MatchSubscriptions([]sandbox.SubscriptionWindow{
			sb.MustS("--^----!"),
		}))
	})

	It("rejects a shifted timeline with a diagnostic", func() {
		src, err := sb.Hot("-a-b-|", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		rec := record(src, "")
		sb.Flush()

		matcher := marbletest.MatchMessages(sb.MustE("-a--b-|", nil, nil))
		ok, err := matcher.Match(sb.GetMessages(rec))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(matcher.FailureMessage(sb.GetMessages(rec))).To(ContainSubstring("Assertion failed"))

		Expect(sb.GetMessages(rec)).NotTo(marbletest.MatchMessages(sb.MustE("-a--b-|", nil, nil)))
	})

	It("compares error payloads with gomega matchers", func() {
		src, err := sb.Cold("--#", nil, fmt.Errorf("dial tcp: connection refused"))
		Expect(err).NotTo(HaveOccurred())
		rec := record(src, "")
		sb.Flush()

		expected := sb.MustE("--#", nil, MatchError(ContainSubstring("refused")))
		Expect(sb.GetMessages(rec)).To(marbletest.MatchMessages(expected))
	})

	It("fails to match values of the wrong type", func() {
		ok, err := marbletest.MatchMessages(nil).Match("-a|")
		Expect(err).To(HaveOccurred())
		Expect(ok).To(BeFalse())

		_, err = marbletest.MatchSubscriptions(nil).Match([]sandbox.TimedMessage{})
		Expect(err).To(HaveOccurred())
	})

	It("describes a negated failure", func() {
		matcher := marbletest.MatchSubscriptions([]sandbox.SubscriptionWindow{sandbox.Subscribe(0, 3)})
		msg := matcher.NegatedFailureMessage([]sandbox.SubscriptionWindow{sandbox.Subscribe(0, 3)})
		Expect(msg).To(ContainSubstring("not to match"))
	})
})

var _ = Describe("testing.TB helpers", func() {
	It("passes equal sequences without reporting", func() {
		tb := &recordingTB{}
		msgs := []sandbox.TimedMessage{sandbox.Next(1, "a"), sandbox.Complete(2)}

		Expect(marbletest.Expect(tb, msgs, msgs)).To(BeTrue())
		Expect(tb.errors).To(BeEmpty())
	})

	It("reports the first divergence", func() {
		tb := &recordingTB{}
		actual := []sandbox.TimedMessage{sandbox.Next(1, "a"), sandbox.Complete(2)}
		expected := []sandbox.TimedMessage{sandbox.Next(1, "a"), sandbox.Complete(3)}

		Expect(marbletest.Expect(tb, actual, expected)).To(BeFalse())
		Expect(tb.errors).To(HaveLen(1))
		Expect(tb.errors[0]).To(ContainSubstring("index 1"))
	})

	It("reports subscription log differences", func() {
		tb := &recordingTB{}
		actual := []sandbox.SubscriptionWindow{sandbox.Subscribe(0, 4)}

		Expect(marbletest.ExpectSubscriptions(tb, actual, actual)).To(BeTrue())
		Expect(marbletest.ExpectSubscriptions(tb, actual, nil)).To(BeFalse())
		Expect(tb.errors).To(HaveLen(1))
	})
})
