package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Backend performs the network side effects of a session.
type Backend interface {
	Reply(ctx context.Context, text string, lang language.Language) (content string, meta models.MessageMetadata, err error)
	SubmitLead(ctx context.Context, lead SubmitLead) (*models.Lead, error)
	SendSummaryEmail(ctx context.Context, email, summary string, lang language.Language) error
	Escalate(ctx context.Context, req RequestEscalation) (ticketNumber, message string, err error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Publish receives a snapshot after every handled event.
	Publish func(Snapshot)
	// Navigate receives Navigate effects.
	Navigate func(url string)
	// EffectTimeout bounds every backend call.
	EffectTimeout time.Duration
	MailboxSize   int
	// Metrics records mode transitions. May be nil.
	Metrics *metrics.Metrics
}

// Runner owns a Machine and feeds it events from one goroutine. Backend
// calls run concurrently and post their result back as events.
type Runner struct {
	backend Backend
	opts    RunnerOptions
	log     *slog.Logger
	mailbox chan Event

	machine *Machine
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	loopWG   sync.WaitGroup
	effectWG sync.WaitGroup
	stopOnce sync.Once
}

// NewRunner creates a runner. Start attaches the machine.
func NewRunner(backend Backend, opts RunnerOptions) *Runner {
	if opts.EffectTimeout <= 0 {
		opts.EffectTimeout = 30 * time.Second
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 64
	}
	return &Runner{
		backend: backend,
		opts:    opts,
		log:     slog.With("component", "turn-runner"),
		mailbox: make(chan Event, opts.MailboxSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing events for m.
func (r *Runner) Start(ctx context.Context, m *Machine) {
	r.machine = m
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.loopWG.Add(1)
	go r.loop()
}

// Post enqueues ev. It returns false once the runner is stopped.
func (r *Runner) Post(ev Event) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.mailbox <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Stop cancels in-flight effects, waits for them and the event loop, and
// cancels the machine timers.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		close(r.done)
		r.loopWG.Wait()
		r.effectWG.Wait()
		if r.machine != nil {
			r.machine.Shutdown()
		}
	})
}

func (r *Runner) loop() {
	defer r.loopWG.Done()
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.mailbox:
			before := r.machine.Mode()
			for _, eff := range r.machine.Handle(ev) {
				r.execute(eff)
			}
			if after := r.machine.Mode(); after != before {
				r.opts.Metrics.ObserveTransition(string(before), string(after))
			}
			if r.opts.Publish != nil {
				r.opts.Publish(r.machine.Snapshot())
			}
		}
	}
}

func (r *Runner) execute(eff Effect) {
	if nav, ok := eff.(Navigate); ok {
		if r.opts.Navigate != nil {
			r.opts.Navigate(nav.URL)
		}
		return
	}

	r.effectWG.Add(1)
	go func() {
		defer r.effectWG.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.opts.EffectTimeout)
		defer cancel()
		if ev := r.perform(ctx, eff); ev != nil {
			r.Post(ev)
		}
	}()
}

func (r *Runner) perform(ctx context.Context, eff Effect) Event {
	switch e := eff.(type) {
	case RequestReply:
		content, meta, err := r.backend.Reply(ctx, e.Text, e.Language)
		if err != nil {
			return ReplyFailed{Err: err}
		}
		return ReplyReceived{Content: content, Metadata: meta}
	case SubmitLead:
		lead, err := r.backend.SubmitLead(ctx, e)
		if err != nil {
			return LeadSubmitFailed{Err: err}
		}
		if lead == nil {
			return LeadSubmitted{Lead: models.Lead{Name: e.Name, Email: e.Email}}
		}
		return LeadSubmitted{Lead: *lead}
	case SendSummaryEmail:
		err := r.backend.SendSummaryEmail(ctx, e.Email, e.Summary, e.Language)
		return SummaryEmailResult{Email: e.Email, Err: err}
	case RequestEscalation:
		ticket, msg, err := r.backend.Escalate(ctx, e)
		return EscalationResult{TicketNumber: ticket, Message: msg, Err: err}
	default:
		r.log.Warn("Unhandled effect", "effect", eff)
		return nil
	}
}
