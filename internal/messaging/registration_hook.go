package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/RegFlow/internal/flow"
	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/registration"
)

// DefaultComposeDelay is how long the typing indicator shows before a prompt is sent.
const DefaultComposeDelay = 800 * time.Millisecond

// WarningPrefix marks validation messages sent back to respondents.
const WarningPrefix = "⚠️ "

// ChatFlow drives registration sessions over a chat transport. Each inbound message is
// translated into one registration operation and the resulting prompt is sent back.
// Messages to a participant leave in the order they were produced: a prompt waiting on
// the compose delay is flushed before anything else is sent to the same participant.
type ChatFlow struct {
	svc          *registration.Service
	msg          Service
	channel      models.ChannelType
	timer        flow.Timer
	composeDelay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingDelivery // participant -> prompt behind the typing indicator
}

// pendingDelivery is a message scheduled after the compose delay.
type pendingDelivery struct {
	ctx     context.Context
	body    string
	timerID string
}

// ChatFlowOption configures a ChatFlow.
type ChatFlowOption func(*ChatFlow)

// WithComposeDelay sets the typing delay before prompts. Zero sends immediately.
func WithComposeDelay(d time.Duration) ChatFlowOption {
	return func(c *ChatFlow) { c.composeDelay = d }
}

// WithTimer sets the timer used to deliver delayed prompts.
func WithTimer(t flow.Timer) ChatFlowOption {
	return func(c *ChatFlow) { c.timer = t }
}

// NewChatFlow creates a ChatFlow for sessions of the given channel.
func NewChatFlow(svc *registration.Service, msg Service, channel models.ChannelType, opts ...ChatFlowOption) *ChatFlow {
	c := &ChatFlow{
		svc:          svc,
		msg:          msg,
		channel:      channel,
		composeDelay: DefaultComposeDelay,
		pending:      make(map[string]*pendingDelivery),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timer == nil && c.composeDelay > 0 {
		c.timer = flow.NewSimpleTimer()
	}
	return c
}

// Hook returns the response action for a participant.
func (c *ChatFlow) Hook(participant string) ResponseAction {
	return func(ctx context.Context, from, text string, _ int64) (bool, error) {
		return true, c.Handle(ctx, participant, text)
	}
}

// Fallback starts a registration for unknown senders and registers their hook.
func (c *ChatFlow) Fallback() FallbackAction {
	return func(ctx context.Context, rh *ResponseHandler, from, text string) (bool, error) {
		if err := rh.RegisterHook(from, c.Hook(from)); err != nil {
			return false, err
		}
		existing, err := c.svc.FindByParticipant(ctx, c.channel, from)
		if err != nil {
			return false, err
		}
		if existing != nil {
			// hook was lost (e.g. restart without recovery); continue the session
			return true, c.Handle(ctx, from, text)
		}
		return true, c.Begin(ctx, from)
	}
}

// Begin starts a new session for participant and sends the greeting and first prompt.
func (c *ChatFlow) Begin(ctx context.Context, participant string) error {
	st, err := c.svc.Start(ctx, c.channel, participant)
	if err != nil {
		return err
	}
	schema := c.svc.Controller().Schema()
	if schema.Greeting != "" {
		if err := c.send(ctx, participant, schema.Greeting); err != nil {
			return err
		}
	}
	return c.sendPrompt(ctx, participant, st)
}

// Handle applies one chat message to the participant's current session.
func (c *ChatFlow) Handle(ctx context.Context, participant, text string) error {
	st, err := c.svc.FindByParticipant(ctx, c.channel, participant)
	if err != nil {
		return err
	}
	cmd := ParseCommand(text)
	if st == nil {
		// no session in progress: completed earlier or expired
		return c.Begin(ctx, participant)
	}
	if cmd.Kind == CmdRestart {
		if err := c.svc.Reset(ctx, st.SessionID); err != nil && !errors.Is(err, registration.ErrSessionNotFound) {
			return err
		}
		return c.Begin(ctx, participant)
	}

	q, _ := c.svc.Controller().CurrentQuestion(*st)
	id := st.SessionID
	var res registration.Result
	switch {
	case cmd.Kind == CmdBack:
		res, err = c.svc.Back(ctx, id)
	case cmd.Kind == CmdSkip:
		res, err = c.svc.Skip(ctx, id)
	case q.Kind == models.KindMultiChoice && cmd.Kind == CmdDone:
		res, err = c.svc.SubmitSelection(ctx, id)
	case q.Kind.IsChoice() && cmd.Kind == CmdNumbers:
		return c.pickNumbers(ctx, participant, *st, q, cmd.Numbers)
	case q.Kind == models.KindMultiChoice:
		res, err = c.svc.Select(ctx, id, matchOption(c.svc.Controller().OfferedOptions(*st, st.CurrentIndex), text))
		if err == nil && res.OK() {
			return c.sendSelection(ctx, participant, res.State)
		}
	default:
		res, err = c.svc.Answer(ctx, id, text)
	}
	if err != nil {
		return err
	}
	return c.reply(ctx, participant, res)
}

// pickNumbers answers a single-choice question or toggles multi-choice options by number.
func (c *ChatFlow) pickNumbers(ctx context.Context, participant string, st models.FlowState, q models.Question, nums []int) error {
	offered := c.svc.Controller().OfferedOptions(st, st.CurrentIndex)
	for _, n := range nums {
		if n > len(offered) {
			return c.warn(ctx, participant, flow.MsgChooseListed)
		}
	}
	if q.Kind == models.KindSingleChoice {
		if len(nums) != 1 {
			return c.warn(ctx, participant, "please reply with a single number")
		}
		res, err := c.svc.Select(ctx, st.SessionID, offered[nums[0]-1])
		if err != nil {
			return err
		}
		return c.reply(ctx, participant, res)
	}

	var res registration.Result
	var err error
	for _, n := range nums {
		res, err = c.svc.Select(ctx, st.SessionID, offered[n-1])
		if err != nil {
			return err
		}
		if !res.OK() {
			return c.reply(ctx, participant, res)
		}
	}
	return c.sendSelection(ctx, participant, res.State)
}

// reply sends the validation warning, or the next prompt, or the completion message.
func (c *ChatFlow) reply(ctx context.Context, participant string, res registration.Result) error {
	if !res.OK() {
		return c.warn(ctx, participant, res.Err.Message)
	}
	if res.Completed {
		slog.Info("ChatFlow.reply: registration complete", "participant", participant, "submission_queued", res.Submission.Queued)
		if msg := c.svc.Controller().Schema().Completion; msg != "" {
			return c.deliver(ctx, participant, msg)
		}
		return nil
	}
	return c.sendPrompt(ctx, participant, res.State)
}

func (c *ChatFlow) warn(ctx context.Context, participant, msg string) error {
	return c.send(ctx, participant, WarningPrefix+msg)
}

func (c *ChatFlow) sendPrompt(ctx context.Context, participant string, st models.FlowState) error {
	q, ok := c.svc.Controller().CurrentQuestion(st)
	if !ok {
		return nil
	}
	return c.deliver(ctx, participant, RenderQuestion(q, c.svc.Controller().OfferedOptions(st, st.CurrentIndex), st.CurrentIndex > 0))
}

func (c *ChatFlow) sendSelection(ctx context.Context, participant string, st models.FlowState) error {
	q, ok := c.svc.Controller().CurrentQuestion(st)
	if !ok {
		return nil
	}
	selected := st.Answers[q.ID].Selected
	if len(selected) == 0 {
		return c.send(ctx, participant, "Nothing selected yet. Reply with option numbers, e.g. 1,3.")
	}
	return c.send(ctx, participant, fmt.Sprintf("Selected: %s\nReply with more numbers to change your selection, or 'done' to continue.",
		strings.Join(selected, flow.MultiValueSeparator)))
}

// send delivers body right away, after any prompt still waiting on the compose delay.
func (c *ChatFlow) send(ctx context.Context, to, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(to); err != nil {
		return err
	}
	return c.msg.SendMessage(ctx, to, body)
}

// deliver shows the typing indicator for the compose delay, then sends body.
func (c *ChatFlow) deliver(ctx context.Context, to, body string) error {
	if c.composeDelay <= 0 || c.timer == nil {
		return c.send(ctx, to, body)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(to); err != nil {
		return err
	}
	if err := c.msg.SendTypingIndicator(ctx, to, true); err != nil {
		slog.Debug("ChatFlow.deliver: typing indicator failed", "to", to, "error", err)
	}
	p := &pendingDelivery{ctx: context.WithoutCancel(ctx), body: body}
	id, err := c.timer.ScheduleAfter(c.composeDelay, func() { c.fire(to, p) })
	if err != nil {
		return err
	}
	p.timerID = id
	c.pending[to] = p
	return nil
}

// fire sends p when its delay elapses, unless it was already flushed.
func (c *ChatFlow) fire(to string, p *pendingDelivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[to] != p {
		return
	}
	delete(c.pending, to)
	c.sendPending(to, p)
}

// flushLocked sends the participant's pending prompt early. c.mu must be held.
func (c *ChatFlow) flushLocked(to string) error {
	p, ok := c.pending[to]
	if !ok {
		return nil
	}
	delete(c.pending, to)
	if err := c.timer.Cancel(p.timerID); err != nil {
		slog.Debug("ChatFlow.flushLocked: cancel failed", "to", to, "error", err)
	}
	return c.sendPending(to, p)
}

func (c *ChatFlow) sendPending(to string, p *pendingDelivery) error {
	err := c.msg.SendMessage(p.ctx, to, p.body)
	if err != nil {
		slog.Error("ChatFlow.sendPending: delayed send failed", "to", to, "error", err)
	}
	c.msg.SendTypingIndicator(p.ctx, to, false)
	return err
}

// matchOption returns the offered option equal to text ignoring case, or text itself.
func matchOption(offered []string, text string) string {
	t := strings.TrimSpace(text)
	for _, opt := range offered {
		if strings.EqualFold(opt, t) {
			return opt
		}
	}
	return t
}

// RenderQuestion formats a question for chat: the prompt, numbered options and a hint line.
func RenderQuestion(q models.Question, options []string, canGoBack bool) string {
	var b strings.Builder
	b.WriteString(q.Prompt)
	for i, opt := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}

	var hints []string
	switch q.Kind {
	case models.KindSingleChoice:
		hints = append(hints, "Reply with a number")
	case models.KindMultiChoice:
		hints = append(hints, "Reply with numbers (e.g. 1,3), then 'done'")
	default:
		if q.Placeholder != "" {
			hints = append(hints, q.Placeholder)
		}
	}
	if q.Skippable {
		hints = append(hints, "'skip' to skip")
	}
	if canGoBack {
		hints = append(hints, "'back' to go back")
	}
	if len(hints) > 0 {
		b.WriteString("\n\n(" + strings.Join(hints, "; ") + ")")
	}
	return b.String()
}
