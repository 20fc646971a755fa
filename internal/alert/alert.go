// Package alert fans reserve-manager events out to delivery channels.
// Events carry the domain payload that triggered them — the TradeExecution,
// including its HedgeCloseReport when the hedge closed — and each channel
// renders that payload in its own format.
package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tonsurance/btcfloat/internal/core"
)

// Severity orders events from informational to page-worthy.
type Severity string

const (
	Info     Severity = "INFO"
	Warning  Severity = "WARNING"
	Error    Severity = "ERROR"
	Critical Severity = "CRITICAL"
)

// Event is one alertable occurrence in the reserve lifecycle.
type Event struct {
	Severity  Severity
	Title     string
	Message   string
	At        time.Time
	Fields    map[string]string
	Execution *core.TradeExecution // set when the event is tied to a trade
}

// sortedFields renders the free-form fields as deterministic "k=v" lines.
func (e Event) sortedFields() []string {
	if len(e.Fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+e.Fields[k])
	}
	return lines
}

// executionLines flattens the trade payload for channels that render text:
// the spot side first, then whatever happened to the hedge.
func (e Event) executionLines() []string {
	if e.Execution == nil {
		return nil
	}
	ex := e.Execution
	lines := []string{
		fmt.Sprintf("signal=%s", ex.Signal.Kind),
		fmt.Sprintf("btc_sats=%d", int64(ex.BTCAmountSats)),
		fmt.Sprintf("usd_cents=%d", int64(ex.USDAmountCents)),
		fmt.Sprintf("price_cents_per_btc=%d", int64(ex.Price)),
	}
	switch ex.HedgeOutcome.Kind {
	case core.HedgeOutcomeHedgedAt:
		lines = append(lines, fmt.Sprintf("hedge=open entry_price=%d", int64(ex.HedgeOutcome.EntryPrice)))
	case core.HedgeOutcomeHedgeFailed:
		reason := "unknown"
		if ex.HedgeOutcome.Err != nil {
			reason = ex.HedgeOutcome.Err.Error()
		}
		lines = append(lines, "hedge=failed reason="+reason)
	case core.HedgeOutcomeHedgeClosed:
		if r := ex.HedgeOutcome.CloseReport; r != nil {
			lines = append(lines, fmt.Sprintf("hedge=closed net_pnl_usd=%d fees_usd=%d", r.NetPnLUSD, r.FeesUSD))
		} else {
			lines = append(lines, "hedge=closed")
		}
	}
	return lines
}

// Channel delivers rendered events somewhere a human will see them.
type Channel interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Manager fans events out to its channels. Delivery is asynchronous with a
// per-channel timeout; alerting never sits on the rebalance path.
type Manager struct {
	mu       sync.RWMutex
	channels []Channel
	logger   core.ILogger
	timeout  time.Duration
}

// NewManager builds an empty Manager; events go nowhere until channels are
// added, which keeps alerting strictly opt-in per deployment.
func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		logger:  logger.WithField("component", "alerts"),
		timeout: 10 * time.Second,
	}
}

// Add registers a delivery channel.
func (m *Manager) Add(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("alert channel added", "channel", ch.Name())
}

// Notify dispatches the event to every channel and returns without waiting
// for delivery. Failures are logged per channel.
func (m *Manager) Notify(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	m.logger.Info("raising alert", "title", event.Title, "severity", string(event.Severity))

	m.mu.RLock()
	channels := append([]Channel(nil), m.channels...)
	m.mu.RUnlock()

	for _, ch := range channels {
		go func(c Channel) {
			deliverCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			if err := c.Notify(deliverCtx, event); err != nil {
				m.logger.Error("alert delivery failed", "channel", c.Name(), "error", err)
			}
		}(ch)
	}
}

// Alert raises an event with no trade payload.
func (m *Manager) Alert(ctx context.Context, title, message string, severity Severity, fields map[string]string) {
	m.Notify(ctx, Event{
		Severity: severity,
		Title:    title,
		Message:  message,
		Fields:   fields,
	})
}

// TradeAlert raises an event tied to an execution; channels render the
// execution's spot amounts and hedge outcome alongside the message.
func (m *Manager) TradeAlert(ctx context.Context, title, message string, severity Severity, exec core.TradeExecution) {
	m.Notify(ctx, Event{
		Severity:  severity,
		Title:     title,
		Message:   message,
		At:        exec.At,
		Execution: &exec,
	})
}
